package entity

import (
	"time"

	"github.com/uptrace/bun"
)

type Attendance struct {
	bun.BaseModel `bun:"table:attendances"`

	ID             int64     `json:"id"               bun:"id,pk,autoincrement"`
	ScannedBatchID int64     `json:"scanned_batch_id" bun:"scanned_batch_id"`
	EmployeeID     *int64    `json:"employee_id"      bun:"employee_id"`
	BusID          *string   `json:"bus_id"           bun:"bus_id"`
	VanID          *int64    `json:"van_id"           bun:"van_id"`
	Shift          string    `json:"shift"            bun:"shift"`
	Status         string    `json:"status"           bun:"status"`
	ScannedAt      time.Time `json:"scanned_at"       bun:"scanned_at"`
	ScannedOn      time.Time `json:"scanned_on"       bun:"scanned_on,type:date"`
	Source         *string   `json:"source"           bun:"source"`
}

// UnknownAttendance records attendance for person ids that are not on the
// master list, so operators can follow them up.
type UnknownAttendance struct {
	bun.BaseModel `bun:"table:unknown_attendances"`

	ID             int64     `json:"id"               bun:"id,pk,autoincrement"`
	ScannedBatchID int64     `json:"scanned_batch_id" bun:"scanned_batch_id"`
	RouteRaw       *string   `json:"route_raw"        bun:"route_raw"`
	BusID          *string   `json:"bus_id"           bun:"bus_id"`
	Shift          string    `json:"shift"            bun:"shift"`
	ScannedAt      time.Time `json:"scanned_at"       bun:"scanned_at"`
	ScannedOn      time.Time `json:"scanned_on"       bun:"scanned_on,type:date"`
	Source         *string   `json:"source"           bun:"source"`
}

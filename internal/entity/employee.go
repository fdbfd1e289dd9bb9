package entity

import (
	"github.com/uptrace/bun"
)

type Employee struct {
	bun.BaseModel `bun:"table:employees"`

	BasicEntity
	BatchID int64   `json:"batch_id" bun:"batch_id"`
	Name    string  `json:"name"     bun:"name"`
	BusID   *string `json:"bus_id"   bun:"bus_id"`
	VanID   *int64  `json:"van_id"   bun:"van_id"`
	Active  bool    `json:"active"   bun:"active"`
}

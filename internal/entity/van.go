package entity

import (
	"github.com/uptrace/bun"
)

type Van struct {
	bun.BaseModel `bun:"table:vans"`

	BasicEntity
	VanCode     string  `json:"van_code"     bun:"van_code"`
	BusID       *string `json:"bus_id"       bun:"bus_id"`
	PlateNumber *string `json:"plate_number" bun:"plate_number"`
	DriverName  *string `json:"driver_name"  bun:"driver_name"`
	Capacity    *int    `json:"capacity"     bun:"capacity"`
	Active      bool    `json:"active"       bun:"active"`
}

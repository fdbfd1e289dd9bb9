package entity

import (
	"time"

	"github.com/uptrace/bun"
)

type Bus struct {
	bun.BaseModel `bun:"table:buses"`

	BusID       string    `json:"bus_id"       bun:"bus_id,pk"`
	Route       *string   `json:"route"        bun:"route"`
	PlateNumber *string   `json:"plate_number" bun:"plate_number"`
	Capacity    *int      `json:"capacity"     bun:"capacity"`
	CreatedAt   time.Time `json:"created_at"   bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `json:"updated_at"   bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

package entity

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	BasicEntity
	Username  string     `json:"username"  bun:"username"`
	FullName  *string    `json:"full_name" bun:"full_name"`
	Password  string     `json:"-"         bun:"password"`
	Role      string     `json:"role"      bun:"role"`
	DeletedAt *time.Time `json:"-"         bun:"deleted_at"`
}

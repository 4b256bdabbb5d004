package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a registered terminal account
type User struct {
	bun.BaseModel `bun:"table:users"`

	Username     string    `bun:"username,pk" json:"username"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"` // Never expose in JSON
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

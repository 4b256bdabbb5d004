package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Session represents an authenticated user session.
// Timestamps are epoch seconds so they compare the same way on every dialect.
type Session struct {
	bun.BaseModel `bun:"table:sessions"`

	TokenHash string `bun:"token_hash,pk" json:"-"` // Never expose in JSON
	Username  string `bun:"username,notnull" json:"user"`
	ExpiresAt int64  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt int64  `bun:"created_at,notnull" json:"created_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt < now.Unix()
}

package models

import "github.com/uptrace/bun"

// HistoryEntry is one command line a user ran in the terminal
type HistoryEntry struct {
	bun.BaseModel `bun:"table:user_history"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	Username  string `bun:"username,notnull" json:"-"`
	Command   string `bun:"command,notnull" json:"command"`
	Timestamp int64  `bun:"timestamp,notnull" json:"timestamp"`
}

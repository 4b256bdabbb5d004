package models

import "github.com/uptrace/bun"

// Well-known data categories
const (
	CategoryRemote    = "REMOTE"
	CategoryUserspace = "USERSPACE"
	// CategoryEnv is read-only; reading it returns REMOTE and USERSPACE together.
	CategoryEnv = "ENV"
)

// HistSizeKey is the data key holding a user's history retention bound
const HistSizeKey = "HISTSIZE"

// UserDataItem is one value in a user's namespaced key/value store.
// A nil Value is stored as SQL NULL.
type UserDataItem struct {
	bun.BaseModel `bun:"table:user_data"`

	Username string  `bun:"username,pk" json:"-"`
	Category string  `bun:"category,pk" json:"category"`
	Key      string  `bun:"key,pk" json:"key"`
	Value    *string `bun:"value" json:"value"`
}

// SortOrder selects key ordering for category reads
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditLog represents a record of security-relevant account activity
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Timestamp time.Time `bun:"timestamp,notnull" json:"timestamp"`
	Username  string    `bun:"username,notnull" json:"username"`
	Action    string    `bun:"action,notnull" json:"action"`
	IPAddress string    `bun:"ip_address" json:"ip_address"`
	RequestID string    `bun:"request_id" json:"request_id"`
	Details   string    `bun:"details" json:"details"` // JSON string
}

// Audited actions
const (
	ActionUserCreate     = "user.create"
	ActionLogin          = "login"
	ActionLoginFailed    = "login.failed"
	ActionLogout         = "logout"
	ActionPasswordChange = "user.passwd"
)

// AuditFilter narrows an audit log listing
type AuditFilter struct {
	Username  string
	Action    string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// AuditListResponse is a page of audit logs
type AuditListResponse struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

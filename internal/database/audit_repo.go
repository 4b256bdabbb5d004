package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"nnoitra-backend/internal/models"
)

// AuditRepo handles audit log database operations
type AuditRepo struct {
	db bun.IDB
}

// NewAuditRepo creates a new audit repository
func NewAuditRepo(db bun.IDB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Create creates a new audit log entry
func (r *AuditRepo) Create(ctx context.Context, log *models.AuditLog) error {
	if _, err := r.db.NewInsert().Model(log).Exec(ctx); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Log is a convenience method to create an audit log entry with current timestamp
func (r *AuditRepo) Log(ctx context.Context, username, action string, details interface{}, ipAddress, requestID string) error {
	var detailsJSON string
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			detailsJSON = "{}"
		} else {
			detailsJSON = string(b)
		}
	}

	return r.Create(ctx, &models.AuditLog{
		Timestamp: time.Now().UTC(),
		Username:  username,
		Action:    action,
		IPAddress: ipAddress,
		RequestID: requestID,
		Details:   detailsJSON,
	})
}

// List retrieves audit logs, newest first, with the total matching count
func (r *AuditRepo) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	var logs []models.AuditLog
	q := r.db.NewSelect().Model(&logs)

	if filter.Username != "" {
		q = q.Where("username = ?", filter.Username)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if !filter.StartTime.IsZero() {
		q = q.Where("timestamp >= ?", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		q = q.Where("timestamp <= ?", filter.EndTime)
	}

	q = q.OrderExpr("timestamp DESC, id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, total, nil
}

// DeleteOlderThan deletes audit logs older than the specified time
func (r *AuditRepo) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.AuditLog)(nil)).
		Where("timestamp < ?", t).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete audit logs: %w", err)
	}
	return res.RowsAffected()
}

package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"nnoitra-backend/internal/models"
)

// HistoryRepo handles the per-user command history table
type HistoryRepo struct {
	db bun.IDB
}

// NewHistoryRepo creates a new history repository
func NewHistoryRepo(db bun.IDB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Append inserts a history entry and sets its ID
func (r *HistoryRepo) Append(ctx context.Context, entry *models.HistoryEntry) error {
	if _, err := r.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// Trim deletes all but the newest keep entries for the user and returns
// the number of rows removed.
func (r *HistoryRepo) Trim(ctx context.Context, username string, keep int) (int64, error) {
	res, err := r.db.NewRaw(`
		DELETE FROM user_history
		WHERE username = ?
		  AND id NOT IN (
			SELECT id FROM user_history
			WHERE username = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		  )
	`, username, username, keep).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("trim history: %w", err)
	}
	return res.RowsAffected()
}

// ListCommands returns up to limit commands, most recent first.
// A limit of zero or less returns nothing.
func (r *HistoryRepo) ListCommands(ctx context.Context, username string, limit int) ([]string, error) {
	commands := make([]string, 0)
	if limit <= 0 {
		return commands, nil
	}
	err := r.db.NewSelect().
		Model((*models.HistoryEntry)(nil)).
		Column("command").
		Where("username = ?", username).
		OrderExpr("timestamp DESC, id DESC").
		Limit(limit).
		Scan(ctx, &commands)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return commands, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"nnoitra-backend/internal/models"
)

var ErrDataNotFound = errors.New("data item not found")

// UserDataRepo handles the per-user namespaced key/value table
type UserDataRepo struct {
	db bun.IDB
}

// NewUserDataRepo creates a new user data repository
func NewUserDataRepo(db bun.IDB) *UserDataRepo {
	return &UserDataRepo{db: db}
}

// Upsert inserts the item or replaces the value of an existing key in one statement
func (r *UserDataRepo) Upsert(ctx context.Context, item *models.UserDataItem) error {
	_, err := r.db.NewInsert().
		Model(item).
		On("CONFLICT (username, category, key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert user data: %w", err)
	}
	return nil
}

// Get retrieves a single item
func (r *UserDataRepo) Get(ctx context.Context, username, category, key string) (*models.UserDataItem, error) {
	item := new(models.UserDataItem)
	err := r.db.NewSelect().
		Model(item).
		Where("username = ?", username).
		Where("category = ?", category).
		Where("key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user data: %w", err)
	}
	return item, nil
}

// ListCategory returns every item in one category ordered by key
func (r *UserDataRepo) ListCategory(ctx context.Context, username, category string, order models.SortOrder) ([]models.UserDataItem, error) {
	dir := "ASC"
	if order == models.SortDesc {
		dir = "DESC"
	}

	var items []models.UserDataItem
	err := r.db.NewSelect().
		Model(&items).
		Where("username = ?", username).
		Where("category = ?", category).
		OrderExpr("key " + dir).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user data: %w", err)
	}
	return items, nil
}

// ListCategories returns the items of several categories, ordered by category then key
func (r *UserDataRepo) ListCategories(ctx context.Context, username string, categories []string) ([]models.UserDataItem, error) {
	var items []models.UserDataItem
	err := r.db.NewSelect().
		Model(&items).
		Where("username = ?", username).
		Where("category IN (?)", bun.In(categories)).
		OrderExpr("category ASC, key ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user data: %w", err)
	}
	return items, nil
}

// Delete removes a single key. Deleting a missing key is not an error.
func (r *UserDataRepo) Delete(ctx context.Context, username, category, key string) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.UserDataItem)(nil)).
		Where("username = ?", username).
		Where("category = ?", category).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete user data: %w", err)
	}
	return res.RowsAffected()
}

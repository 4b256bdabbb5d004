package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"nnoitra-backend/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserRepo handles user database operations
type UserRepo struct {
	db bun.IDB
}

// NewUserRepo creates a new user repository on db or a transaction
func NewUserRepo(db bun.IDB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user. An existing username is left untouched and
// ErrUserAlreadyExists is returned.
func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	res, err := r.db.NewInsert().
		Model(user).
		On("CONFLICT (username) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if n == 0 {
		return ErrUserAlreadyExists
	}
	return nil
}

// GetByUsername retrieves a user by username
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("username = ?", username).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

// UpdatePassword replaces the stored password hash
func (r *UserRepo) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now().UTC()).
		Where("username = ?", username).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Lock takes a write lock on the user's row until the surrounding
// transaction ends. It serializes per-user read-modify-write sequences.
func (r *UserRepo) Lock(ctx context.Context, username string) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("updated_at = updated_at").
		Where("username = ?", username).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

// Count returns the total number of users
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	n, err := r.db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

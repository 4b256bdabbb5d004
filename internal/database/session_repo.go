package database

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"nnoitra-backend/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// tokenBytes is the amount of randomness in a session token
const tokenBytes = 32

// SessionRepo handles session database operations.
// Only the SHA-256 of a token is stored; callers always pass plain tokens.
type SessionRepo struct {
	db bun.IDB
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(db bun.IDB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session and returns the plain token
func (r *SessionRepo) Create(ctx context.Context, username string, now, expiresAt time.Time) (string, *models.Session, error) {
	token, err := NewToken()
	if err != nil {
		return "", nil, err
	}

	session := &models.Session{
		TokenHash: HashToken(token),
		Username:  username,
		ExpiresAt: expiresAt.Unix(),
		CreatedAt: now.Unix(),
	}

	if _, err := r.db.NewInsert().Model(session).Exec(ctx); err != nil {
		return "", nil, fmt.Errorf("insert session: %w", err)
	}
	return token, session, nil
}

// GetByToken retrieves a session by its plain token, expired or not
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	session := new(models.Session)
	err := r.db.NewSelect().
		Model(session).
		Where("token_hash = ?", HashToken(token)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return session, nil
}

// Extend moves a session's expiry forward to expiresAt. It never moves it
// backwards; the returned bool is false when no row was changed.
func (r *SessionRepo) Extend(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.Session)(nil)).
		Set("expires_at = ?", expiresAt.Unix()).
		Where("token_hash = ?", HashToken(token)).
		Where("expires_at < ?", expiresAt.Unix()).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("extend session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("extend session: %w", err)
	}
	return n > 0, nil
}

// DeleteByToken deletes a session by its plain token
func (r *SessionRepo) DeleteByToken(ctx context.Context, token string) error {
	res, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		Where("token_hash = ?", HashToken(token)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteIfExpired removes the token's row only if it is expired at now.
// A concurrently renewed session is left alone.
func (r *SessionRepo) DeleteIfExpired(ctx context.Context, token string, now time.Time) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		Where("token_hash = ?", HashToken(token)).
		Where("expires_at < ?", now.Unix()).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete expired session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete expired session: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired removes all sessions expired at now
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		Where("expires_at < ?", now.Unix()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// NewToken returns a hex-encoded token drawn from crypto/rand
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken creates a SHA-256 hash of the token
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"nnoitra-backend/internal/apperr"
	"nnoitra-backend/internal/database"
	"nnoitra-backend/internal/logging"
	"nnoitra-backend/internal/models"
)

// Credentials owns user identities and their password hashes
type Credentials struct {
	users  *database.UserRepo
	params PasswordParams
	log    *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentials creates a credential store on db
func NewCredentials(db bun.IDB, params PasswordParams, log *zap.Logger) *Credentials {
	return &Credentials{
		users:  database.NewUserRepo(db),
		params: params,
		log:    logging.OrNop(log),
	}
}

// Create registers a new user. An existing username is never overwritten.
func (c *Credentials) Create(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return apperr.New(apperr.KindInvalidInput, "Username and password are required.")
	}

	hash, err := HashPasswordWith(c.params, password)
	if err != nil {
		return apperr.Internal(err)
	}

	err = c.users.Create(ctx, &models.User{Username: username, PasswordHash: hash})
	if errors.Is(err, database.ErrUserAlreadyExists) {
		return apperr.Newf(apperr.KindAlreadyExists, "User %q already exists.", username)
	}
	if err != nil {
		c.log.Error("create user failed", zap.String("username", username), zap.Error(err))
		return apperr.Internal(err)
	}
	return nil
}

// Verify reports whether username exists and password matches its hash.
// Unknown users are checked against a throwaway hash so both failure cases
// cost the same.
func (c *Credentials) Verify(ctx context.Context, username, password string) (bool, error) {
	user, err := c.users.GetByUsername(ctx, username)
	if errors.Is(err, database.ErrUserNotFound) {
		_, _ = VerifyPassword(password, c.dummy())
		return false, nil
	}
	if err != nil {
		c.log.Error("load user failed", zap.String("username", username), zap.Error(err))
		return false, apperr.Internal(err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		c.log.Warn("stored password hash is unreadable", zap.String("username", username), zap.Error(err))
		return false, nil
	}
	return ok, nil
}

// ChangePassword replaces the password of the principal's user after
// checking the old one.
func (c *Credentials) ChangePassword(ctx context.Context, p Principal, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return apperr.New(apperr.KindInvalidInput, "Old and new passwords are required.")
	}
	if p.Username() == "" {
		return apperr.ErrInvalidOrExpiredSession
	}

	ok, err := c.Verify(ctx, p.Username(), oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.KindInvalidCredentials, "Incorrect old password.")
	}

	hash, err := HashPasswordWith(c.params, newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := c.users.UpdatePassword(ctx, p.Username(), hash); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return apperr.New(apperr.KindNotFound, "User not found.")
		}
		c.log.Error("update password failed", zap.String("username", p.Username()), zap.Error(err))
		return apperr.Internal(err)
	}
	return nil
}

// Count returns the number of registered users
func (c *Credentials) Count(ctx context.Context) (int, error) {
	n, err := c.users.Count(ctx)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

func (c *Credentials) dummy() string {
	c.dummyOnce.Do(func() {
		h, err := HashPasswordWith(c.params, "nnoitra-dummy-password")
		if err != nil {
			c.log.Error("failed to build dummy hash", zap.Error(err))
			return
		}
		c.dummyHash = h
	})
	return c.dummyHash
}

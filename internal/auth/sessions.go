package auth

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"nnoitra-backend/internal/apperr"
	"nnoitra-backend/internal/database"
	"nnoitra-backend/internal/logging"
)

// DefaultSessionTTL is how long a session lives without renewal
const DefaultSessionTTL = 7 * 24 * time.Hour

// Principal is an authenticated username. Only Sessions.Validate creates one.
type Principal struct {
	username  string
	expiresAt int64
}

func (p Principal) Username() string { return p.username }

// ExpiresAt is the session expiry in epoch seconds
func (p Principal) ExpiresAt() int64 { return p.expiresAt }

// Sessions issues, validates and invalidates bearer tokens.
// The store is authoritative: nothing is cached in memory.
type Sessions struct {
	repo         *database.SessionRepo
	ttl          time.Duration
	sweepOnIssue bool
	now          func() time.Time
	log          *zap.Logger
}

// SessionOption configures Sessions
type SessionOption func(*Sessions)

// WithClock replaces time.Now
func WithClock(now func() time.Time) SessionOption {
	return func(s *Sessions) { s.now = now }
}

// WithSweepOnIssue toggles deleting all expired sessions before each issue
func WithSweepOnIssue(on bool) SessionOption {
	return func(s *Sessions) { s.sweepOnIssue = on }
}

// WithSessionLogger sets the logger
func WithSessionLogger(l *zap.Logger) SessionOption {
	return func(s *Sessions) { s.log = logging.OrNop(l) }
}

// NewSessions creates a session manager on db
func NewSessions(db bun.IDB, ttl time.Duration, opts ...SessionOption) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &Sessions{
		repo:         database.NewSessionRepo(db),
		ttl:          ttl,
		sweepOnIssue: true,
		now:          time.Now,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the session lifetime
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue creates a session for a user whose credentials were already verified.
func (s *Sessions) Issue(ctx context.Context, username string) (string, time.Time, error) {
	now := s.now()

	if s.sweepOnIssue {
		if n, err := s.repo.DeleteExpired(ctx, now); err != nil {
			s.log.Warn("expired session sweep failed", zap.Error(err))
		} else if n > 0 {
			s.log.Debug("expired sessions swept", zap.Int64("count", n))
		}
	}

	expiresAt := now.Add(s.ttl)
	token, _, err := s.repo.Create(ctx, username, now, expiresAt)
	if err != nil {
		s.log.Error("create session failed", zap.String("username", username), zap.Error(err))
		return "", time.Time{}, apperr.Internal(err)
	}
	return token, time.Unix(expiresAt.Unix(), 0).UTC(), nil
}

// Validate resolves a token to its user. An expired session is deleted on
// the spot. With slide set, an active session's expiry moves to now+TTL.
func (s *Sessions) Validate(ctx context.Context, token string, slide bool) (Principal, error) {
	if token == "" {
		return Principal{}, apperr.ErrInvalidOrExpiredSession
	}

	session, err := s.repo.GetByToken(ctx, token)
	if errors.Is(err, database.ErrSessionNotFound) {
		return Principal{}, apperr.ErrInvalidOrExpiredSession
	}
	if err != nil {
		s.log.Error("load session failed", zap.Error(err))
		return Principal{}, apperr.Internal(err)
	}

	now := s.now()
	if session.Expired(now) {
		if _, err := s.repo.DeleteIfExpired(ctx, token, now); err != nil {
			s.log.Warn("delete expired session failed", zap.Error(err))
		}
		return Principal{}, apperr.ErrInvalidOrExpiredSession
	}

	p := Principal{username: session.Username, expiresAt: session.ExpiresAt}
	if !slide {
		return p, nil
	}

	next := now.Add(s.ttl)
	extended, err := s.repo.Extend(ctx, token, next)
	if err != nil {
		s.log.Error("extend session failed", zap.Error(err))
		return Principal{}, apperr.Internal(err)
	}
	if extended {
		p.expiresAt = next.Unix()
	}
	return p, nil
}

// Invalidate logs a token out. Tokens that are already invalid are
// reported as such, never as a second successful logout.
func (s *Sessions) Invalidate(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, apperr.New(apperr.KindInvalidInput, "Token is required.")
	}

	p, err := s.Validate(ctx, token, false)
	if err != nil {
		return Principal{}, err
	}

	if err := s.repo.DeleteByToken(ctx, token); err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			return Principal{}, apperr.ErrInvalidOrExpiredSession
		}
		s.log.Error("delete session failed", zap.Error(err))
		return Principal{}, apperr.Internal(err)
	}
	return p, nil
}

// Sweep deletes every expired session and returns how many were removed
func (s *Sessions) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

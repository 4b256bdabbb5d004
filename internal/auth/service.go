package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"nnoitra-backend/internal/apperr"
	"nnoitra-backend/internal/database"
	"nnoitra-backend/internal/logging"
	"nnoitra-backend/internal/models"
)

// Service handles authentication logic on top of Credentials and Sessions
type Service struct {
	creds    *Credentials
	sessions *Sessions
	audit    *database.AuditRepo
	log      *zap.Logger
}

// NewService creates a new auth service. audit may be nil.
func NewService(creds *Credentials, sessions *Sessions, audit *database.AuditRepo, log *zap.Logger) *Service {
	return &Service{
		creds:    creds,
		sessions: sessions,
		audit:    audit,
		log:      logging.OrNop(log),
	}
}

// ClientInfo describes where a request came from, for the audit log
type ClientInfo struct {
	IPAddress string
	UserAgent string
	RequestID string
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// LoginResponse represents a successful login
type LoginResponse struct {
	User      string    `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"-"`
}

// Register creates a user
func (s *Service) Register(ctx context.Context, username, password string, client ClientInfo) error {
	if err := s.creds.Create(ctx, username, password); err != nil {
		return err
	}
	s.record(ctx, username, models.ActionUserCreate, nil, client)
	return nil
}

// Login verifies credentials and issues a session
func (s *Service) Login(ctx context.Context, req LoginRequest, client ClientInfo) (*LoginResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "Username and password are required.")
	}

	ok, err := s.creds.Verify(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.record(ctx, req.Username, models.ActionLoginFailed, nil, client)
		return nil, apperr.ErrInvalidCredentials
	}

	token, expiresAt, err := s.sessions.Issue(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	s.record(ctx, req.Username, models.ActionLogin, map[string]string{"user_agent": client.UserAgent}, client)
	return &LoginResponse{User: req.Username, Token: token, ExpiresAt: expiresAt}, nil
}

// Logout invalidates a session
func (s *Service) Logout(ctx context.Context, token string, client ClientInfo) error {
	p, err := s.sessions.Invalidate(ctx, token)
	if err != nil {
		return err
	}
	s.record(ctx, p.Username(), models.ActionLogout, nil, client)
	return nil
}

// ValidateToken validates a session token, optionally sliding its expiry
func (s *Service) ValidateToken(ctx context.Context, token string, slide bool) (Principal, error) {
	return s.sessions.Validate(ctx, token, slide)
}

// ChangePassword changes the password of the user owning token
func (s *Service) ChangePassword(ctx context.Context, token, oldPassword, newPassword string, client ClientInfo) error {
	p, err := s.sessions.Validate(ctx, token, false)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidOrExpiredSession) {
			return apperr.New(apperr.KindInvalidOrExpiredSession, "Invalid or expired session. Please log in again.")
		}
		return err
	}

	if err := s.creds.ChangePassword(ctx, p, oldPassword, newPassword); err != nil {
		return err
	}
	s.record(ctx, p.Username(), models.ActionPasswordChange, nil, client)
	return nil
}

// record writes an audit entry. Failures are logged and otherwise ignored.
func (s *Service) record(ctx context.Context, username, action string, details interface{}, client ClientInfo) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, username, action, details, client.IPAddress, client.RequestID); err != nil {
		s.log.Warn("audit log write failed",
			zap.String("action", action),
			zap.String("username", username),
			zap.Error(err))
	}
}

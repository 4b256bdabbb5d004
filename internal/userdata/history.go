package userdata

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"nnoitra-backend/internal/apperr"
	"nnoitra-backend/internal/database"
	"nnoitra-backend/internal/logging"
	"nnoitra-backend/internal/models"
)

// DefaultHistSize bounds a user's history when HISTSIZE is unset
const DefaultHistSize = 1000

// History is a per-user, size-bounded command log
type History struct {
	db          bun.IDB
	defaultSize int
	now         func() time.Time
	log         *zap.Logger
}

// HistoryOption configures History
type HistoryOption func(*History)

// WithHistoryClock replaces time.Now
func WithHistoryClock(now func() time.Time) HistoryOption {
	return func(h *History) { h.now = now }
}

// WithHistoryLogger sets the logger
func WithHistoryLogger(l *zap.Logger) HistoryOption {
	return func(h *History) { h.log = logging.OrNop(l) }
}

// NewHistory creates a history log on db. defaultSize applies to users
// without a usable HISTSIZE.
func NewHistory(db bun.IDB, defaultSize int, opts ...HistoryOption) *History {
	if defaultSize <= 0 {
		defaultSize = DefaultHistSize
	}
	h := &History{
		db:          db,
		defaultSize: defaultSize,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Append records a command and trims the user's log to HISTSIZE entries.
// Both steps commit together; concurrent appends for one user are
// serialized on the user's row.
func (h *History) Append(ctx context.Context, username, command string) error {
	if command == "" {
		return apperr.New(apperr.KindInvalidInput, "Command is required.")
	}

	var trimmed int64
	err := h.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := database.NewUserRepo(tx).Lock(ctx, username); err != nil {
			return err
		}

		entry := &models.HistoryEntry{
			Username:  username,
			Command:   command,
			Timestamp: h.now().Unix(),
		}
		repo := database.NewHistoryRepo(tx)
		if err := repo.Append(ctx, entry); err != nil {
			return err
		}

		size, err := h.size(ctx, tx, username)
		if err != nil {
			return err
		}
		trimmed, err = repo.Trim(ctx, username, size)
		return err
	})
	if err != nil {
		h.log.Error("append history failed", zap.String("username", username), zap.Error(err))
		return apperr.Internal(err)
	}
	if trimmed > 0 {
		h.log.Debug("history trimmed", zap.String("username", username), zap.Int64("rows", trimmed))
	}
	return nil
}

// List returns the user's commands, most recent first, at most HISTSIZE
func (h *History) List(ctx context.Context, username string) ([]string, error) {
	size, err := h.Size(ctx, username)
	if err != nil {
		h.log.Error("read HISTSIZE failed", zap.String("username", username), zap.Error(err))
		return nil, err
	}
	if size == 0 {
		return []string{}, nil
	}

	commands, err := database.NewHistoryRepo(h.db).ListCommands(ctx, username, size)
	if err != nil {
		h.log.Error("list history failed", zap.String("username", username), zap.Error(err))
		return nil, apperr.Internal(err)
	}
	return commands, nil
}

// Size returns the user's effective HISTSIZE
func (h *History) Size(ctx context.Context, username string) (int, error) {
	size, err := h.size(ctx, h.db, username)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return size, nil
}

// size reads HISTSIZE from USERSPACE, then REMOTE. Anything other than a
// plain run of digits falls back to the default.
func (h *History) size(ctx context.Context, db bun.IDB, username string) (int, error) {
	repo := database.NewUserDataRepo(db)
	for _, category := range []string{models.CategoryUserspace, models.CategoryRemote} {
		item, err := repo.Get(ctx, username, category, models.HistSizeKey)
		if errors.Is(err, database.ErrDataNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if item.Value == nil {
			continue
		}
		if n, ok := parseHistSize(*item.Value); ok {
			return n, nil
		}
		return h.defaultSize, nil
	}
	return h.defaultSize, nil
}

func parseHistSize(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Package userdata holds the per-user key/value store and command history.
package userdata

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"nnoitra-backend/internal/apperr"
	"nnoitra-backend/internal/database"
	"nnoitra-backend/internal/logging"
	"nnoitra-backend/internal/models"
)

// Store reads and writes namespaced key/value rows per user
type Store struct {
	repo *database.UserDataRepo
	log  *zap.Logger
}

// NewStore creates a user data store on db
func NewStore(db bun.IDB, log *zap.Logger) *Store {
	return &Store{
		repo: database.NewUserDataRepo(db),
		log:  logging.OrNop(log),
	}
}

// ParseSortOrder accepts asc or desc in any case. Empty means ascending.
func ParseSortOrder(s string) (models.SortOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(models.SortAsc):
		return models.SortAsc, nil
	case string(models.SortDesc):
		return models.SortDesc, nil
	default:
		return "", apperr.New(apperr.KindInvalidInput, "Invalid sort order.")
	}
}

// Get returns a category's entries ordered by key. For ENV it returns an
// Env with the REMOTE and USERSPACE categories read together; otherwise it
// returns Values.
func (s *Store) Get(ctx context.Context, username, category string, order models.SortOrder) (any, error) {
	if category == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "category is required.")
	}
	if order == "" {
		order = models.SortAsc
	}
	if order != models.SortAsc && order != models.SortDesc {
		return nil, apperr.New(apperr.KindInvalidInput, "Invalid sort order.")
	}

	if category == models.CategoryEnv {
		return s.Env(ctx, username, order)
	}
	return s.Category(ctx, username, category, order)
}

// Category returns the entries of one concrete category
func (s *Store) Category(ctx context.Context, username, category string, order models.SortOrder) (Values, error) {
	items, err := s.repo.ListCategory(ctx, username, category, order)
	if err != nil {
		s.log.Error("read user data failed",
			zap.String("username", username),
			zap.String("category", category),
			zap.Error(err))
		return nil, apperr.Internal(err)
	}
	return valuesFrom(items), nil
}

// Env reads REMOTE and USERSPACE in a single query
func (s *Store) Env(ctx context.Context, username string, order models.SortOrder) (*Env, error) {
	items, err := s.repo.ListCategories(ctx, username, []string{models.CategoryRemote, models.CategoryUserspace})
	if err != nil {
		s.log.Error("read env failed", zap.String("username", username), zap.Error(err))
		return nil, apperr.Internal(err)
	}

	env := &Env{Remote: Values{}, Userspace: Values{}}
	for _, it := range items {
		e := Entry{Key: it.Key, Value: it.Value}
		switch it.Category {
		case models.CategoryRemote:
			env.Remote = append(env.Remote, e)
		case models.CategoryUserspace:
			env.Userspace = append(env.Userspace, e)
		}
	}
	if order == models.SortDesc {
		env.Remote = env.Remote.reversed()
		env.Userspace = env.Userspace.reversed()
	}
	return env, nil
}

// Set inserts or replaces one value. A nil value is rejected; use Delete.
func (s *Store) Set(ctx context.Context, username, category, key string, value *string) error {
	if category == "" || key == "" || value == nil {
		return apperr.New(apperr.KindInvalidInput, "category, key, and value are required.")
	}

	err := s.repo.Upsert(ctx, &models.UserDataItem{
		Username: username,
		Category: category,
		Key:      key,
		Value:    value,
	})
	if err != nil {
		s.log.Error("write user data failed",
			zap.String("username", username),
			zap.String("category", category),
			zap.Error(err))
		return apperr.Internal(err)
	}
	return nil
}

// Delete removes one key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, username, category, key string) error {
	if category == "" || key == "" {
		return apperr.New(apperr.KindInvalidInput, "category and key are required.")
	}

	n, err := s.repo.Delete(ctx, username, category, key)
	if err != nil {
		s.log.Error("delete user data failed",
			zap.String("username", username),
			zap.String("category", category),
			zap.Error(err))
		return apperr.Internal(err)
	}
	s.log.Debug("user data deleted",
		zap.String("username", username),
		zap.String("category", category),
		zap.Int64("rows", n))
	return nil
}

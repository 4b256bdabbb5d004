package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nnoitra-backend/internal/auth"
	"nnoitra-backend/internal/config"
	"nnoitra-backend/internal/database"
	"nnoitra-backend/internal/dispatch"
	"nnoitra-backend/internal/metrics"
	"nnoitra-backend/internal/userdata"
)

// services is the object graph shared by the commands
type services struct {
	db         *database.DB
	audit      *database.AuditRepo
	creds      *auth.Credentials
	sessions   *auth.Sessions
	auth       *auth.Service
	store      *userdata.Store
	history    *userdata.History
	dispatcher *dispatch.Dispatcher
}

// openServices opens and migrates the store and wires the services on it.
// m may be nil.
func openServices(ctx context.Context, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*services, error) {
	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	audit := database.NewAuditRepo(db)
	creds := auth.NewCredentials(db, auth.DefaultPasswordParams(), log.Named("credentials"))
	sessions := auth.NewSessions(db, cfg.Session.TTL,
		auth.WithSweepOnIssue(cfg.Session.SweepOnLogin),
		auth.WithSessionLogger(log.Named("sessions")))
	authSvc := auth.NewService(creds, sessions, audit, log.Named("auth"))
	store := userdata.NewStore(db, log.Named("userdata"))
	history := userdata.NewHistory(db, cfg.History.DefaultSize, userdata.WithHistoryLogger(log.Named("history")))

	return &services{
		db:       db,
		audit:    audit,
		creds:    creds,
		sessions: sessions,
		auth:     authSvc,
		store:    store,
		history:  history,
		dispatcher: dispatch.New(authSvc, store, history,
			dispatch.WithMetrics(m),
			dispatch.WithLogger(log.Named("dispatch"))),
	}, nil
}

func (s *services) Close() error {
	return s.db.Close()
}

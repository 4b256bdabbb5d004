// Package sweeper periodically removes expired sessions and old audit logs.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"nnoitra-backend/internal/logging"
	"nnoitra-backend/internal/metrics"
)

// DefaultRunTimeout bounds a single scheduled run
const DefaultRunTimeout = time.Minute

// SessionSweeper deletes expired sessions
type SessionSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// AuditPruner deletes audit logs older than a cutoff
type AuditPruner interface {
	DeleteOlderThan(ctx context.Context, t time.Time) (int64, error)
}

// Result is what a run removed
type Result struct {
	Sessions  int64
	AuditLogs int64
}

// Sweeper runs the cleanup on a cron schedule
type Sweeper struct {
	sessions  SessionSweeper
	audit     AuditPruner
	retention time.Duration
	timeout   time.Duration
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
	cron      *cron.Cron
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithAuditRetention prunes audit logs older than retention on each run.
// A zero retention keeps them.
func WithAuditRetention(p AuditPruner, retention time.Duration) Option {
	return func(s *Sweeper) {
		s.audit = p
		s.retention = retention
	}
}

// WithMetrics counts removed rows on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Sweeper) { s.log = logging.OrNop(l) }
}

// WithClock replaces time.Now for the audit cutoff
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithRunTimeout bounds each scheduled run
func WithRunTimeout(d time.Duration) Option {
	return func(s *Sweeper) { s.timeout = d }
}

// New creates a sweeper for sessions
func New(sessions SessionSweeper, opts ...Option) *Sweeper {
	s := &Sweeper{
		sessions: sessions,
		timeout:  DefaultRunTimeout,
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce performs one cleanup pass. Both steps run even if the first fails.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	var errs []error

	n, err := s.sessions.Sweep(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("sweep sessions: %w", err))
	} else {
		res.Sessions = n
		s.metrics.SessionsSwept(n)
	}

	if s.audit != nil && s.retention > 0 {
		n, err := s.audit.DeleteOlderThan(ctx, s.now().Add(-s.retention))
		if err != nil {
			errs = append(errs, fmt.Errorf("prune audit logs: %w", err))
		} else {
			res.AuditLogs = n
			s.metrics.AuditPruned(n)
		}
	}

	return res, errors.Join(errs...)
}

// Start schedules RunOnce. schedule is a standard cron spec or a
// descriptor such as "@every 1h".
func (s *Sweeper) Start(schedule string) error {
	if s.cron != nil {
		return errors.New("sweeper already started")
	}

	logger := cronLogger{s.log.Sugar()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(schedule, s.run); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cron = c
	c.Start()
	s.log.Info("session sweeper started", zap.String("schedule", schedule))
	return nil
}

// Stop prevents new runs and waits for a running one, or for ctx
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error("sweep failed", zap.Error(err))
	}
	if res.Sessions > 0 || res.AuditLogs > 0 {
		s.log.Info("sweep completed",
			zap.Int64("sessions", res.Sessions),
			zap.Int64("audit_logs", res.AuditLogs))
	}
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

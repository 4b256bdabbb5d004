package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nnoitra-backend/internal/auth"
	"nnoitra-backend/internal/database"
	"nnoitra-backend/internal/database/dbtest"
	"nnoitra-backend/internal/metrics"
	"nnoitra-backend/internal/models"
)

type fakeSessions struct {
	calls atomic.Int64
	n     int64
	err   error
}

func (f *fakeSessions) Sweep(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.n, f.err
}

type fakePruner struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakePruner) DeleteOlderThan(_ context.Context, t time.Time) (int64, error) {
	f.cutoff = t
	return f.n, f.err
}

func TestRunOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sessions := &fakeSessions{n: 3}
	pruner := &fakePruner{n: 2}
	m := metrics.New(prometheus.NewRegistry())

	s := New(sessions,
		WithAuditRetention(pruner, 24*time.Hour),
		WithMetrics(m),
		WithClock(func() time.Time { return now }))

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Sessions: 3, AuditLogs: 2}, res)
	assert.Equal(t, now.Add(-24*time.Hour), pruner.cutoff)
}

func TestRunOnce_ZeroRetentionKeepsAudit(t *testing.T) {
	pruner := &fakePruner{n: 9}
	s := New(&fakeSessions{}, WithAuditRetention(pruner, 0))

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.AuditLogs)
	assert.True(t, pruner.cutoff.IsZero())
}

func TestRunOnce_ContinuesAfterSessionError(t *testing.T) {
	pruner := &fakePruner{n: 1}
	s := New(&fakeSessions{err: errors.New("locked")}, WithAuditRetention(pruner, time.Hour))

	res, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep sessions")
	assert.Equal(t, int64(1), res.AuditLogs)
}

func TestRunOnce_Store(t *testing.T) {
	db := dbtest.Open(t)
	past := time.Now().Add(-48 * time.Hour)
	users := database.NewUserRepo(db)
	for _, name := range []string{"alice", "bob"} {
		require.NoError(t, users.Create(context.Background(), &models.User{Username: name, PasswordHash: "x"}))
	}

	old := auth.NewSessions(db, time.Hour, auth.WithClock(func() time.Time { return past }))
	_, _, err := old.Issue(context.Background(), "alice")
	require.NoError(t, err)
	live := auth.NewSessions(db, time.Hour, auth.WithSweepOnIssue(false))
	_, _, err = live.Issue(context.Background(), "bob")
	require.NoError(t, err)

	audit := database.NewAuditRepo(db)
	require.NoError(t, audit.Log(context.Background(), "alice", "login", nil, "127.0.0.1", "r1"))

	reg := prometheus.NewRegistry()
	s := New(live, WithAuditRetention(audit, time.Hour), WithMetrics(metrics.New(reg)))
	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Sessions)
	assert.Equal(t, int64(0), res.AuditLogs)

	// Entries newer than the cutoff survive; move the clock forward
	s = New(live, WithAuditRetention(audit, time.Hour),
		WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) }))
	res, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.AuditLogs)

	n, err := testutil.GatherAndCount(reg, "nnoitra_sessions_swept_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := New(&fakeSessions{})
	err := s.Start("every now and then")
	require.Error(t, err)
	require.NoError(t, s.Stop(context.Background()))
}

func TestStart_RunsOnSchedule(t *testing.T) {
	sessions := &fakeSessions{}
	s := New(sessions)
	require.NoError(t, s.Start("@every 1s"))
	require.Error(t, s.Start("@every 1s"))

	assert.Eventually(t, func() bool { return sessions.calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

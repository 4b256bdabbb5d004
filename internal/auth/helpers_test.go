package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nnoitra-backend/internal/database"
	"nnoitra-backend/internal/database/dbtest"
)

// fastParams keeps argon2 cheap in tests
var fastParams = PasswordParams{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db    *database.DB
	clock *fakeClock
	creds *Credentials
	sess  *Sessions
	svc   *Service
	audit *database.AuditRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	clock := newFakeClock()
	creds := NewCredentials(db, fastParams, nil)
	sess := NewSessions(db, DefaultSessionTTL, WithClock(clock.Now))
	audit := database.NewAuditRepo(db)
	return &fixture{
		db:    db,
		clock: clock,
		creds: creds,
		sess:  sess,
		svc:   NewService(creds, sess, audit, nil),
		audit: audit,
	}
}

// addUsers registers users so sessions can reference them
func (f *fixture) addUsers(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, f.creds.Create(context.Background(), name, "pw"))
	}
}

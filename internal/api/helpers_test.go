package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"nnoitra-backend/internal/auth"
	"nnoitra-backend/internal/config"
	"nnoitra-backend/internal/database"
	"nnoitra-backend/internal/database/dbtest"
	"nnoitra-backend/internal/dispatch"
	"nnoitra-backend/internal/metrics"
	"nnoitra-backend/internal/system"
	"nnoitra-backend/internal/userdata"
)

var cheap = auth.PasswordParams{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

type testServer struct {
	e     *echo.Echo
	reg   *prometheus.Registry
	audit *database.AuditRepo
}

type serverOption func(*Deps)

func withRequireFSAuth(d *Deps) { d.Config.FS.RequireAuth = true }

func withStore(p Pinger) serverOption {
	return func(d *Deps) { d.Store = p }
}

func withLimiter(rl *auth.RateLimiter) serverOption {
	return func(d *Deps) { d.Limiter = rl }
}

func withTrustedProxies(cidrs ...string) serverOption {
	return func(d *Deps) { d.Config.Server.TrustedProxies = cidrs }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	db := dbtest.Open(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	audit := database.NewAuditRepo(db)
	svc := auth.NewService(
		auth.NewCredentials(db, cheap, nil),
		auth.NewSessions(db, auth.DefaultSessionTTL),
		audit, nil)
	d := dispatch.New(svc, userdata.NewStore(db, nil), userdata.NewHistory(db, 1000), dispatch.WithMetrics(m))

	root := t.TempDir()
	mustWrite := func(rel, content string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	mustWrite("motd.txt", "welcome")
	mustWrite("docs/readme.md", "# docs")
	mustWrite("docs/.hidden", "x")
	mustWrite("run.py", "print()")
	sandbox, err := system.NewSandbox(root, "/fs")
	require.NoError(t, err)

	deps := Deps{
		Config: config.Config{
			Server: config.ServerConfig{CORSOrigins: []string{"http://localhost:3000"}},
			FS:     config.FSConfig{Root: root, PublicPrefix: "/fs"},
		},
		Auth:       svc,
		Dispatcher: d,
		Sandbox:    sandbox,
		Audit:      audit,
		Store:      db,
		Gatherer:   reg,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testServer{e: NewServer(deps), reg: reg, audit: audit}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// postJSON sends fields as a JSON body to the accounting endpoint
func (s *testServer) postJSON(t *testing.T, action string, fields map[string]any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(fields)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/accounting?action="+url.QueryEscape(action), bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range header {
		req.Header[k] = v
	}
	return s.do(req)
}

func (s *testServer) postForm(action string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/accounting?action="+url.QueryEscape(action), strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return s.do(req)
}

func (s *testServer) postMultipart(t *testing.T, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/accounting", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return s.do(req)
}

func (s *testServer) get(target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	return s.do(req)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func bearer(token string) http.Header {
	return http.Header{echo.HeaderAuthorization: []string{"Bearer " + token}}
}

// register creates a user and logs in, returning the token
func (s *testServer) register(t *testing.T, user, pass string) string {
	t.Helper()
	rec := s.postJSON(t, "useradd", map[string]any{"username": user, "password": pass}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.postJSON(t, "login", map[string]any{"username": user, "password": pass}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody(t, rec)["token"].(string)
}

type failingStore struct{}

func (failingStore) Ping(context.Context) error { return errors.New("connection refused") }

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

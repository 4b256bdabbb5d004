package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nnoitra-backend/internal/auth"
	"nnoitra-backend/internal/models"
)

func TestAccounting_SessionFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.postJSON(t, "useradd", map[string]any{"username": "alice", "password": "secret"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","message":"User \"alice\" created successfully."}`, rec.Body.String())

	rec = s.postForm("login", url.Values{"username": {"alice"}, "password": {"secret"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Login successful.", body["message"])
	assert.Equal(t, "alice", body["user"])
	token := body["token"].(string)
	assert.Len(t, token, 64)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, int64(body["expires_at"].(float64)), cookies[0].Expires.Unix())

	// Token from the Authorization header
	rec = s.postJSON(t, "validate", map[string]any{}, bearer(token))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Session is valid.", decodeBody(t, rec)["message"])

	// Token from the cookie
	cookieHeader := http.Header{"Cookie": []string{auth.SessionCookieName + "=" + token}}
	rec = s.postJSON(t, "set_data", map[string]any{"category": "ENV", "key": "HOME", "value": "/home/alice"}, cookieHeader)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.postJSON(t, "get_data", map[string]any{"category": "ENV"}, cookieHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"REMOTE":{},"USERSPACE":{}}`, mustJSON(t, decodeBody(t, rec)["data"]))

	rec = s.postJSON(t, "logout", map[string]any{"token": token}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)

	rec = s.postJSON(t, "validate", map[string]any{}, bearer(token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired session.", decodeBody(t, rec)["message"])
}

func TestAccounting_PayloadTokenWinsOverHeader(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice", "secret")

	rec := s.postJSON(t, "validate", map[string]any{"token": "bogus"}, bearer(token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccounting_MultipartWithActionField(t *testing.T) {
	s := newTestServer(t)

	rec := s.postMultipart(t, map[string]string{
		"action":   "add_user",
		"username": "bob",
		"password": "pw",
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `User "bob" created successfully.`, decodeBody(t, rec)["message"])

	rec = s.postMultipart(t, map[string]string{"action": "login", "username": "bob", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid username or password.", decodeBody(t, rec)["message"])
}

func TestAccounting_MalformedBody(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name        string
		contentType string
		body        string
	}{
		{"broken json", echo.MIMEApplicationJSON, `{"username":`},
		{"json array", echo.MIMEApplicationJSON, `["alice"]`},
		{"nested json", echo.MIMEApplicationJSON, `{"username":{"first":"a"}}`},
		{"bad form escape", echo.MIMEApplicationForm, "username=%zz"},
		{"unsupported type", echo.MIMETextPlain, "username=alice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, "/api/accounting?action=useradd", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, tc.contentType)
			rec := s.do(req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"status":"error","message":"Malformed request body."}`, rec.Body.String())
		})
	}
}

func TestAccounting_InvalidAction(t *testing.T) {
	s := newTestServer(t)

	rec := s.postJSON(t, "format_disk", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"Invalid action."}`, rec.Body.String())

	req, _ := http.NewRequest(http.MethodPost, "/api/accounting", nil)
	rec = s.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid action.", decodeBody(t, rec)["message"])
}

func TestAccounting_LoginRateLimit(t *testing.T) {
	rl := auth.NewRateLimiter(2, time.Minute, 30*time.Second)
	t.Cleanup(rl.Close)
	s := newTestServer(t, withLimiter(rl))

	rec := s.postJSON(t, "useradd", map[string]any{"username": "alice", "password": "secret"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < 2; i++ {
		rec = s.postJSON(t, "login", map[string]any{"username": "alice", "password": "wrong"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec = s.postMultipart(t, map[string]string{"action": "login", "username": "alice", "password": "secret"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many login attempts.", decodeBody(t, rec)["message"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other actions are not limited
	rec = s.postJSON(t, "useradd", map[string]any{"username": "bob", "password": "pw"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAccounting_LoginRateLimitIgnoresForwardedFor(t *testing.T) {
	rl := auth.NewRateLimiter(2, time.Minute, 30*time.Second)
	t.Cleanup(rl.Close)
	s := newTestServer(t, withLimiter(rl))

	rec := s.postJSON(t, "useradd", map[string]any{"username": "alice", "password": "secret"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		hdr := http.Header{
			echo.HeaderXForwardedFor: []string{fmt.Sprintf("203.0.113.%d", i+1)},
			echo.HeaderXRealIP:       []string{fmt.Sprintf("198.51.100.%d", i+1)},
		}
		rec = s.postJSON(t, "login", map[string]any{"username": "alice", "password": "wrong"}, hdr)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{
		http.StatusUnauthorized, http.StatusUnauthorized,
		http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests,
	}, codes)

	logs, _, err := s.audit.List(context.Background(), models.AuditFilter{Username: "alice", Action: models.ActionLoginFailed})
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	for _, l := range logs {
		assert.Equal(t, "192.0.2.1", l.IPAddress, "the peer address is recorded")
	}
}

func TestAccounting_LoginRateLimitBehindTrustedProxy(t *testing.T) {
	rl := auth.NewRateLimiter(2, time.Minute, 30*time.Second)
	t.Cleanup(rl.Close)
	s := newTestServer(t, withLimiter(rl), withTrustedProxies("192.0.2.0/24"))

	rec := s.postJSON(t, "useradd", map[string]any{"username": "alice", "password": "secret"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	client := func(ip string) http.Header {
		return http.Header{echo.HeaderXForwardedFor: []string{ip}}
	}
	for i := 0; i < 2; i++ {
		rec = s.postJSON(t, "login", map[string]any{"username": "alice", "password": "wrong"}, client("203.0.113.9"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec = s.postJSON(t, "login", map[string]any{"username": "alice", "password": "wrong"}, client("203.0.113.9"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = s.postJSON(t, "login", map[string]any{"username": "alice", "password": "secret"}, client("203.0.113.10"))
	assert.Equal(t, http.StatusOK, rec.Code, "another client behind the proxy has its own budget")
}

func TestAccounting_SuccessfulLoginResetsLimit(t *testing.T) {
	rl := auth.NewRateLimiter(2, time.Minute, time.Minute)
	t.Cleanup(rl.Close)
	s := newTestServer(t, withLimiter(rl))

	rec := s.postJSON(t, "useradd", map[string]any{"username": "alice", "password": "secret"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.postJSON(t, "login", map[string]any{"username": "alice", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.postJSON(t, "login", map[string]any{"username": "alice", "password": "secret"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < 2; i++ {
		rec = s.postJSON(t, "login", map[string]any{"username": "alice", "password": "wrong"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestAccounting_HistoryOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice", "secret")

	for _, cmd := range []string{"ls", "cat motd.txt"} {
		rec := s.postJSON(t, "add_history", map[string]any{"command": cmd}, bearer(token))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Command added to history.", decodeBody(t, rec)["message"])
	}

	rec := s.postJSON(t, "get_history", map[string]any{}, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"cat motd.txt", "ls"}, decodeBody(t, rec)["history"])
}

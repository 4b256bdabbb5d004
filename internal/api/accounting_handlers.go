package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"nnoitra-backend/internal/auth"
	"nnoitra-backend/internal/dispatch"
)

// accountingHandler handles POST /api/accounting
func (h *Handler) accountingHandler(c echo.Context) error {
	p := payloadFrom(c)
	action := actionFrom(c)

	if _, ok := p[dispatch.FieldToken]; !ok {
		if token := auth.TokenFromRequest(c); token != "" {
			p[dispatch.FieldToken] = token
		}
	}

	resp := h.dispatcher.Dispatch(c.Request().Context(), action, p, clientInfo(c))

	if resp.OK() {
		switch dispatch.Canonical(action) {
		case dispatch.ActionLogin:
			if h.limiter != nil {
				h.limiter.RecordSuccess(c.RealIP())
			}
			token, _ := resp.Body["token"].(string)
			expiresAt, _ := resp.Body["expires_at"].(int64)
			setSessionCookie(c, token, time.Unix(expiresAt, 0))
		case dispatch.ActionLogout:
			clearSessionCookie(c)
		}
	}

	return c.JSON(resp.Code, resp.Body)
}

func setSessionCookie(c echo.Context, token string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.IsTLS(),
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.IsTLS(),
		SameSite: http.SameSiteStrictMode,
	})
}

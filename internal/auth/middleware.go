package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Context keys for storing user data
const (
	ContextKeyPrincipal = "principal"
	SessionCookieName   = "session_token"
)

// RequireAuth middleware checks for a valid session without extending it
func RequireAuth(authSvc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := TokenFromRequest(c)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"status":  "error",
					"message": "Token is required.",
				})
			}

			p, err := authSvc.ValidateToken(c.Request().Context(), token, false)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"status":  "error",
					"message": "Invalid or expired session.",
				})
			}

			c.Set(ContextKeyPrincipal, p)
			return next(c)
		}
	}
}

// TokenFromRequest extracts the session token from the request
func TokenFromRequest(c echo.Context) string {
	// Try Authorization header first (Bearer token)
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	// Try cookie
	cookie, err := c.Cookie(SessionCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	// Try query parameter (useful for file URLs that can't use headers)
	if token := c.QueryParam("token"); token != "" {
		return token
	}

	return ""
}

// PrincipalFromContext retrieves the authenticated principal from the context
func PrincipalFromContext(c echo.Context) (Principal, bool) {
	p, ok := c.Get(ContextKeyPrincipal).(Principal)
	return p, ok
}

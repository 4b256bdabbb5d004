package api

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nnoitra-backend/internal/auth"
	"nnoitra-backend/internal/dispatch"
)

// RegisterRoutes sets up all routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	gatherer := h.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api")

	// Health check (public)
	api.GET("/health", h.healthCheck)

	// Account, data and history actions. The body is decoded before the
	// limiter so an action given in the body is limited as well.
	api.POST("/accounting", h.accountingHandler, h.decodeAccounting, h.loginLimit())

	// Audit trail of the calling user
	if h.audit != nil {
		api.GET("/audit", h.listAuditLogsHandler, auth.RequireAuth(h.auth))
	}

	if h.sandbox != nil {
		fsAuth := echo.MiddlewareFunc(passThrough)
		if h.cfg.FS.RequireAuth {
			fsAuth = auth.RequireAuth(h.auth)
		}
		api.GET("/fs", h.fsHandler, fsAuth)

		if prefix := h.cfg.FS.PublicPrefix; prefix != "" && prefix != "/" {
			e.GET(prefix+"/*", h.staticFileHandler, fsAuth)
		}
	}
}

// loginLimit rate limits login actions when a limiter is configured
func (h *Handler) loginLimit() echo.MiddlewareFunc {
	if h.limiter == nil {
		return passThrough
	}
	return h.limiter.Middleware(func(c echo.Context) bool {
		return dispatch.Canonical(actionFrom(c)) == dispatch.ActionLogin
	})
}

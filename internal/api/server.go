// Package api exposes the accounting, filesystem, audit, health and metrics
// endpoints over echo.
package api

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"nnoitra-backend/internal/auth"
	"nnoitra-backend/internal/config"
	"nnoitra-backend/internal/database"
	"nnoitra-backend/internal/dispatch"
	"nnoitra-backend/internal/logging"
	"nnoitra-backend/internal/system"
)

// DefaultBodyLimit caps request bodies
const DefaultBodyLimit = "2M"

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the HTTP layer is built on. Limiter, Audit, Sandbox
// and Gatherer may be nil, which disables the matching feature.
type Deps struct {
	Config     config.Config
	Auth       *auth.Service
	Dispatcher *dispatch.Dispatcher
	Sandbox    *system.Sandbox
	Audit      *database.AuditRepo
	Limiter    *auth.RateLimiter
	Store      Pinger
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger
}

// Handler holds the dependencies of every route
type Handler struct {
	cfg        config.Config
	auth       *auth.Service
	dispatcher *dispatch.Dispatcher
	sandbox    *system.Sandbox
	audit      *database.AuditRepo
	limiter    *auth.RateLimiter
	store      Pinger
	gatherer   prometheus.Gatherer
	log        *zap.Logger
}

// NewHandler creates a handler from deps
func NewHandler(d Deps) *Handler {
	return &Handler{
		cfg:        d.Config,
		auth:       d.Auth,
		dispatcher: d.Dispatcher,
		sandbox:    d.Sandbox,
		audit:      d.Audit,
		limiter:    d.Limiter,
		store:      d.Store,
		gatherer:   d.Gatherer,
		log:        logging.OrNop(d.Logger),
	}
}

// NewServer builds the echo instance with middleware and every route
func NewServer(d Deps) *echo.Echo {
	h := NewHandler(d)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	trusted, err := d.Config.Server.TrustedNets()
	if err != nil {
		h.log.Warn("ignoring trusted proxies", zap.Error(err))
		trusted = nil
	}
	e.IPExtractor = ipExtractor(trusted)

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(RequestLogger(h.log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     d.Config.Server.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(DefaultBodyLimit))

	RegisterRoutes(e, h)
	return e
}

// ipExtractor decides what c.RealIP returns. Forwarding headers are only
// believed when the peer is one of the trusted proxies.
func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

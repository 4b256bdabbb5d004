package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nnoitra-backend/internal/api"
	"nnoitra-backend/internal/auth"
	"nnoitra-backend/internal/certs"
	"nnoitra-backend/internal/metrics"
	"nnoitra-backend/internal/sweeper"
	"nnoitra-backend/internal/system"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the session sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), nil)
		},
	}
	cmd.Flags().String("address", "", "listen address, e.g. :8080")
	cmd.Flags().String("fs-root", "", "directory exposed as the virtual filesystem")
	return cmd
}

// serve runs until ctx is cancelled. ready, if set, receives the bound
// listener address once the server accepts connections.
func (a *app) serve(ctx context.Context, ready chan<- string) error {
	cfg := a.cfg
	m := metrics.Default()

	svc, err := openServices(ctx, cfg, a.log, m)
	if err != nil {
		return err
	}
	defer svc.Close()

	users, err := svc.creds.Count(ctx)
	if err != nil {
		return err
	}
	if users == 0 {
		a.log.Warn("no users registered yet; create one with `nnoitra useradd` or the useradd action")
	}

	if err := os.MkdirAll(cfg.FS.Root, 0o750); err != nil {
		return fmt.Errorf("create fs root: %w", err)
	}
	sandbox, err := system.NewSandbox(cfg.FS.Root, cfg.FS.PublicPrefix)
	if err != nil {
		return err
	}

	limiter := auth.NewRateLimiter(cfg.RateLimit.LoginAttempts, cfg.RateLimit.Window, cfg.RateLimit.Block)
	defer limiter.Close()

	e := api.NewServer(api.Deps{
		Config:     *cfg,
		Auth:       svc.auth,
		Dispatcher: svc.dispatcher,
		Sandbox:    sandbox,
		Audit:      svc.audit,
		Limiter:    limiter,
		Store:      svc.db,
		Gatherer:   prometheus.DefaultGatherer,
		Logger:     a.log.Named("http"),
	})

	srv := &http.Server{
		Handler:           e,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	var certPath, keyPath string
	if cfg.Server.TLS.Enabled {
		certPath, keyPath, err = certs.EnsureCertificates(cfg.Server.TLS.CertDir, cfg.Server.TLS.Hosts...)
		if err != nil {
			return err
		}
	}

	ln, err := listen(ctx, cfg.Server.Address)
	if err != nil {
		return err
	}

	var sw *sweeper.Sweeper
	if cfg.Session.SweepSchedule != "" {
		sw = sweeper.New(svc.sessions,
			sweeper.WithAuditRetention(svc.audit, cfg.Audit.Retention),
			sweeper.WithMetrics(m),
			sweeper.WithLogger(a.log.Named("sweeper")))
		if err := sw.Start(cfg.Session.SweepSchedule); err != nil {
			_ = ln.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("starting nnoitra backend",
			zap.String("address", ln.Addr().String()),
			zap.Bool("tls", cfg.Server.TLS.Enabled),
			zap.String("database", cfg.Database.Driver))
		if ready != nil {
			ready <- ln.Addr().String()
		}

		var err error
		if cfg.Server.TLS.Enabled {
			err = srv.ServeTLS(ln, certPath, keyPath)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if sw != nil {
			errs = append(errs, sw.Stop(shutdownCtx))
		}
		errs = append(errs, srv.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})

	return g.Wait()
}

func listen(ctx context.Context, address string) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}
	return ln, nil
}

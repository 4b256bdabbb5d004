// Package cli implements the nnoitra command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nnoitra-backend/internal/config"
	"nnoitra-backend/internal/logging"
)

// app carries what every command needs once flags are parsed
type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

// Execute runs the root command against os.Args
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "nnoitra",
		Short: "Nnoitra terminal backend",
		Long: `Nnoitra serves the account, per-user data and command history
actions of the web terminal, plus a read-only virtual filesystem.

Run "nnoitra serve" to start the HTTP server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to a config file (yaml, json or toml)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("db-driver", "", "database driver: sqlite or postgres")
	pf.String("db-dsn", "", "database file or connection string")

	root.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newUserAddCommand(a),
		newSweepCommand(a),
	)
	return root
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}

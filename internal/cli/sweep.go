package cli

import (
	"github.com/spf13/cobra"

	"nnoitra-backend/internal/sweeper"
)

func newSweepCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions and old audit logs once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(cmd.Context(), a.cfg, a.log, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := sweeper.New(svc.sessions,
				sweeper.WithAuditRetention(svc.audit, a.cfg.Audit.Retention),
				sweeper.WithLogger(a.log)).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Removed %d expired session(s) and %d audit log(s).\n", res.Sessions, res.AuditLogs)
			return nil
		},
	}
}

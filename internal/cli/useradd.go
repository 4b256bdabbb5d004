package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"nnoitra-backend/internal/apperr"
	"nnoitra-backend/internal/auth"
)

func newUserAddCommand(a *app) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "useradd <username>",
		Short: "Create a user",
		Long: `Create a user. The password is taken from --password or, when that
is not given, from the first line of standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			if !cmd.Flags().Changed("password") {
				p, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = p
			}

			svc, err := openServices(cmd.Context(), a.cfg, a.log, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			err = svc.auth.Register(cmd.Context(), username, password, auth.ClientInfo{IPAddress: "cli"})
			if err != nil {
				if apperr.KindOf(err) != apperr.KindInternal {
					return errors.New(apperr.Message(err))
				}
				return err
			}
			printf(cmd.OutOrStdout(), "User %q created successfully.\n", username)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password for the new user")
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

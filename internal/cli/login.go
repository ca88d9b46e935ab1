package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		Long: `Log in with the BLINK_USERNAME and BLINK_PASSWORD environment variables,
complete 2FA if the server requires it, and save the session so later
commands skip the login step.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := newClient()
			if err != nil {
				return err
			}

			if err := startClient(cmd, b); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in: %d network(s), %d camera(s)\n",
				len(b.Sync), len(b.Cameras()))
			fmt.Fprintf(cmd.OutOrStdout(), "Session saved to %s\n", viper.GetString("credentials"))

			return nil
		},
	}
}

// Package cli implements the blinksync command tree.
package cli

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fronzbot/blinkgo"
	"github.com/fronzbot/blinkgo/observability"
)

const envPrefix = "BLINK"

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blinksync",
		Short: "Manage Blink cameras and download their clips",
		Long: `blinksync talks to the Blink home security cloud: log in (with 2FA),
list and arm cameras, capture snapshots, and bulk-download recorded clips.

Credentials can come from a saved session file or from the BLINK_USERNAME
and BLINK_PASSWORD environment variables.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("credentials", defaultCredentialsPath(), "path to the saved session file")
	cmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	_ = viper.BindPFlag("credentials", cmd.PersistentFlags().Lookup("credentials"))
	_ = viper.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))

	cmd.AddCommand(
		newLoginCmd(),
		newCamerasCmd(),
		newArmCmd(true),
		newArmCmd(false),
		newDownloadCmd(),
	)

	return cmd
}

func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "credentials.json"
	}

	return filepath.Join(home, ".blinkgo", "credentials.json")
}

// newClient builds a client from the saved session when present, falling back
// to username/password from the environment.
func newClient() (*blink.Blink, error) {
	cfg := blink.Config{
		Username: viper.GetString("username"),
		Password: viper.GetString("password"),
	}

	path := viper.GetString("credentials")
	if _, err := os.Stat(path); err == nil {
		creds, err := blink.LoadCredentials(path)
		if err != nil {
			return nil, err
		}
		cfg.Credentials = creds
	}

	if viper.GetBool("verbose") {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		cfg.Logger = observability.NewSlogLogger(slog.New(handler))
	}

	return blink.New(cfg)
}

// startClient runs the login and discovery flow, prompting for a 2FA pin on
// stdin when the server demands one, and persists the session afterwards.
func startClient(cmd *cobra.Command, b *blink.Blink) error {
	err := b.Start(cmd.Context())
	if errors.Is(err, blink.ErrTwoFactorRequired) {
		pin, promptErr := promptPin(cmd)
		if promptErr != nil {
			return promptErr
		}

		if err := b.SendAuthKey(cmd.Context(), pin); err != nil {
			return err
		}

		err = b.SetupPostVerify(cmd.Context())
	}
	if err != nil {
		return err
	}

	return saveSession(b)
}

func promptPin(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter the verification pin sent to your email: ")

	reader := bufio.NewReader(cmd.InOrStdin())

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "failed to read verification pin")
	}

	return strings.TrimSpace(line), nil
}

func saveSession(b *blink.Blink) error {
	path := viper.GetString("credentials")

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "failed to create credentials directory")
	}

	return b.Save(path)
}

package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newArmCmd(arm bool) *cobra.Command {
	use, short := "arm [network]", "Arm a network, or all networks"
	if !arm {
		use, short = "disarm [network]", "Disarm a network, or all networks"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newClient()
			if err != nil {
				return err
			}

			if err := startClient(cmd, b); err != nil {
				return err
			}

			if len(args) == 1 {
				module, ok := b.SyncModuleByName(args[0])
				if !ok {
					return errors.Newf("network %q not found", args[0])
				}

				if err := module.Arm(cmd.Context(), arm); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s: armed=%t\n", module.Name, module.Armed())

				return nil
			}

			for _, module := range b.Sync {
				if err := module.Arm(cmd.Context(), arm); err != nil {
					return errors.Wrapf(err, "failed on network %s", module.Name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: armed=%t\n", module.Name, module.Armed())
			}

			return nil
		},
	}
}

package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/fronzbot/blinkgo"
)

func newCamerasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cameras",
		Short: "List cameras and capture snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listCameras(cmd)
		},
	}

	cmd.AddCommand(newCamerasListCmd(), newCamerasSnapshotCmd())

	return cmd
}

func newCamerasListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all cameras with their current state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listCameras(cmd)
		},
	}
}

func listCameras(cmd *cobra.Command) error {
	b, err := newClient()
	if err != nil {
		return err
	}

	if err := startClient(cmd, b); err != nil {
		return err
	}

	cameras := b.Cameras()

	names := make([]string, 0, len(cameras))
	for name := range cameras {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tARMED\tMOTION\tTEMP (C)\tBATTERY\tWIFI")

	for _, name := range names {
		camera := cameras[name]
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%.1f\t%s\t%d\n",
			camera.Name, camera.Kind, camera.Armed(), camera.MotionDetected,
			camera.TemperatureC(), camera.BatteryState, camera.WifiStrength)
	}

	return w.Flush()
}

func newCamerasSnapshotCmd() *cobra.Command {
	var (
		name   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture a fresh snapshot from a camera and save it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := newClient()
			if err != nil {
				return err
			}

			if err := startClient(cmd, b); err != nil {
				return err
			}

			camera, ok := b.Camera(name)
			if !ok {
				return errors.Newf("camera %q not found", name)
			}

			if err := camera.SnapPicture(cmd.Context()); err != nil {
				return err
			}

			// Pull the fresh thumbnail into the cache.
			if _, err := b.Refresh(cmd.Context(), true); err != nil {
				return err
			}

			path := output
			if path == "" {
				path = blink.ToAlphanumeric(camera.Name) + ".jpg"
			}

			if err := camera.ImageToFile(cmd.Context(), path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot saved to %s\n", path)

			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "camera name")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <camera>.jpg)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

package cli

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/fronzbot/blinkgo"
)

func newDownloadCmd() *cobra.Command {
	var (
		dir     string
		since   string
		cameras []string
		stop    int
		delay   time.Duration
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download recorded clips from the cloud",
		Long: `Download clips recorded since a cutoff into a directory. Filenames are
the camera name and recording time, so re-running overwrites rather than
duplicates.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := blink.DownloadOptions{
				Cameras:  cameras,
				StopPage: stop,
				Delay:    delay,
				Debug:    dryRun,
			}

			if since != "" {
				cutoff, err := parseCutoff(since)
				if err != nil {
					return err
				}
				opts.Since = cutoff
			}

			b, err := newClient()
			if err != nil {
				return err
			}

			if err := startClient(cmd, b); err != nil {
				return err
			}

			count, err := b.DownloadVideos(cmd.Context(), dir, opts)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d clip(s) to %s\n", count, dir)

			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to download clips into")
	cmd.Flags().StringVar(&since, "since", "", "only clips recorded after this time (2006-01-02 or RFC 3339)")
	cmd.Flags().StringSliceVarP(&cameras, "camera", "c", nil, "only clips from these cameras (repeatable)")
	cmd.Flags().IntVar(&stop, "stop", 10, "last media index page to scan")
	cmd.Flags().DurationVar(&delay, "delay", time.Second, "pause between clip downloads")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log what would be downloaded without writing files")

	return cmd
}

func parseCutoff(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errors.Newf("unparseable cutoff %q, use 2006-01-02 or RFC 3339", value)
}

package blink

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fronzbot/blinkgo/observability"
)

var nonAlphanumeric = regexp.MustCompile(`\W+`)

// ToAlphanumeric strips everything but letters, digits and underscores.
// Download filenames and manifest camera names use this form.
func ToAlphanumeric(name string) string {
	return nonAlphanumeric.ReplaceAllString(name, "")
}

// FormatBlinkTime renders a timestamp in the vendor's query format, in UTC.
func FormatBlinkTime(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// ParseBlinkTime parses the timestamp forms the vendor emits: the query
// format and RFC 3339.
func ParseBlinkTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}

	t, err := time.Parse(TimestampFormat, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrBadResponse, "unparseable timestamp %q", value)
	}

	return t, nil
}

// DownloadOptions controls a bulk video download.
type DownloadOptions struct {
	// Since excludes clips recorded before it. Zero means one day ago.
	Since time.Time

	// Cameras filters by camera name; empty downloads from all cameras.
	Cameras []string

	// StopPage bounds paging through the media index (default 10).
	StopPage int

	// Delay is the pause between clip downloads (default 1s).
	Delay time.Duration

	// Debug logs what would be downloaded without writing files.
	Debug bool
}

func (o *DownloadOptions) withDefaults() {
	if o.Since.IsZero() {
		o.Since = time.Now().Add(-24 * time.Hour)
	}
	if o.StopPage <= 0 {
		o.StopPage = 10
	}
	if o.Delay <= 0 {
		o.Delay = time.Second
	}
}

// GetVideosMetadata pages through the cloud media index and returns every
// clip record changed since the given time, including deleted markers.
func (b *Blink) GetVideosMetadata(ctx context.Context, since time.Time, stop int) ([]MediaItem, error) {
	if stop <= 0 {
		stop = 10
	}

	timestamp := FormatBlinkTime(since)

	var items []MediaItem

	for page := 1; page < stop; page++ {
		resp, err := RequestVideos(ctx, b, timestamp, page)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch media page %d", page)
		}

		if len(resp.Media) == 0 {
			break
		}

		items = append(items, resp.Media...)
	}

	return items, nil
}

// DownloadVideos downloads cloud clips recorded since the cutoff into dir.
// Filenames are deterministic: the camera name and creation timestamp,
// stripped to alphanumerics, with an mp4 extension. Deleted clips and
// cameras outside the filter are skipped. Returns the number of clips
// downloaded.
func (b *Blink) DownloadVideos(ctx context.Context, dir string, opts DownloadOptions) (int, error) {
	opts.withDefaults()

	items, err := b.GetVideosMetadata(ctx, opts.Since, opts.StopPage)
	if err != nil {
		return 0, err
	}

	downloaded := 0

	for _, item := range items {
		if item.Deleted {
			continue
		}
		if !cameraMatches(opts.Cameras, item.DeviceName) {
			continue
		}

		createdAt, err := ParseBlinkTime(item.CreatedAt)
		if err != nil {
			b.logger.Warn("skipping clip with unparseable timestamp",
				observability.Field{Key: "created_at", Value: item.CreatedAt},
			)

			continue
		}
		if createdAt.Before(opts.Since) {
			continue
		}

		filename := ToAlphanumeric(item.DeviceName+"-"+item.CreatedAt) + ".mp4"
		target := filepath.Join(dir, filename)

		if opts.Debug {
			b.logger.Info("would download clip",
				observability.Field{Key: "camera", Value: item.DeviceName},
				observability.Field{Key: "file", Value: target},
			)
			downloaded++

			continue
		}

		if err := b.downloadClip(ctx, item.Media, target); err != nil {
			b.logger.Error("failed to download clip",
				observability.Field{Key: "camera", Value: item.DeviceName},
				observability.Field{Key: "file", Value: target},
				observability.Field{Key: "error", Value: err.Error()},
			)

			continue
		}

		downloaded++

		select {
		case <-time.After(opts.Delay):
		case <-ctx.Done():
			return downloaded, errors.Wrap(ctx.Err(), "canceled during video download")
		}
	}

	return downloaded, nil
}

// downloadClip streams one clip to a file.
func (b *Blink) downloadClip(ctx context.Context, address, target string) error {
	file, err := os.Create(target)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", target)
	}
	defer file.Close()

	if err := b.auth.DownloadTo(ctx, b.URLs.BaseURL+address, file); err != nil {
		return err
	}

	return nil
}

// DeleteVideos deletes cloud-stored clips by media id.
func (b *Blink) DeleteVideos(ctx context.Context, mediaIDs []int) error {
	if len(mediaIDs) == 0 {
		return nil
	}

	return RequestDeleteVideos(ctx, b, mediaIDs)
}

// VideoCount returns the total number of cloud-stored videos.
func (b *Blink) VideoCount(ctx context.Context, force bool) (int, error) {
	resp, err := RequestVideoCount(ctx, b, force)
	if err != nil {
		return 0, err
	}

	return resp.Count, nil
}

// cameraMatches applies the camera name filter, case-insensitively.
func cameraMatches(filter []string, name string) bool {
	if len(filter) == 0 {
		return true
	}

	for _, want := range filter {
		if want == "all" || normalizeName(want) == normalizeName(name) {
			return true
		}
	}

	return false
}

package blink

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
)

// LocalStorageMediaItem is one clip held on a sync module's local storage,
// parsed from a manifest.
type LocalStorageMediaItem struct {
	ID         string
	Size       string
	CameraName string
	CreatedAt  time.Time
	ManifestID string
}

// Path returns the staging/download path for the clip.
func (i LocalStorageMediaItem) Path(accountID, networkID, syncID int) string {
	return localStorageClipPath(accountID, networkID, syncID, i.ManifestID, i.ID)
}

// Manifest returns the module's local storage items, newest first, as of
// the last UpdateLocalStorageManifest call.
func (s *SyncModule) Manifest() []LocalStorageMediaItem {
	return s.manifest
}

// UpdateLocalStorageManifest runs the manifest flow: request a fresh
// manifest, poll the command until the module has built it, then fetch and
// parse it. Items are sorted newest first.
func (s *SyncModule) UpdateLocalStorageManifest(ctx context.Context) error {
	if !s.LocalStorage {
		return errors.Newf("sync module %s has no local storage", s.Name)
	}

	request, err := RequestLocalStorageManifest(ctx, s.blink, s.NetworkID, s.SyncID)
	if err != nil {
		return errors.Wrap(err, "failed to request local storage manifest")
	}

	if err := WaitForCommand(ctx, s.blink, Command{
		ID:        request.ID,
		NetworkID: s.NetworkID,
		Kind:      "manifest_request",
	}); err != nil {
		return errors.Wrap(err, "manifest request did not complete")
	}

	manifest, err := GetLocalStorageManifest(ctx, s.blink, s.NetworkID, s.SyncID, request.ID)
	if err != nil {
		return errors.Wrap(err, "failed to fetch local storage manifest")
	}

	if manifest.ManifestID == "" {
		return errors.Wrap(ErrBadResponse, "manifest response missing manifest id")
	}

	items := make([]LocalStorageMediaItem, 0, len(manifest.Clips))
	for _, clip := range manifest.Clips {
		createdAt, err := ParseBlinkTime(clip.CreatedAt)
		if err != nil {
			s.blink.logger.Warn("skipping manifest clip with bad timestamp")

			continue
		}

		items = append(items, LocalStorageMediaItem{
			ID:         clip.ID,
			Size:       clip.Size,
			CameraName: clip.CameraName,
			CreatedAt:  createdAt,
			ManifestID: manifest.ManifestID,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	s.manifestID = manifest.ManifestID
	s.manifest = items

	return nil
}

// DownloadLocalClip stages a locally stored clip for download, waits for the
// module to upload it, then streams it to w.
func (s *SyncModule) DownloadLocalClip(ctx context.Context, item LocalStorageMediaItem, w io.Writer) error {
	cmd, err := RequestLocalStorageClip(ctx, s.blink, s.NetworkID, s.SyncID, item.ManifestID, item.ID)
	if err != nil {
		return errors.Wrapf(err, "failed to stage local clip %s", item.ID)
	}

	if err := WaitForCommand(ctx, s.blink, Command{
		ID:        cmd.ID,
		NetworkID: s.NetworkID,
		Kind:      "clip_request",
	}); err != nil {
		return errors.Wrapf(err, "local clip %s was not staged", item.ID)
	}

	url := s.blink.URLs.BaseURL + item.Path(s.blink.AccountID, s.NetworkID, s.SyncID)
	if err := s.blink.auth.DownloadTo(ctx, url, w); err != nil {
		return errors.Wrapf(err, "failed to download local clip %s", item.ID)
	}

	return nil
}

// mergeLocalStorageRecords refreshes the manifest and folds items newer than
// since into the per-camera motion flags and last-clip records.
func (s *SyncModule) mergeLocalStorageRecords(ctx context.Context, since time.Time) error {
	if err := s.UpdateLocalStorageManifest(ctx); err != nil {
		return err
	}

	for _, item := range s.manifest {
		if !item.CreatedAt.After(since) {
			continue
		}

		// Manifest camera names are stripped of non-alphanumerics; map them
		// back to the real camera names.
		name := s.resolveManifestName(item.CameraName)
		if name == "" {
			continue
		}

		s.motion[name] = true

		existing, ok := s.lastRecords[name]
		if ok {
			if t, err := ParseBlinkTime(existing.Time); err == nil && t.After(item.CreatedAt) {
				continue
			}
		}

		s.lastRecords[name] = ClipRecord{
			Clip:  item.Path(s.blink.AccountID, s.NetworkID, s.SyncID),
			Time:  item.CreatedAt.Format(TimestampFormat),
			Local: &item,
		}
	}

	return nil
}

// resolveManifestName maps an alphanumeric-only manifest camera name back to
// the camera's actual name.
func (s *SyncModule) resolveManifestName(manifestName string) string {
	for name := range s.Cameras {
		if ToAlphanumeric(name) == manifestName {
			return name
		}
	}

	return ""
}

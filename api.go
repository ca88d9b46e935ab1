package blink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// This file maps logical operations to concrete vendor endpoints. Functions
// are stateless over *Blink: they build the URL, go through the auth query
// primitive, and decode the typed response. Operations marked with a force
// parameter are throttled client-side; a suppressed call returns
// ErrThrottled without touching the network.

func urlVerify(baseURL string, accountID, clientID int) string {
	return fmt.Sprintf("%s/api/v4/account/%d/client/%d/pin/verify", baseURL, accountID, clientID)
}

// RequestLogout invalidates the session server-side.
func RequestLogout(ctx context.Context, b *Blink) error {
	url := fmt.Sprintf("%s/api/v4/account/%d/client/%d/logout",
		b.URLs.BaseURL, b.AccountID, b.ClientID)

	return b.auth.Query(ctx, http.MethodPost, url, nil, nil)
}

// RequestNetworks lists all networks on the account.
func RequestNetworks(ctx context.Context, b *Blink) (*NetworksResponse, error) {
	var out NetworksResponse
	if err := b.auth.Query(ctx, http.MethodGet, b.URLs.NetworksURL, nil, &out); err != nil {
		return nil, errors.Wrap(err, "failed to request networks")
	}

	return &out, nil
}

// RequestNetworkStatus fetches one network's state, including its arm flag.
func RequestNetworkStatus(ctx context.Context, b *Blink, networkID int) (*NetworkStatusResponse, error) {
	url := fmt.Sprintf("%s/%d", b.URLs.NetworkURL, networkID)

	var out NetworkStatusResponse
	if err := b.auth.Query(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request status for network %d", networkID)
	}

	return &out, nil
}

// RequestNetworkUpdate asks the sync module to refresh its server-side state.
func RequestNetworkUpdate(ctx context.Context, b *Blink, networkID int) (*CommandResponse, error) {
	url := fmt.Sprintf("%s/%d/update", b.URLs.NetworkURL, networkID)

	var out CommandResponse
	if err := b.auth.Query(ctx, http.MethodPost, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request update for network %d", networkID)
	}

	return &out, nil
}

// RequestSyncModule fetches sync module details for a network.
func RequestSyncModule(ctx context.Context, b *Blink, networkID int) (*SyncModuleResponse, error) {
	url := fmt.Sprintf("%s/%d/syncmodules", b.URLs.NetworkURL, networkID)

	var out SyncModuleResponse
	if err := b.auth.Query(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request sync module for network %d", networkID)
	}

	return &out, nil
}

// RequestHomescreen fetches the account-wide device summary.
func RequestHomescreen(ctx context.Context, b *Blink, force bool) (*Homescreen, error) {
	if !b.throttle.Allow("homescreen", force) {
		return nil, ErrThrottled
	}

	url := fmt.Sprintf("%s/api/v3/accounts/%d/homescreen", b.URLs.BaseURL, b.AccountID)

	var out Homescreen
	if err := b.auth.Query(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, errors.Wrap(err, "failed to request homescreen")
	}

	return &out, nil
}

// RequestSyncEvents fetches recent events for a network.
func RequestSyncEvents(ctx context.Context, b *Blink, networkID int, force bool) (*EventsResponse, error) {
	if !b.throttle.Allow(fmt.Sprintf("events:%d", networkID), force) {
		return nil, ErrThrottled
	}

	url := fmt.Sprintf("%s/%d", b.URLs.EventURL, networkID)

	var out EventsResponse
	if err := b.auth.Query(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request events for network %d", networkID)
	}

	return &out, nil
}

// RequestCameras lists cameras on a network.
func RequestCameras(ctx context.Context, b *Blink, networkID int) (*CameraListResponse, error) {
	url := fmt.Sprintf("%s/%d/cameras", b.URLs.NetworkURL, networkID)

	var out CameraListResponse
	if err := b.auth.Query(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request cameras for network %d", networkID)
	}

	return &out, nil
}

// RequestCameraInfo fetches one camera's configuration.
func RequestCameraInfo(ctx context.Context, b *Blink, networkID, cameraID int) (*CameraInfoResponse, error) {
	url := fmt.Sprintf("%s/%d/camera/%d/config", b.URLs.NetworkURL, networkID, cameraID)

	var out CameraInfoResponse
	if err := b.auth.Query(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request info for camera %d", cameraID)
	}

	return &out, nil
}

// RequestCameraSensors fetches calibrated telemetry for one camera.
func RequestCameraSensors(ctx context.Context, b *Blink, networkID, cameraID int) (*CameraSensors, error) {
	url := fmt.Sprintf("%s/%d/camera/%d/signals", b.URLs.NetworkURL, networkID, cameraID)

	var out CameraSensors
	if err := b.auth.Query(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request sensors for camera %d", cameraID)
	}

	return &out, nil
}

// RequestCameraUsage fetches the per-network camera usage report, the
// authoritative camera list for discovery.
func RequestCameraUsage(ctx context.Context, b *Blink) (*CameraUsageResponse, error) {
	url := b.URLs.BaseURL + "/api/v1/camera/usage"

	var out CameraUsageResponse
	if err := b.auth.Query(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, errors.Wrap(err, "failed to request camera usage")
	}

	return &out, nil
}

// RequestCameraLiveview asks the server for a liveview RTSP address.
func RequestCameraLiveview(ctx context.Context, b *Blink, networkID, cameraID int) (*LiveviewResponse, error) {
	url := fmt.Sprintf("%s/api/v5/accounts/%d/networks/%d/cameras/%d/liveview",
		b.URLs.BaseURL, b.AccountID, networkID, cameraID)

	var out LiveviewResponse
	if err := b.auth.Query(ctx, http.MethodPost, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request liveview for camera %d", cameraID)
	}

	return &out, nil
}

// RequestSystemArm arms a network. The returned command must be polled to
// completion.
func RequestSystemArm(ctx context.Context, b *Blink, networkID int, force bool) (*CommandResponse, error) {
	if !b.throttle.Allow(fmt.Sprintf("arm:%d", networkID), force) {
		return nil, ErrThrottled
	}

	url := fmt.Sprintf("%s/api/v1/accounts/%d/networks/%d/state/arm",
		b.URLs.BaseURL, b.AccountID, networkID)

	var out CommandResponse
	if err := b.auth.Query(ctx, http.MethodPost, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to arm network %d", networkID)
	}

	return &out, nil
}

// RequestSystemDisarm disarms a network.
func RequestSystemDisarm(ctx context.Context, b *Blink, networkID int, force bool) (*CommandResponse, error) {
	if !b.throttle.Allow(fmt.Sprintf("disarm:%d", networkID), force) {
		return nil, ErrThrottled
	}

	url := fmt.Sprintf("%s/api/v1/accounts/%d/networks/%d/state/disarm",
		b.URLs.BaseURL, b.AccountID, networkID)

	var out CommandResponse
	if err := b.auth.Query(ctx, http.MethodPost, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to disarm network %d", networkID)
	}

	return &out, nil
}

// RequestCommandStatus polls the status of an asynchronous command.
func RequestCommandStatus(ctx context.Context, b *Blink, networkID, commandID int) (*CommandStatus, error) {
	url := fmt.Sprintf("%s/%d/command/%d", b.URLs.NetworkURL, networkID, commandID)

	var out CommandStatus
	if err := b.auth.Query(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request status for command %d", commandID)
	}

	return &out, nil
}

// RequestNewImage asks a camera to capture a fresh thumbnail.
func RequestNewImage(ctx context.Context, b *Blink, networkID, cameraID int, force bool) (*CommandResponse, error) {
	if !b.throttle.Allow(fmt.Sprintf("new_image:%d:%d", networkID, cameraID), force) {
		return nil, ErrThrottled
	}

	url := fmt.Sprintf("%s/%d/camera/%d/thumbnail", b.URLs.NetworkURL, networkID, cameraID)

	var out CommandResponse
	if err := b.auth.Query(ctx, http.MethodPost, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request new image from camera %d", cameraID)
	}

	return &out, nil
}

// RequestNewVideo asks a camera to record a fresh clip.
func RequestNewVideo(ctx context.Context, b *Blink, networkID, cameraID int, force bool) (*CommandResponse, error) {
	if !b.throttle.Allow(fmt.Sprintf("new_video:%d:%d", networkID, cameraID), force) {
		return nil, ErrThrottled
	}

	url := fmt.Sprintf("%s/%d/camera/%d/clip", b.URLs.NetworkURL, networkID, cameraID)

	var out CommandResponse
	if err := b.auth.Query(ctx, http.MethodPost, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request new video from camera %d", cameraID)
	}

	return &out, nil
}

// RequestMotionDetectionEnable enables motion detection for a camera.
func RequestMotionDetectionEnable(ctx context.Context, b *Blink, networkID, cameraID int, force bool) (*CommandResponse, error) {
	if !b.throttle.Allow(fmt.Sprintf("enable:%d:%d", networkID, cameraID), force) {
		return nil, ErrThrottled
	}

	url := fmt.Sprintf("%s/%d/camera/%d/enable", b.URLs.NetworkURL, networkID, cameraID)

	var out CommandResponse
	if err := b.auth.Query(ctx, http.MethodPost, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to enable motion detection for camera %d", cameraID)
	}

	return &out, nil
}

// RequestMotionDetectionDisable disables motion detection for a camera.
func RequestMotionDetectionDisable(ctx context.Context, b *Blink, networkID, cameraID int, force bool) (*CommandResponse, error) {
	if !b.throttle.Allow(fmt.Sprintf("disable:%d:%d", networkID, cameraID), force) {
		return nil, ErrThrottled
	}

	url := fmt.Sprintf("%s/%d/camera/%d/disable", b.URLs.NetworkURL, networkID, cameraID)

	var out CommandResponse
	if err := b.auth.Query(ctx, http.MethodPost, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to disable motion detection for camera %d", cameraID)
	}

	return &out, nil
}

// RequestVideoCount fetches the total number of cloud-stored videos.
func RequestVideoCount(ctx context.Context, b *Blink, force bool) (*VideoCountResponse, error) {
	if !b.throttle.Allow("video_count", force) {
		return nil, ErrThrottled
	}

	url := b.URLs.VideoURL + "/count"

	var out VideoCountResponse
	if err := b.auth.Query(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, errors.Wrap(err, "failed to request video count")
	}

	return &out, nil
}

// RequestDeleteVideos deletes cloud-stored clips by media id.
func RequestDeleteVideos(ctx context.Context, b *Blink, mediaIDs []int) error {
	url := fmt.Sprintf("%s/api/v1/accounts/%d/media/delete", b.URLs.BaseURL, b.AccountID)

	body, err := json.Marshal(map[string][]int{"media_list": mediaIDs})
	if err != nil {
		return errors.Wrap(err, "failed to marshal media list")
	}

	if err := b.auth.Query(ctx, http.MethodPost, url, body, nil); err != nil {
		return errors.Wrapf(err, "failed to delete %d videos", len(mediaIDs))
	}

	return nil
}

// RequestVideos fetches one page of cloud media changed since a timestamp.
// The timestamp must already be in the vendor's TimestampFormat.
func RequestVideos(ctx context.Context, b *Blink, since string, page int) (*MediaResponse, error) {
	url := fmt.Sprintf("%s/api/v1/accounts/%d/media/changed?since=%s&page=%d",
		b.URLs.BaseURL, b.AccountID, since, page)

	var out MediaResponse
	if err := b.auth.Query(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request videos page %d", page)
	}

	return &out, nil
}

// RequestLocalStorageManifest asks the sync module to build a fresh manifest
// of its locally stored clips. The response is a command to poll; once
// complete, fetch the manifest with GetLocalStorageManifest.
func RequestLocalStorageManifest(ctx context.Context, b *Blink, networkID, syncID int) (*ManifestRequestResponse, error) {
	url := fmt.Sprintf("%s/api/v1/accounts/%d/networks/%d/sync_modules/%d/local_storage/manifest/request",
		b.URLs.BaseURL, b.AccountID, networkID, syncID)

	var out ManifestRequestResponse
	if err := b.auth.Query(ctx, http.MethodPost, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request local storage manifest for sync module %d", syncID)
	}

	return &out, nil
}

// GetLocalStorageManifest fetches a manifest previously requested with
// RequestLocalStorageManifest.
func GetLocalStorageManifest(ctx context.Context, b *Blink, networkID, syncID, requestID int) (*ManifestResponse, error) {
	url := fmt.Sprintf("%s/api/v1/accounts/%d/networks/%d/sync_modules/%d/local_storage/manifest/request/%d",
		b.URLs.BaseURL, b.AccountID, networkID, syncID, requestID)

	var out ManifestResponse
	if err := b.auth.Query(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to get local storage manifest %d", requestID)
	}

	return &out, nil
}

// RequestLocalStorageClip asks the sync module to stage a locally stored
// clip for download. Poll the returned command, then download from the same
// path.
func RequestLocalStorageClip(ctx context.Context, b *Blink, networkID, syncID int, manifestID, clipID string) (*CommandResponse, error) {
	url := b.URLs.BaseURL + localStorageClipPath(b.AccountID, networkID, syncID, manifestID, clipID)

	var out CommandResponse
	if err := b.auth.Query(ctx, http.MethodPost, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to request local storage clip %s", clipID)
	}

	return &out, nil
}

// localStorageClipPath builds the clip staging/download path.
func localStorageClipPath(accountID, networkID, syncID int, manifestID, clipID string) string {
	return fmt.Sprintf("/api/v1/accounts/%d/networks/%d/sync_modules/%d/local_storage/manifest/%s/clip/request/%s",
		accountID, networkID, syncID, manifestID, clipID)
}

// RequestGetConfig fetches camera configuration using the endpoint for the
// camera's product line. Owls (mini cameras) use account-scoped endpoints.
func RequestGetConfig(ctx context.Context, b *Blink, networkID, cameraID int, productType string) (*CameraInfoResponse, error) {
	var url string

	switch productType {
	case ProductOwl:
		url = fmt.Sprintf("%s/api/v1/accounts/%d/networks/%d/owls/%d/config",
			b.URLs.BaseURL, b.AccountID, networkID, cameraID)
	case ProductCatalina, "":
		url = fmt.Sprintf("%s/%d/camera/%d/config", b.URLs.NetworkURL, networkID, cameraID)
	default:
		return nil, errors.Newf("config get not implemented for product type %q", productType)
	}

	var out CameraInfoResponse
	if err := b.auth.Query(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to get config for camera %d", cameraID)
	}

	return &out, nil
}

// RequestUpdateConfig pushes camera configuration changes.
func RequestUpdateConfig(ctx context.Context, b *Blink, networkID, cameraID int, productType string, settings map[string]any) error {
	var url string

	switch productType {
	case ProductOwl:
		url = fmt.Sprintf("%s/api/v1/accounts/%d/networks/%d/owls/%d/update",
			b.URLs.BaseURL, b.AccountID, networkID, cameraID)
	case ProductCatalina, "":
		url = fmt.Sprintf("%s/%d/camera/%d/update", b.URLs.NetworkURL, networkID, cameraID)
	default:
		return errors.Newf("config update not implemented for product type %q", productType)
	}

	body, err := json.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config update")
	}

	if err := b.auth.Query(ctx, http.MethodPost, url, body, nil); err != nil {
		return errors.Wrapf(err, "failed to update config for camera %d", cameraID)
	}

	return nil
}

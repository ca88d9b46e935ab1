package blink

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/fronzbot/blinkgo/observability"
)

// Camera kinds. Standard cameras hang off a physical sync module; minis
// (owls) and doorbells (lotus) use their own account-scoped endpoints.
const (
	KindDefault  = "default"
	KindMini     = "mini"
	KindDoorbell = "doorbell"
)

// Vendor product lines, as reported in camera configs.
const (
	ProductCatalina = "catalina"
	ProductOwl      = "owl"
	ProductLotus    = "lotus"
)

// Camera is one camera in the domain model. Telemetry and media URLs are
// only as fresh as the last successful refresh; cached media bytes are
// replaced only when new media supersedes them or a fetch is forced.
//
// A camera's refresh is strictly sequential (config, then sensors, then
// media); concurrency happens across cameras, not within one.
type Camera struct {
	module *SyncModule
	Kind   string

	Name        string
	ID          int
	NetworkID   int
	Serial      string
	ProductType string

	MotionEnabled  bool
	MotionDetected bool
	BatteryState   string
	BatteryVoltage int
	Temperature    float64
	// TemperatureCalibrated comes from the signals endpoint and falls back
	// to the config temperature when unavailable.
	TemperatureCalibrated float64
	WifiStrength          int

	ThumbnailURL string
	ClipURL      string
	LastRecord   string

	cachedImage []byte
	cachedVideo []byte
}

// NewCamera creates a camera attached to a sync module.
func NewCamera(module *SyncModule, kind string) *Camera {
	if kind == "" {
		kind = KindDefault
	}

	return &Camera{
		module: module,
		Kind:   kind,
	}
}

// TemperatureC returns the config temperature converted to Celsius, rounded
// to one decimal place.
func (c *Camera) TemperatureC() float64 {
	return math.Round((c.Temperature-32)/9.0*5.0*10) / 10
}

// Image returns the most recently cached thumbnail bytes.
func (c *Camera) Image() []byte {
	return c.cachedImage
}

// Video returns the most recently cached clip bytes.
func (c *Camera) Video() []byte {
	return c.cachedVideo
}

// Armed reports the camera's arm state. Minis and doorbells follow their
// network's arm state rather than a per-camera flag.
func (c *Camera) Armed() bool {
	if c.Kind == KindDefault {
		return c.MotionEnabled
	}

	return c.module.Armed()
}

// Update refreshes the camera from a config blob, pulls calibrated sensor
// data, and refreshes cached media when it changed. A failure partway leaves
// previously cached state intact.
func (c *Camera) Update(ctx context.Context, config CameraConfig, forceCache bool) error {
	c.extractConfig(config)
	c.updateSensors(ctx)

	return c.updateMedia(ctx, config, forceCache)
}

// extractConfig copies config fields, defaulting anything the server
// omitted rather than failing the refresh.
func (c *Camera) extractConfig(config CameraConfig) {
	if config.Name != "" {
		c.Name = config.Name
	}
	if config.ID != 0 {
		c.ID = config.ID
	}
	if config.NetworkID != 0 {
		c.NetworkID = config.NetworkID
	}
	if config.Serial != "" {
		c.Serial = config.Serial
	}
	if config.Type != "" {
		c.ProductType = config.Type
	}

	c.MotionEnabled = config.Enabled
	c.BatteryVoltage = config.BatteryVoltage
	c.Temperature = config.Temperature
	c.WifiStrength = config.WifiStrength

	c.BatteryState = config.BatteryState
	if c.BatteryState == "" {
		c.BatteryState = config.Battery
	}
}

// updateSensors pulls calibrated telemetry. Minis and doorbells have no
// signals endpoint.
func (c *Camera) updateSensors(ctx context.Context) {
	if c.Kind != KindDefault {
		return
	}

	sensors, err := RequestCameraSensors(ctx, c.module.blink, c.NetworkID, c.ID)
	if err != nil {
		c.TemperatureCalibrated = c.Temperature
		c.module.blink.logger.Warn("could not retrieve calibrated temperature",
			observability.Field{Key: "camera", Value: c.Name},
			observability.Field{Key: "error", Value: err.Error()},
		)

		return
	}

	c.TemperatureCalibrated = sensors.Temp
	if sensors.WiFi != 0 {
		c.WifiStrength = sensors.WiFi
	}
}

// updateMedia recomputes media URLs from the config and refreshes the cached
// bytes when the thumbnail changed, motion produced a new clip, or the
// caller forced it.
func (c *Camera) updateMedia(ctx context.Context, config CameraConfig, forceCache bool) error {
	newThumbnail := c.buildThumbnailURL(config.Thumbnail)

	c.MotionDetected = c.module.motionDetected(c.Name)

	record, hasRecord := c.module.lastRecord(c.Name)
	if hasRecord {
		c.LastRecord = record.Time
		c.ClipURL = c.module.blink.URLs.BaseURL + record.Clip
	}

	updateImage := newThumbnail != c.ThumbnailURL || c.cachedImage == nil
	updateVideo := c.cachedVideo == nil || c.MotionDetected

	c.ThumbnailURL = newThumbnail

	if newThumbnail != "" && (updateImage || forceCache) {
		image, err := c.module.blink.auth.Download(ctx, newThumbnail)
		if err != nil {
			return errors.Wrapf(err, "failed to fetch thumbnail for camera %s", c.Name)
		}
		c.cachedImage = image
	}

	if hasRecord && (updateVideo || forceCache) {
		video, err := c.fetchClip(ctx, record)
		if err != nil {
			return errors.Wrapf(err, "failed to fetch clip for camera %s", c.Name)
		}
		c.cachedVideo = video
	}

	return nil
}

// fetchClip downloads the clip a record points at. Clips on a sync module's
// local storage go through the stage-then-poll flow first; an unstaged GET
// against the module fails.
func (c *Camera) fetchClip(ctx context.Context, record ClipRecord) ([]byte, error) {
	if record.Local != nil {
		var buf bytes.Buffer
		if err := c.module.DownloadLocalClip(ctx, *record.Local, &buf); err != nil {
			return nil, err
		}

		return buf.Bytes(), nil
	}

	return c.module.blink.auth.Download(ctx, c.module.blink.URLs.BaseURL+record.Clip)
}

// buildThumbnailURL resolves the config's thumbnail field. Newer servers
// return only a timestamp, older ones a path missing its extension, and the
// newest a complete path.
func (c *Camera) buildThumbnailURL(thumb string) string {
	if thumb == "" {
		c.module.blink.logger.Warn("no thumbnail for camera",
			observability.Field{Key: "camera", Value: c.Name},
		)

		return ""
	}

	base := c.module.blink.URLs.BaseURL

	if ts, err := strconv.ParseInt(thumb, 10, 64); err == nil {
		return fmt.Sprintf("%s/api/v3/media/accounts/%d/networks/%d/%s/%d/thumbnail/thumbnail.jpg?ts=%d&ext=",
			base, c.module.blink.AccountID, c.NetworkID, c.ProductType, c.ID, ts)
	}

	if strings.HasPrefix(thumb, "http") {
		return thumb
	}

	if strings.HasSuffix(thumb, "&ext=") {
		return base + thumb
	}

	return base + thumb + ".jpg"
}

// SnapPicture asks the camera to capture a fresh thumbnail and waits for the
// command to finish.
func (c *Camera) SnapPicture(ctx context.Context) error {
	var (
		cmd *CommandResponse
		err error
	)

	switch c.Kind {
	case KindMini:
		url := fmt.Sprintf("%s/api/v1/accounts/%d/networks/%d/owls/%d/thumbnail",
			c.module.blink.URLs.BaseURL, c.module.blink.AccountID, c.NetworkID, c.ID)
		cmd = &CommandResponse{}
		err = c.module.blink.auth.Query(ctx, http.MethodPost, url, nil, cmd)
	case KindDoorbell:
		url := fmt.Sprintf("%s/api/v1/accounts/%d/networks/%d/doorbells/%d/thumbnail",
			c.module.blink.URLs.BaseURL, c.module.blink.AccountID, c.NetworkID, c.ID)
		cmd = &CommandResponse{}
		err = c.module.blink.auth.Query(ctx, http.MethodPost, url, nil, cmd)
	default:
		cmd, err = RequestNewImage(ctx, c.module.blink, c.NetworkID, c.ID, true)
	}

	if err != nil {
		return errors.Wrapf(err, "failed to snap picture on camera %s", c.Name)
	}

	return WaitForCommand(ctx, c.module.blink, Command{
		ID:        cmd.ID,
		NetworkID: c.NetworkID,
		Kind:      "snap_picture",
	})
}

// Record asks the camera to record a fresh clip and waits for the command to
// finish.
func (c *Camera) Record(ctx context.Context) error {
	cmd, err := RequestNewVideo(ctx, c.module.blink, c.NetworkID, c.ID, true)
	if err != nil {
		return errors.Wrapf(err, "failed to start recording on camera %s", c.Name)
	}

	return WaitForCommand(ctx, c.module.blink, Command{
		ID:        cmd.ID,
		NetworkID: c.NetworkID,
		Kind:      "record",
	})
}

// Arm enables or disables motion detection for the camera. Doorbells do not
// support per-camera arming.
func (c *Camera) Arm(ctx context.Context, enable bool) error {
	switch c.Kind {
	case KindMini:
		return RequestUpdateConfig(ctx, c.module.blink, c.NetworkID, c.ID, ProductOwl,
			map[string]any{"enabled": enable})
	case KindDoorbell:
		return errors.New("per-camera motion detection is unsupported for doorbells")
	}

	var (
		cmd *CommandResponse
		err error
	)

	if enable {
		cmd, err = RequestMotionDetectionEnable(ctx, c.module.blink, c.NetworkID, c.ID, true)
	} else {
		cmd, err = RequestMotionDetectionDisable(ctx, c.module.blink, c.NetworkID, c.ID, true)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to set motion detection for camera %s", c.Name)
	}

	return WaitForCommand(ctx, c.module.blink, Command{
		ID:        cmd.ID,
		NetworkID: c.NetworkID,
		Kind:      "arm_camera",
	})
}

// GetLiveview returns the RTSP address for a live stream.
func (c *Camera) GetLiveview(ctx context.Context) (string, error) {
	var (
		resp LiveviewResponse
		err  error
	)

	switch c.Kind {
	case KindMini:
		url := fmt.Sprintf("%s/api/v1/accounts/%d/networks/%d/owls/%d/liveview",
			c.module.blink.URLs.BaseURL, c.module.blink.AccountID, c.NetworkID, c.ID)
		err = c.module.blink.auth.Query(ctx, http.MethodPost, url, nil, &resp)
	case KindDoorbell:
		url := fmt.Sprintf("%s/api/v1/accounts/%d/networks/%d/doorbells/%d/liveview",
			c.module.blink.URLs.BaseURL, c.module.blink.AccountID, c.NetworkID, c.ID)
		err = c.module.blink.auth.Query(ctx, http.MethodPost, url, nil, &resp)
	default:
		var liveview *LiveviewResponse
		liveview, err = RequestCameraLiveview(ctx, c.module.blink, c.NetworkID, c.ID)
		if liveview != nil {
			resp = *liveview
		}
	}

	if err != nil {
		return "", errors.Wrapf(err, "failed to get liveview for camera %s", c.Name)
	}

	if resp.Server == "" {
		return "", errors.Wrapf(ErrBadResponse, "liveview response for camera %s has no server", c.Name)
	}

	// The server reports a proprietary scheme for some product lines.
	return strings.Replace(resp.Server, "immis://", "rtsps://", 1), nil
}

// ImageToFile writes the cached thumbnail to path, fetching it first if the
// cache is empty.
func (c *Camera) ImageToFile(ctx context.Context, path string) error {
	if c.cachedImage == nil {
		if c.ThumbnailURL == "" {
			return errors.Newf("no thumbnail available for camera %s", c.Name)
		}

		image, err := c.module.blink.auth.Download(ctx, c.ThumbnailURL)
		if err != nil {
			return errors.Wrapf(err, "failed to fetch thumbnail for camera %s", c.Name)
		}
		c.cachedImage = image
	}

	if err := os.WriteFile(path, c.cachedImage, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write image for camera %s", c.Name)
	}

	return nil
}

// VideoToFile writes the cached clip to path, fetching it first if the cache
// is empty.
func (c *Camera) VideoToFile(ctx context.Context, path string) error {
	if c.cachedVideo == nil {
		record, ok := c.module.lastRecord(c.Name)
		if !ok {
			return errors.Newf("no saved video exists for camera %s", c.Name)
		}

		video, err := c.fetchClip(ctx, record)
		if err != nil {
			return errors.Wrapf(err, "failed to fetch clip for camera %s", c.Name)
		}
		c.cachedVideo = video
	}

	if err := os.WriteFile(path, c.cachedVideo, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write video for camera %s", c.Name)
	}

	return nil
}

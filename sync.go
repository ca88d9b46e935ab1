package blink

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fronzbot/blinkgo/observability"
)

// CameraEntry is one camera in a network's discovery list.
type CameraEntry struct {
	ID   int
	Name string
	Type string
}

// ClipRecord is the most recent clip reference for a camera. Local points at
// the manifest item for clips held on a sync module's local storage; those
// must be staged on the module before they can be downloaded.
type ClipRecord struct {
	Clip  string
	Time  string
	Local *LocalStorageMediaItem
}

// SyncModule is one hub in the domain model, owning the cameras on its
// network. Owls and doorbells that live on their own network are wrapped in
// a virtual sync module so the camera graph stays uniform.
type SyncModule struct {
	blink *Blink

	Name      string
	NetworkID int
	SyncID    int
	Serial    string
	Status    string

	// Virtual marks a stub module wrapping a standalone mini or doorbell.
	Virtual bool

	// LocalStorage reports whether the module stores clips locally.
	LocalStorage bool

	// Cameras is keyed by camera name. Use Camera for case-insensitive
	// lookup.
	Cameras map[string]*Camera

	cameraList  []CameraEntry
	cameraIndex map[string]string
	networkInfo *Network
	armed       bool
	events      []json.RawMessage
	motion      map[string]bool
	lastRecords map[string]ClipRecord

	manifestID     string
	manifest       []LocalStorageMediaItem
	lastVideoCheck time.Time
}

// NewSyncModule creates a sync module for a network. cameraList is the
// discovery list built from the camera usage report and homescreen.
func NewSyncModule(b *Blink, name string, networkID int, cameraList []CameraEntry) *SyncModule {
	return &SyncModule{
		blink:       b,
		Name:        name,
		NetworkID:   networkID,
		Cameras:     make(map[string]*Camera),
		cameraIndex: make(map[string]string),
		cameraList:  cameraList,
		motion:      make(map[string]bool),
		lastRecords: make(map[string]ClipRecord),
	}
}

// newVirtualSyncModule wraps a standalone mini or doorbell in a stub module.
func newVirtualSyncModule(b *Blink, device HomescreenDevice, kind string) *SyncModule {
	module := NewSyncModule(b, device.Name, device.NetworkID, []CameraEntry{{
		ID:   device.ID,
		Name: device.Name,
		Type: kind,
	}})
	module.Virtual = true
	module.SyncID = device.ID
	module.Serial = device.Serial
	module.Status = device.Status
	module.armed = device.Enabled

	return module
}

// Camera looks up a camera by name, case-insensitively.
func (s *SyncModule) Camera(name string) (*Camera, bool) {
	actual, ok := s.cameraIndex[normalizeName(name)]
	if !ok {
		return nil, false
	}

	camera, ok := s.Cameras[actual]

	return camera, ok
}

// Online reports whether the module is reachable.
func (s *SyncModule) Online() bool {
	return s.Status == "online"
}

// Armed reports the network's arm state as of the last refresh.
func (s *SyncModule) Armed() bool {
	if s.networkInfo != nil {
		return s.networkInfo.Armed
	}

	return s.armed
}

// Start discovers the module's hardware details and builds its cameras.
// Virtual modules skip the sync module endpoint; their single camera comes
// from the homescreen. Cameras that fail their first refresh keep empty
// state until a later refresh succeeds; startup proceeds without them.
func (s *SyncModule) Start(ctx context.Context) error {
	if !s.Virtual {
		resp, err := RequestSyncModule(ctx, s.blink, s.NetworkID)
		if err != nil {
			return errors.Wrapf(err, "failed to start sync module for network %d", s.NetworkID)
		}

		s.SyncID = resp.SyncModule.ID
		s.Name = firstNonEmpty(resp.SyncModule.Name, s.Name)
		s.Serial = resp.SyncModule.Serial
		s.Status = resp.SyncModule.Status
		s.LocalStorage = resp.SyncModule.LocalStorageEnabled && resp.SyncModule.LocalStorageCompatible

		s.updateNetworkInfo(ctx)
	}

	for _, entry := range s.cameraList {
		camera := NewCamera(s, kindForType(entry.Type))
		camera.Name = entry.Name
		camera.ID = entry.ID
		camera.NetworkID = s.NetworkID

		s.Cameras[entry.Name] = camera
		s.cameraIndex[normalizeName(entry.Name)] = entry.Name
	}

	if err := s.CheckNewVideos(ctx); err != nil {
		// Startup proceeds without recent-clip data.
		s.blink.logger.Warn("could not check for new videos during startup",
			observability.Field{Key: "sync_module", Value: s.Name},
			observability.Field{Key: "error", Value: err.Error()},
		)
	}

	if err := s.refreshCameras(ctx, true); err != nil {
		s.blink.logger.Warn("camera refresh incomplete during startup",
			observability.Field{Key: "sync_module", Value: s.Name},
			observability.Field{Key: "error", Value: err.Error()},
		)
	}

	return nil
}

// Refresh re-walks the module's state in place: network info, events, new
// clip records, local storage manifest, then each camera. A failed
// per-camera refresh keeps that camera's previous state and reports the
// first failure after the walk completes.
func (s *SyncModule) Refresh(ctx context.Context, forceCache bool) error {
	if !s.Virtual {
		s.updateNetworkInfo(ctx)

		if events, err := RequestSyncEvents(ctx, s.blink, s.NetworkID, forceCache); err == nil {
			s.events = events.Event
		} else if !errors.Is(err, ErrThrottled) {
			s.blink.logger.Warn("could not refresh events",
				observability.Field{Key: "sync_module", Value: s.Name},
				observability.Field{Key: "error", Value: err.Error()},
			)
		}
	}

	if err := s.CheckNewVideos(ctx); err != nil {
		s.blink.logger.Warn("could not check for new videos",
			observability.Field{Key: "sync_module", Value: s.Name},
			observability.Field{Key: "error", Value: err.Error()},
		)
	}

	return s.refreshCameras(ctx, forceCache)
}

// refreshCameras updates the cameras concurrently; per-camera ordering
// (config before sensors before media) is preserved inside Camera.Update.
// A plain errgroup keeps siblings running when one camera fails, so the walk
// completes and the first failure is reported afterwards.
func (s *SyncModule) refreshCameras(ctx context.Context, forceCache bool) error {
	group := new(errgroup.Group)

	for _, name := range s.cameraNames() {
		camera := s.Cameras[name]

		group.Go(func() error {
			config, err := s.fetchCameraConfig(ctx, camera)
			if err == nil {
				err = camera.Update(ctx, config, forceCache)
			}

			if err != nil {
				s.blink.logger.Warn("camera refresh failed, keeping cached state",
					observability.Field{Key: "camera", Value: camera.Name},
					observability.Field{Key: "error", Value: err.Error()},
				)

				return errors.Wrapf(err, "failed to refresh camera %s", camera.Name)
			}

			return nil
		})
	}

	return group.Wait()
}

// fetchCameraConfig pulls the config blob through the endpoint matching the
// camera's product line.
func (s *SyncModule) fetchCameraConfig(ctx context.Context, camera *Camera) (CameraConfig, error) {
	var (
		resp *CameraInfoResponse
		err  error
	)

	switch camera.Kind {
	case KindMini:
		resp, err = RequestGetConfig(ctx, s.blink, camera.NetworkID, camera.ID, ProductOwl)
	default:
		resp, err = RequestCameraInfo(ctx, s.blink, camera.NetworkID, camera.ID)
	}

	if err != nil {
		return CameraConfig{}, err
	}

	if len(resp.Camera) == 0 {
		return CameraConfig{}, errors.Wrapf(ErrBadResponse, "empty config for camera %s", camera.Name)
	}

	return resp.Camera[0], nil
}

// Arm arms or disarms the network and waits for the command to complete.
// Virtual modules arm their single camera instead.
func (s *SyncModule) Arm(ctx context.Context, armed bool) error {
	if s.Virtual {
		for _, camera := range s.Cameras {
			if err := camera.Arm(ctx, armed); err != nil {
				return err
			}
		}
		s.armed = armed

		return nil
	}

	var (
		cmd *CommandResponse
		err error
	)

	if armed {
		cmd, err = RequestSystemArm(ctx, s.blink, s.NetworkID, true)
	} else {
		cmd, err = RequestSystemDisarm(ctx, s.blink, s.NetworkID, true)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to change arm state for network %d", s.NetworkID)
	}

	if err := WaitForCommand(ctx, s.blink, Command{
		ID:        cmd.ID,
		NetworkID: s.NetworkID,
		Kind:      "arm_network",
	}); err != nil {
		return err
	}

	if s.networkInfo != nil {
		s.networkInfo.Armed = armed
	}

	return nil
}

// CheckNewVideos pulls recently changed clips, flags motion per camera, and
// tracks each camera's latest clip. Modules with local storage merge the
// locally stored manifest as well.
func (s *SyncModule) CheckNewVideos(ctx context.Context) error {
	since := s.lastVideoCheck
	if since.IsZero() {
		since = time.Now().Add(-s.blink.motionInterval)
	}

	resp, err := RequestVideos(ctx, s.blink, FormatBlinkTime(since), 0)
	if err != nil {
		return errors.Wrapf(err, "failed to check new videos for network %d", s.NetworkID)
	}

	// Motion is only reported fresh: reset flags every check.
	for name := range s.motion {
		s.motion[name] = false
	}

	for _, item := range resp.Media {
		if item.Deleted {
			continue
		}
		if item.NetworkID != 0 && item.NetworkID != s.NetworkID {
			continue
		}

		name := item.DeviceName
		if _, ok := s.Camera(name); !ok {
			continue
		}

		s.motion[name] = true
		s.lastRecords[name] = ClipRecord{Clip: item.Media, Time: item.CreatedAt}
	}

	if s.LocalStorage {
		if err := s.mergeLocalStorageRecords(ctx, since); err != nil {
			s.blink.logger.Warn("could not merge local storage records",
				observability.Field{Key: "sync_module", Value: s.Name},
				observability.Field{Key: "error", Value: err.Error()},
			)
		}
	}

	s.lastVideoCheck = time.Now()

	return nil
}

// motionDetected reports whether a camera produced a new clip since the last
// check.
func (s *SyncModule) motionDetected(name string) bool {
	return s.motion[name]
}

// lastRecord returns a camera's most recent clip reference.
func (s *SyncModule) lastRecord(name string) (ClipRecord, bool) {
	record, ok := s.lastRecords[name]

	return record, ok
}

// updateNetworkInfo refreshes the network arm state, keeping the previous
// value on failure.
func (s *SyncModule) updateNetworkInfo(ctx context.Context) {
	resp, err := RequestNetworkStatus(ctx, s.blink, s.NetworkID)
	if err != nil {
		s.blink.logger.Warn("could not refresh network info",
			observability.Field{Key: "network", Value: s.NetworkID},
			observability.Field{Key: "error", Value: err.Error()},
		)

		return
	}

	network := resp.Network
	s.networkInfo = &network
}

// cameraNames returns camera names in stable order.
func (s *SyncModule) cameraNames() []string {
	names := make([]string, 0, len(s.Cameras))
	for name := range s.Cameras {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func kindForType(deviceType string) string {
	switch deviceType {
	case KindMini, ProductOwl:
		return KindMini
	case KindDoorbell, ProductLotus:
		return KindDoorbell
	default:
		return KindDefault
	}
}

func normalizeName(name string) string {
	return strings.ToLower(name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

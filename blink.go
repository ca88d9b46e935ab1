package blink

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fronzbot/blinkgo/observability"
)

// Config configures a Blink client. Zero values get sensible defaults.
type Config struct {
	// Username and Password authenticate against the vendor. Ignored when
	// Credentials carries a saved session token.
	Username string
	Password string

	// Credentials restores a previously saved session (see Blink.Save).
	Credentials *Credentials

	// LoginURL and BaseURL override the production endpoints, mainly for
	// pointing the client at a test server.
	LoginURL string
	BaseURL  string

	// RefreshRate is the minimum interval between unforced full refreshes.
	RefreshRate time.Duration

	// MotionInterval is the lookback window for motion detection from clip
	// records.
	MotionInterval time.Duration

	// NoOwls skips discovery of mini cameras and doorbells.
	NoOwls bool

	// PollInterval and PollAttempts tune command status polling.
	PollInterval time.Duration
	PollAttempts int

	Logger  observability.Logger
	Metrics observability.MetricsRecorder
}

// Blink is the top-level orchestrator: it sequences login, topology
// discovery, camera construction, and periodic refresh.
type Blink struct {
	auth     *Auth
	logger   observability.Logger
	metrics  observability.MetricsRecorder
	throttle *Throttle

	// URLs and the identifiers are populated by Start/SetupPostVerify.
	URLs      *URLHandler
	AccountID int
	ClientID  int
	UserID    int

	// Networks is the onboarded-network summary keyed by network id (as the
	// wire format delivers it, a decimal string).
	Networks   map[string]NetworkSummary
	NetworkIDs []int

	// Sync holds sync modules keyed by module name. Use SyncModuleByName
	// for case-insensitive lookup.
	Sync map[string]*SyncModule

	Homescreen *Homescreen

	syncIndex map[string]string

	refreshRate    time.Duration
	motionInterval time.Duration
	pollInterval   time.Duration
	pollAttempts   int
	noOwls         bool

	mu          sync.Mutex
	available   bool
	lastRefresh time.Time
}

// New creates a Blink client. It performs no network requests; call Start.
func New(cfg Config) (*Blink, error) {
	creds := cfg.Credentials
	if creds == nil {
		creds = &Credentials{Username: cfg.Username, Password: cfg.Password}
	}

	if creds.Username == "" && creds.Token == "" {
		return nil, errors.New("username/password or saved credentials are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NoopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetricsRecorder()
	}

	authOpts := []AuthOption{
		WithAuthLogger(logger),
		WithAuthMetrics(metrics),
	}
	if cfg.LoginURL != "" {
		authOpts = append(authOpts, WithLoginURL(cfg.LoginURL))
	}
	if cfg.BaseURL != "" {
		authOpts = append(authOpts, WithBaseURL(cfg.BaseURL))
	}

	b := &Blink{
		auth:           NewAuth(creds, authOpts...),
		logger:         logger,
		metrics:        metrics,
		throttle:       NewThrottle(MinThrottleTime),
		Networks:       make(map[string]NetworkSummary),
		Sync:           make(map[string]*SyncModule),
		syncIndex:      make(map[string]string),
		refreshRate:    cfg.RefreshRate,
		motionInterval: cfg.MotionInterval,
		pollInterval:   cfg.PollInterval,
		pollAttempts:   cfg.PollAttempts,
		noOwls:         cfg.NoOwls,
	}

	if b.refreshRate <= 0 {
		b.refreshRate = DefaultRefreshRate
	}
	if b.motionInterval <= 0 {
		b.motionInterval = DefaultMotionInterval
	}
	if b.pollInterval <= 0 {
		b.pollInterval = DefaultPollInterval
	}
	if b.pollAttempts <= 0 {
		b.pollAttempts = DefaultPollAttempts
	}

	if cfg.BaseURL != "" {
		b.URLs = NewURLHandlerForBase(cfg.BaseURL)
	}

	return b, nil
}

// Auth exposes the session handler, e.g. for SendAuthKey or saving
// credentials.
func (b *Blink) Auth() *Auth {
	return b.auth
}

// Available reports whether discovery completed and the domain model is
// populated.
func (b *Blink) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.available
}

// Start logs in and runs full topology discovery. When the server demands
// device verification it returns ErrTwoFactorRequired; submit the pin with
// SendAuthKey, then call SetupPostVerify.
func (b *Blink) Start(ctx context.Context) error {
	if !b.auth.Valid() {
		if err := b.auth.Login(ctx); err != nil {
			return err
		}
	}

	return b.SetupPostVerify(ctx)
}

// SendAuthKey submits the emailed 2FA verification pin.
func (b *Blink) SendAuthKey(ctx context.Context, key string) error {
	return b.auth.SendAuthKey(ctx, key)
}

// SetupPostVerify runs topology discovery for an authenticated session:
// region URLs, networks, camera lists, sync modules, and standalone
// minis/doorbells.
func (b *Blink) SetupPostVerify(ctx context.Context) error {
	if err := b.setupURLs(); err != nil {
		return err
	}

	b.AccountID = b.auth.AccountID()
	b.ClientID = b.auth.ClientID()
	b.UserID = b.auth.UserID()

	if err := b.setupNetworks(ctx); err != nil {
		return err
	}

	if err := b.getHomescreen(ctx); err != nil {
		return err
	}

	cameraList, err := b.setupCameraList(ctx)
	if err != nil {
		return err
	}

	if err := b.setupSyncModules(ctx, cameraList); err != nil {
		return err
	}

	if !b.noOwls {
		b.setupStandaloneDevices(ctx)
	}

	b.mu.Lock()
	b.available = true
	b.lastRefresh = time.Now()
	b.mu.Unlock()

	return nil
}

// setupURLs resolves the region REST endpoints.
func (b *Blink) setupURLs() error {
	if b.URLs != nil {
		return nil
	}

	urls, err := NewURLHandler(b.auth.RegionID())
	if err != nil {
		return errors.Wrap(err, "failed to set up region urls")
	}

	b.URLs = urls

	return nil
}

// setupNetworks fetches the network summary. An account without onboarded
// networks cannot be set up.
func (b *Blink) setupNetworks(ctx context.Context) error {
	resp, err := RequestNetworks(ctx, b)
	if err != nil {
		return errors.Wrap(err, "failed to discover networks")
	}

	if len(resp.Summary) == 0 {
		return errors.Wrap(ErrSetup, "no networks found on account")
	}

	b.Networks = resp.Summary
	b.NetworkIDs = b.NetworkIDs[:0]

	for id, summary := range resp.Summary {
		if !summary.Onboarded {
			continue
		}

		numeric, err := strconv.Atoi(id)
		if err != nil {
			return errors.Wrapf(ErrBadResponse, "non-numeric network id %q", id)
		}

		b.NetworkIDs = append(b.NetworkIDs, numeric)
	}

	if len(b.NetworkIDs) == 0 {
		return errors.Wrap(ErrSetup, "no onboarded networks on account")
	}

	return nil
}

// knownNetwork reports whether a network id was discovered as onboarded.
func (b *Blink) knownNetwork(networkID int) bool {
	for _, id := range b.NetworkIDs {
		if id == networkID {
			return true
		}
	}

	return false
}

// getHomescreen refreshes the account-wide device summary.
func (b *Blink) getHomescreen(ctx context.Context) error {
	home, err := RequestHomescreen(ctx, b, true)
	if err != nil {
		return errors.Wrap(err, "failed to fetch homescreen")
	}

	b.Homescreen = home

	return nil
}

// setupCameraList builds the per-network camera discovery list from the
// usage report, folding in minis and doorbells that sit on a known network.
func (b *Blink) setupCameraList(ctx context.Context) (map[int][]CameraEntry, error) {
	usage, err := RequestCameraUsage(ctx, b)
	if err != nil {
		return nil, errors.Wrapf(ErrSetup, "failed to fetch camera usage: %v", err)
	}

	list := make(map[int][]CameraEntry)
	for _, network := range usage.Networks {
		for _, entry := range network.Cameras {
			list[network.NetworkID] = append(list[network.NetworkID], CameraEntry{
				ID:   entry.ID,
				Name: entry.Name,
				Type: KindDefault,
			})
		}
	}

	if b.Homescreen != nil && !b.noOwls {
		for _, owl := range b.Homescreen.Owls {
			if !owl.Onboarded || !b.knownNetwork(owl.NetworkID) {
				continue
			}
			list[owl.NetworkID] = append(list[owl.NetworkID], CameraEntry{
				ID:   owl.ID,
				Name: owl.Name,
				Type: KindMini,
			})
		}

		for _, doorbell := range b.Homescreen.Doorbells {
			if !doorbell.Onboarded || !b.knownNetwork(doorbell.NetworkID) {
				continue
			}
			list[doorbell.NetworkID] = append(list[doorbell.NetworkID], CameraEntry{
				ID:   doorbell.ID,
				Name: doorbell.Name,
				Type: KindDoorbell,
			})
		}
	}

	return list, nil
}

// setupSyncModules creates and starts a sync module per onboarded network.
// Module startups are independent and run concurrently. A module that fails
// to start is skipped rather than failing discovery, so one broken network
// cannot empty the model; setup fails only when no module starts at all.
func (b *Blink) setupSyncModules(ctx context.Context, cameraList map[int][]CameraEntry) error {
	modules := make([]*SyncModule, 0, len(b.NetworkIDs))

	for _, networkID := range b.NetworkIDs {
		name := b.Networks[strconv.Itoa(networkID)].Name
		if name == "" {
			name = "sync-" + strconv.Itoa(networkID)
		}

		module := NewSyncModule(b, name, networkID, cameraList[networkID])
		modules = append(modules, module)
	}

	started := make([]bool, len(modules))

	group := new(errgroup.Group)
	for i, module := range modules {
		group.Go(func() error {
			if err := module.Start(ctx); err != nil {
				b.logger.Warn("skipping sync module that failed to start",
					observability.Field{Key: "sync_module", Value: module.Name},
					observability.Field{Key: "error", Value: err.Error()},
				)

				return errors.Wrapf(err, "failed to start sync module %s", module.Name)
			}

			started[i] = true

			return nil
		})
	}

	err := group.Wait()

	for i, module := range modules {
		if started[i] {
			b.registerSync(module)
		}
	}

	if err != nil && len(b.Sync) == 0 {
		return errors.Wrap(err, "sync module setup failed")
	}

	return nil
}

// setupStandaloneDevices wraps minis and doorbells on their own network in
// virtual sync modules. Failures here degrade discovery rather than failing
// it.
func (b *Blink) setupStandaloneDevices(ctx context.Context) {
	if b.Homescreen == nil {
		return
	}

	add := func(device HomescreenDevice, kind string) {
		if !device.Onboarded || b.knownNetwork(device.NetworkID) {
			return
		}

		module := newVirtualSyncModule(b, device, kind)
		if err := module.Start(ctx); err != nil {
			b.logger.Warn("standalone device setup failed",
				observability.Field{Key: "device", Value: device.Name},
				observability.Field{Key: "error", Value: err.Error()},
			)

			return
		}

		b.NetworkIDs = append(b.NetworkIDs, device.NetworkID)
		b.registerSync(module)
	}

	for _, owl := range b.Homescreen.Owls {
		add(owl, KindMini)
	}
	for _, doorbell := range b.Homescreen.Doorbells {
		add(doorbell, KindDoorbell)
	}
}

// registerSync adds a module to the registry with a normalized lookup key.
func (b *Blink) registerSync(module *SyncModule) {
	b.Sync[module.Name] = module
	b.syncIndex[normalizeName(module.Name)] = module.Name
}

// SyncModuleByName looks up a sync module case-insensitively.
func (b *Blink) SyncModuleByName(name string) (*SyncModule, bool) {
	actual, ok := b.syncIndex[normalizeName(name)]
	if !ok {
		return nil, false
	}

	module, ok := b.Sync[actual]

	return module, ok
}

// Camera looks up a camera across all sync modules, case-insensitively.
func (b *Blink) Camera(name string) (*Camera, bool) {
	for _, module := range b.Sync {
		if camera, ok := module.Camera(name); ok {
			return camera, true
		}
	}

	return nil, false
}

// Cameras merges every module's cameras into one registry keyed by camera
// name.
func (b *Blink) Cameras() map[string]*Camera {
	merged := make(map[string]*Camera)
	for _, module := range b.Sync {
		for name, camera := range module.Cameras {
			if _, dup := merged[name]; dup {
				b.logger.Warn("duplicate camera name across sync modules",
					observability.Field{Key: "camera", Value: name},
				)
			}
			merged[name] = camera
		}
	}

	return merged
}

// Refresh re-walks the domain model. Unforced refreshes inside the refresh
// rate window are skipped and report false. Sync modules refresh
// concurrently; within one camera the calls stay ordered.
func (b *Blink) Refresh(ctx context.Context, force bool) (bool, error) {
	b.mu.Lock()
	if !force && time.Since(b.lastRefresh) < b.refreshRate {
		b.mu.Unlock()

		return false, nil
	}
	b.mu.Unlock()

	if !b.Available() {
		if err := b.SetupPostVerify(ctx); err != nil {
			return false, err
		}
	}

	if err := b.getHomescreen(ctx); err != nil {
		return false, err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, module := range b.Sync {
		group.Go(func() error {
			return module.Refresh(groupCtx, force)
		})
	}

	if err := group.Wait(); err != nil {
		return false, errors.Wrap(err, "refresh failed")
	}

	b.mu.Lock()
	b.lastRefresh = time.Now()
	b.mu.Unlock()

	return true, nil
}

// Save persists the credentials and session state for a later run.
func (b *Blink) Save(path string) error {
	return b.auth.LoginAttributes().Save(path)
}

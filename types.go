package blink

import "encoding/json"

// LoginResponse is the v5 login endpoint response.
type LoginResponse struct {
	Account LoginAccount `json:"account"`
	Auth    LoginAuth    `json:"auth"`
}

// LoginAccount carries the account/session identifiers issued at login.
type LoginAccount struct {
	AccountID                  int    `json:"account_id"`
	UserID                     int    `json:"user_id"`
	ClientID                   int    `json:"client_id"`
	Tier                       string `json:"tier"`
	Region                     string `json:"region"`
	ClientVerificationRequired bool   `json:"client_verification_required"`
}

// LoginAuth carries the bearer token issued at login.
type LoginAuth struct {
	Token string `json:"token"`
}

// VerifyResponse is the pin-verification endpoint response.
type VerifyResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// NetworksResponse is the /networks endpoint response.
type NetworksResponse struct {
	Summary  map[string]NetworkSummary `json:"summary"`
	Networks []Network                 `json:"networks"`
}

// NetworkSummary is the per-network entry in the networks summary map.
type NetworkSummary struct {
	Name      string `json:"name"`
	Onboarded bool   `json:"onboarded"`
}

// Network describes one logical installation.
type Network struct {
	ID        int    `json:"id"`
	AccountID int    `json:"account_id"`
	Name      string `json:"name"`
	Armed     bool   `json:"armed"`
	Onboarded bool   `json:"onboarded"`
}

// NetworkStatusResponse is the /network/{id} endpoint response.
type NetworkStatusResponse struct {
	Network Network `json:"network"`
}

// SyncModuleResponse is the /network/{id}/syncmodules endpoint response.
type SyncModuleResponse struct {
	SyncModule SyncModuleInfo `json:"syncmodule"`
}

// SyncModuleInfo describes one physical hub.
type SyncModuleInfo struct {
	ID                     int    `json:"id"`
	NetworkID              int    `json:"network_id"`
	Name                   string `json:"name"`
	Serial                 string `json:"serial"`
	Status                 string `json:"status"`
	LocalStorageEnabled    bool   `json:"local_storage_enabled"`
	LocalStorageCompatible bool   `json:"local_storage_compatible"`
	LocalStorageStatus     string `json:"local_storage_status"`
}

// Homescreen is the account-wide device summary returned by the v3
// homescreen endpoint. Owls are mini cameras, doorbells are lotus devices;
// both may sit on their own network without a physical sync module.
type Homescreen struct {
	Networks    []Network          `json:"networks"`
	SyncModules []SyncModuleInfo   `json:"sync_modules"`
	Cameras     []HomescreenDevice `json:"cameras"`
	Owls        []HomescreenDevice `json:"owls"`
	Doorbells   []HomescreenDevice `json:"doorbells"`
}

// HomescreenDevice is a camera-like entry on the homescreen.
type HomescreenDevice struct {
	ID        int    `json:"id"`
	NetworkID int    `json:"network_id"`
	Name      string `json:"name"`
	Serial    string `json:"serial"`
	Enabled   bool   `json:"enabled"`
	Onboarded bool   `json:"onboarded"`
	Status    string `json:"status"`
	Thumbnail string `json:"thumbnail"`
	Battery   string `json:"battery"`
	Type      string `json:"type"`
}

// CameraUsageResponse is the v1 camera usage endpoint response, the
// authoritative list of cameras per network.
type CameraUsageResponse struct {
	Networks []CameraUsageNetwork `json:"networks"`
}

// CameraUsageNetwork groups camera entries by network.
type CameraUsageNetwork struct {
	NetworkID int                `json:"network_id"`
	Name      string             `json:"name"`
	Cameras   []CameraUsageEntry `json:"cameras"`
}

// CameraUsageEntry identifies one camera in the usage report.
type CameraUsageEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CameraConfig is the per-camera configuration blob returned by the config
// endpoints. Fields the server omits stay at their zero value; discovery
// tolerates that rather than failing.
type CameraConfig struct {
	ID             int     `json:"id"`
	NetworkID      int     `json:"network_id"`
	Name           string  `json:"name"`
	Serial         string  `json:"serial"`
	Enabled        bool    `json:"enabled"`
	BatteryState   string  `json:"battery_state"`
	Battery        string  `json:"battery"`
	BatteryVoltage int     `json:"battery_voltage"`
	Temperature    float64 `json:"temperature"`
	WifiStrength   int     `json:"wifi_strength"`
	Thumbnail      string  `json:"thumbnail"`
	Type           string  `json:"type"`
}

// CameraInfoResponse is the per-camera config endpoint response.
type CameraInfoResponse struct {
	Camera []CameraConfig `json:"camera"`
}

// CameraListResponse is the /network/{id}/cameras endpoint response.
type CameraListResponse struct {
	Cameras []CameraConfig `json:"cameras"`
}

// CameraSensors is the signals endpoint response with calibrated telemetry.
type CameraSensors struct {
	LFR     int     `json:"lfr"`
	WiFi    int     `json:"wifi"`
	Temp    float64 `json:"temp"`
	Battery int     `json:"battery"`
}

// CommandResponse is returned when submitting an asynchronous operation.
type CommandResponse struct {
	ID        int `json:"id"`
	NetworkID int `json:"network_id"`
}

// CommandStatus is the command polling endpoint response. Complete is a
// pointer so a response missing the field is distinguishable from a pending
// command.
type CommandStatus struct {
	Complete   *bool  `json:"complete"`
	Status     int    `json:"status"`
	StatusMsg  string `json:"status_msg"`
	StatusCode int    `json:"status_code"`
}

// LiveviewResponse is the liveview endpoint response.
type LiveviewResponse struct {
	CommandID int    `json:"command_id"`
	Server    string `json:"server"`
	Duration  int    `json:"duration"`
}

// VideoCountResponse is the v2 video count endpoint response.
type VideoCountResponse struct {
	Count int `json:"count"`
}

// MediaResponse is one page of the media/changed endpoint.
type MediaResponse struct {
	Limit int         `json:"limit"`
	Media []MediaItem `json:"media"`
}

// MediaItem is one cloud-stored clip record.
type MediaItem struct {
	ID         int    `json:"id"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	Deleted    bool   `json:"deleted"`
	DeviceName string `json:"device_name"`
	Device     string `json:"device"`
	Source     string `json:"source"`
	Media      string `json:"media"`
	Thumbnail  string `json:"thumbnail"`
	NetworkID  int    `json:"network_id"`
	DeviceID   int    `json:"device_id"`
}

// EventsResponse is the per-network events endpoint response. Event payloads
// vary by kind, so they are kept raw for the caller to interpret.
type EventsResponse struct {
	Event []json.RawMessage `json:"event"`
}

// ManifestRequestResponse acknowledges a local storage manifest request; the
// id is a command id to poll, after which the manifest itself can be fetched.
type ManifestRequestResponse struct {
	ID        int `json:"id"`
	NetworkID int `json:"network_id"`
}

// ManifestResponse is the local storage manifest of clips held on a sync
// module.
type ManifestResponse struct {
	Version    string         `json:"version"`
	ManifestID string         `json:"manifest_id"`
	Clips      []ManifestClip `json:"clips"`
}

// ManifestClip is one clip entry in a local storage manifest.
type ManifestClip struct {
	ID         string `json:"id"`
	Size       string `json:"size"`
	CameraName string `json:"camera_name"`
	CreatedAt  string `json:"created_at"`
}

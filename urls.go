package blink

import (
	"time"

	"github.com/cockroachdb/errors"
)

const (
	// BlinkURL is the vendor's API domain.
	BlinkURL = "immedia-semi.com"

	// DefaultURL is the region-less REST host used before login resolves the
	// account's region.
	DefaultURL = "rest-prod." + BlinkURL

	// DefaultBaseURL is the scheme-qualified default REST endpoint.
	DefaultBaseURL = "https://" + DefaultURL

	// DefaultLoginURL is the v5 account login endpoint.
	DefaultLoginURL = DefaultBaseURL + "/api/v5/account/login"

	// TimestampFormat is the timestamp layout the vendor API uses for media
	// queries and clip records.
	TimestampFormat = "2006-01-02T15:04:05-0700"

	// DefaultRefreshRate is the minimum interval between full system
	// refreshes unless forced.
	DefaultRefreshRate = 30 * time.Second

	// DefaultMotionInterval is the lookback window for flagging motion from
	// recent clip records.
	DefaultMotionInterval = time.Minute

	// MinThrottleTime is the minimum interval between repeated invocations
	// of a throttled API operation.
	MinThrottleTime = 5 * time.Second

	// DefaultTimeout bounds a single JSON API request.
	DefaultTimeout = 10 * time.Second

	// DefaultMediaTimeout bounds a single media (thumbnail/clip) download.
	DefaultMediaTimeout = 90 * time.Second
)

// URLHandler holds the region-specific endpoint URLs for an account. The
// vendor routes accounts to per-region REST hosts resolved at login.
type URLHandler struct {
	Subdomain   string
	BaseURL     string
	HomeURL     string
	EventURL    string
	NetworkURL  string
	NetworksURL string
	VideoURL    string
}

// NewURLHandler builds the endpoint set for a region.
func NewURLHandler(regionID string) (*URLHandler, error) {
	if regionID == "" {
		return nil, errors.Wrap(ErrSetup, "region id is empty")
	}

	subdomain := "rest-" + regionID

	return urlHandlerForBase(subdomain, "https://"+subdomain+"."+BlinkURL), nil
}

// NewURLHandlerForBase builds an endpoint set rooted at an explicit base URL.
// Intended for pointing the client at a non-production server.
func NewURLHandlerForBase(baseURL string) *URLHandler {
	return urlHandlerForBase("", baseURL)
}

func urlHandlerForBase(subdomain, baseURL string) *URLHandler {
	return &URLHandler{
		Subdomain:   subdomain,
		BaseURL:     baseURL,
		HomeURL:     baseURL + "/homescreen",
		EventURL:    baseURL + "/events/network",
		NetworkURL:  baseURL + "/network",
		NetworksURL: baseURL + "/networks",
		VideoURL:    baseURL + "/api/v2/videos",
	}
}

package blink

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/singleflight"

	"github.com/fronzbot/blinkgo/internal/httpclient"
	"github.com/fronzbot/blinkgo/internal/middleware"
	"github.com/fronzbot/blinkgo/internal/ratelimit"
	"github.com/fronzbot/blinkgo/observability"
)

const (
	// DefaultMaxRetries is the transport-level retry budget.
	DefaultMaxRetries = 3

	// DefaultRetryWaitTime is the base backoff before the first retry.
	DefaultRetryWaitTime = 1 * time.Second

	// DefaultRateLimitPerMinute is the global polite request budget. The
	// vendor publishes no official limits.
	DefaultRateLimitPerMinute = 300
)

// maxBodySnippet bounds how much of an error response body is carried in
// error messages.
const maxBodySnippet = 200

// Auth performs login (with optional 2FA) and owns the session token. Its
// Query primitive attaches auth headers and transparently re-authenticates
// exactly once when the token expires mid-use. Safe for concurrent use.
type Auth struct {
	client       *httpclient.Client
	logger       observability.Logger
	metrics      observability.MetricsRecorder
	loginURL     string
	baseURL      string
	timeout      time.Duration
	mediaTimeout time.Duration

	mu            sync.RWMutex
	creds         *Credentials
	valid         bool
	loginResponse *LoginResponse

	// reauth serializes re-login so concurrent expired queries trigger at
	// most one login request.
	reauth singleflight.Group
}

// AuthOption configures an Auth handler.
type AuthOption func(*Auth)

// WithLoginURL overrides the login endpoint.
func WithLoginURL(url string) AuthOption {
	return func(a *Auth) {
		a.loginURL = url
	}
}

// WithBaseURL overrides the region REST host normally resolved at login.
func WithBaseURL(url string) AuthOption {
	return func(a *Auth) {
		a.baseURL = url
	}
}

// WithAuthClient replaces the underlying HTTP client.
func WithAuthClient(client *httpclient.Client) AuthOption {
	return func(a *Auth) {
		a.client = client
	}
}

// WithAuthLogger sets the logger.
func WithAuthLogger(logger observability.Logger) AuthOption {
	return func(a *Auth) {
		a.logger = logger
	}
}

// WithAuthMetrics sets the metrics recorder.
func WithAuthMetrics(metrics observability.MetricsRecorder) AuthOption {
	return func(a *Auth) {
		a.metrics = metrics
	}
}

// NewAuth creates an auth handler for the given credentials. Device
// identifiers are generated when the credentials lack them.
func NewAuth(creds *Credentials, opts ...AuthOption) *Auth {
	if creds == nil {
		creds = &Credentials{}
	}

	auth := &Auth{
		logger:       observability.NoopLogger(),
		metrics:      observability.NoopMetricsRecorder(),
		loginURL:     DefaultLoginURL,
		timeout:      DefaultTimeout,
		mediaTimeout: DefaultMediaTimeout,
		creds:        creds.withDefaults(),
	}

	for _, opt := range opts {
		opt(auth)
	}

	if auth.client == nil {
		auth.client = httpclient.New(
			httpclient.WithTimeout(httpclient.DefaultTimeout),
			httpclient.WithMiddleware(
				middleware.Observability(auth.logger, auth.metrics),
				middleware.Retry(middleware.RetryConfig{
					MaxRetries:  DefaultMaxRetries,
					InitialWait: DefaultRetryWaitTime,
					Logger:      auth.logger,
					Metrics:     auth.metrics,
				}),
				middleware.RateLimit(middleware.RateLimitConfig{
					Limiter: ratelimit.NewRateLimiter(DefaultRateLimitPerMinute),
					Logger:  auth.logger,
					Metrics: auth.metrics,
				}),
			),
		)
	}

	// A saved token from a previous session skips the login endpoint.
	if auth.creds.Token != "" && auth.creds.RegionID != "" {
		auth.valid = true
		if auth.baseURL == "" {
			auth.baseURL = "https://rest-" + auth.creds.RegionID + "." + BlinkURL
		}
	}

	return auth
}

// Valid reports whether the session holds a usable token.
func (a *Auth) Valid() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.valid
}

// Token returns the current bearer token.
func (a *Auth) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.creds.Token
}

// RegionID returns the account's region identifier.
func (a *Auth) RegionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.creds.RegionID
}

// AccountID returns the numeric account id discovered at login.
func (a *Auth) AccountID() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.creds.AccountID
}

// ClientID returns the numeric client id discovered at login.
func (a *Auth) ClientID() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.creds.ClientID
}

// UserID returns the numeric user id discovered at login.
func (a *Auth) UserID() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.creds.UserID
}

// LoginAttributes returns a snapshot of the credentials including session
// state, suitable for persisting with Credentials.Save.
func (a *Auth) LoginAttributes() *Credentials {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snapshot := *a.creds

	return &snapshot
}

// BaseURL returns the region REST endpoint, empty before login.
func (a *Auth) BaseURL() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.baseURL
}

// Login authenticates against the login endpoint. On success the session
// token and account identifiers are stored. When the server requires device
// verification the identifiers are still extracted, the session stays
// invalid, and ErrTwoFactorRequired is returned; complete the flow with
// SendAuthKey.
func (a *Auth) Login(ctx context.Context) error {
	a.mu.RLock()
	payload := map[string]any{
		"email":             a.creds.Username,
		"password":          a.creds.Password,
		"unique_id":         a.creds.UID,
		"device_identifier": a.creds.DeviceID,
		"client_name":       "Computer",
		"reauth":            true,
	}
	loginURL := a.loginURL
	a.mu.RUnlock()

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal login payload")
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, loginURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "login request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read login response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// Extract below.
	case resp.StatusCode == http.StatusPreconditionFailed:
		// 412: verification pending, but the response still carries the
		// account identifiers needed for the pin verify call.
		if err := a.extractLoginInfo(raw); err != nil {
			return err
		}

		return errors.Wrapf(ErrTwoFactorRequired, "login status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.Wrap(ErrUnauthorized, "invalid credentials")
	default:
		return errors.Wrapf(ErrLoginFailed, "login status %d: %s", resp.StatusCode, bodySnippet(raw))
	}

	if err := a.extractLoginInfo(raw); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loginResponse.Account.ClientVerificationRequired {
		a.valid = false

		return errors.Wrap(ErrTwoFactorRequired, "client verification required")
	}

	a.valid = true
	a.logger.Info("authenticated",
		observability.Field{Key: "region", Value: a.creds.RegionID},
		observability.Field{Key: "account_id", Value: a.creds.AccountID},
	)

	return nil
}

// extractLoginInfo stores token, region, and account identifiers from a
// login response body.
func (a *Auth) extractLoginInfo(raw []byte) error {
	var login LoginResponse
	if err := json.Unmarshal(raw, &login); err != nil {
		return errors.Wrapf(ErrBadResponse, "malformed login response: %v", err)
	}

	if login.Auth.Token == "" || login.Account.Tier == "" {
		return errors.Wrapf(ErrBadResponse, "login response missing token or tier: %s", bodySnippet(raw))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.loginResponse = &login
	a.creds.Token = login.Auth.Token
	a.creds.RegionID = login.Account.Tier
	a.creds.Host = "rest-" + login.Account.Tier + "." + BlinkURL
	a.creds.AccountID = login.Account.AccountID
	a.creds.ClientID = login.Account.ClientID
	a.creds.UserID = login.Account.UserID

	if a.baseURL == "" {
		a.baseURL = "https://" + a.creds.Host
	}

	return nil
}

// SendAuthKey submits the emailed verification pin. A rejected pin leaves
// the session unauthenticated.
func (a *Auth) SendAuthKey(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	a.mu.RLock()
	baseURL := a.baseURL
	accountID := a.creds.AccountID
	clientID := a.creds.ClientID
	a.mu.RUnlock()

	if baseURL == "" {
		return errors.Wrap(ErrSetup, "verification requires a prior login attempt")
	}

	url := urlVerify(baseURL, accountID, clientID)

	body, err := json.Marshal(map[string]string{"pin": key})
	if err != nil {
		return errors.Wrap(err, "failed to marshal pin payload")
	}

	var verify VerifyResponse
	if err := a.Query(ctx, http.MethodPost, url, body, &verify); err != nil {
		return errors.Wrap(err, "pin verification request failed")
	}

	if !verify.Valid {
		return errors.Wrapf(ErrUnauthorized, "verification key rejected: %s", verify.Message)
	}

	a.mu.Lock()
	a.valid = true
	a.mu.Unlock()

	return nil
}

// Query performs an authenticated JSON request and decodes the response into
// out (out may be nil to discard the body). A 401 response triggers exactly
// one serialized re-login and a single replay of the original request.
func (a *Auth) Query(ctx context.Context, method, url string, body []byte, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.do(reqCtx, method, url, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read response from %s", url)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Newf("unexpected status %d from %s: %s", resp.StatusCode, url, bodySnippet(raw))
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(ErrBadResponse, "malformed response from %s: %v", url, err)
	}

	return nil
}

// DownloadTo performs an authenticated GET for media and streams the body to
// w. Media downloads get the longer media timeout.
func (a *Auth) DownloadTo(ctx context.Context, url string, w io.Writer) error {
	reqCtx, cancel := context.WithTimeout(ctx, a.mediaTimeout)
	defer cancel()

	resp, err := a.do(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySnippet))

		return errors.Newf("unexpected status %d from %s: %s", resp.StatusCode, url, bodySnippet(raw))
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return errors.Wrapf(err, "failed to download %s", url)
	}

	return nil
}

// Download performs an authenticated GET for media and returns the body.
func (a *Auth) Download(ctx context.Context, url string) ([]byte, error) {
	var buf bytes.Buffer
	if err := a.DownloadTo(ctx, url, &buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// do issues the request with auth headers, handling token expiry with one
// re-login and replay.
func (a *Auth) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	resp, err := a.send(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	if !isUnauthorizedStatus(resp.StatusCode) {
		return resp, nil
	}
	resp.Body.Close()

	a.logger.Info("token expired, re-authenticating",
		observability.Field{Key: "url", Value: url},
	)

	if _, err, _ := a.reauth.Do("login", func() (any, error) {
		return nil, a.Login(ctx)
	}); err != nil {
		return nil, errors.Wrapf(ErrUnauthorized, "re-authentication failed: %v", err)
	}

	resp, err = a.send(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	if isUnauthorizedStatus(resp.StatusCode) {
		resp.Body.Close()

		return nil, errors.Wrapf(ErrUnauthorized, "request to %s rejected after re-authentication", url)
	}

	return resp, nil
}

// send issues a single authenticated request.
func (a *Auth) send(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build request for %s", url)
	}

	req.Header.Set("Content-Type", "application/json")
	if token := a.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("TOKEN-AUTH", token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request to %s failed", url)
	}

	return resp, nil
}

// isUnauthorizedStatus reports whether a status means the token is no longer
// accepted. The vendor historically used 101 alongside 401.
func isUnauthorizedStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusSwitchingProtocols
}

// bodySnippet trims a response body for inclusion in error messages.
func bodySnippet(raw []byte) string {
	if len(raw) > maxBodySnippet {
		return string(raw[:maxBodySnippet]) + "..."
	}

	return string(raw)
}

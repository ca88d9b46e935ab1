package blink

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
)

// Credentials holds everything needed to authenticate, plus the session
// metadata discovered at login. A file saved after a successful login lets a
// later run reuse the token and skip the login endpoint entirely.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`

	// UID and DeviceID identify this client installation to the vendor.
	// Generated on first use and persisted so the server does not treat
	// every run as a new device (which would re-trigger 2FA).
	UID      string `json:"uid,omitempty"`
	DeviceID string `json:"device_id,omitempty"`

	Token     string `json:"token,omitempty"`
	Host      string `json:"host,omitempty"`
	RegionID  string `json:"region_id,omitempty"`
	AccountID int    `json:"account_id,omitempty"`
	ClientID  int    `json:"client_id,omitempty"`
	UserID    int    `json:"user_id,omitempty"`
}

// LoadCredentials reads a credentials file written by Save.
func LoadCredentials(path string) (*Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read credentials file %s", path)
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, errors.Wrapf(err, "failed to parse credentials file %s", path)
	}

	return &creds, nil
}

// Save writes the credentials to path as indented JSON. The file contains
// the password and session token, so it is written with owner-only
// permissions.
func (c *Credentials) Save(path string) error {
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal credentials")
	}

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return errors.Wrapf(err, "failed to write credentials file %s", path)
	}

	return nil
}

// withDefaults fills in the generated device identifiers when absent.
func (c *Credentials) withDefaults() *Credentials {
	if c.UID == "" {
		c.UID = GenDeviceUID()
	}
	if c.DeviceID == "" {
		c.DeviceID = "blinkgo"
	}

	return c
}

// GenUID returns size random bytes as a hex string.
func GenUID(size int) string {
	buf := make([]byte, size)
	// rand.Read never fails on supported platforms
	_, _ = rand.Read(buf)

	return hex.EncodeToString(buf)
}

// GenDeviceUID returns a unique id in the format the vendor's mobile apps
// register devices with: BlinkCamera_xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx.
func GenDeviceUID() string {
	return fmt.Sprintf("BlinkCamera_%s-%s-%s-%s-%s",
		GenUID(4), GenUID(2), GenUID(2), GenUID(2), GenUID(6))
}

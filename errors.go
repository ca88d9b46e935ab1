package blink

import "github.com/cockroachdb/errors"

// Sentinel errors returned by the client. Wrapped errors preserve identity,
// so callers should test with errors.Is.
var (
	// ErrUnauthorized indicates invalid credentials or an expired token that
	// could not be refreshed with a single re-login.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTwoFactorRequired indicates login succeeded but the server requires
	// a verification pin before the session becomes usable. Complete the
	// flow with Auth.SendAuthKey.
	ErrTwoFactorRequired = errors.New("two factor authentication required")

	// ErrLoginFailed indicates the login endpoint rejected the request for a
	// reason other than bad credentials or a pending 2FA challenge.
	ErrLoginFailed = errors.New("login failed")

	// ErrBadResponse indicates the server returned a response the client
	// could not interpret (malformed JSON, missing required fields).
	ErrBadResponse = errors.New("bad response from server")

	// ErrThrottled is the skip sentinel returned when a throttled operation
	// is invoked again within its minimum interval. It means "no new data",
	// not a failure.
	ErrThrottled = errors.New("throttled")

	// ErrCommandFailed indicates an asynchronous command completed with a
	// failure status reported by the server.
	ErrCommandFailed = errors.New("command failed")

	// ErrCommandTimeout indicates command polling exhausted its attempt
	// budget before the server reported completion.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrSetup indicates topology discovery received an unusable response
	// and the client could not be initialized.
	ErrSetup = errors.New("setup failed")
)

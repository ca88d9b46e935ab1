// Package blink is a client library for the Blink home-security cloud API.
//
// It authenticates against the vendor's REST service (including the optional
// two-factor challenge), discovers the account topology of networks, sync
// modules and cameras, polls asynchronous server-side commands to completion,
// and retrieves and caches media such as thumbnails and video clips.
//
// The client is deliberately polite: requests pass through a shared rate
// limiter, expensive operations are throttled client-side, and transient
// failures are retried with jittered exponential backoff. An expired session
// token triggers exactly one transparent re-login before errors surface.
//
// Basic usage:
//
//	b, err := blink.New(blink.Config{Username: "user@example.com", Password: "secret"})
//	if err != nil {
//		// handle error
//	}
//	if err := b.Start(ctx); err != nil {
//		if errors.Is(err, blink.ErrTwoFactorRequired) {
//			// prompt for the emailed pin, then:
//			// b.SendAuthKey(ctx, pin)
//			// b.SetupPostVerify(ctx)
//		}
//	}
package blink

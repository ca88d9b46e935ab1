// Package ratelimit builds the token bucket that keeps the client polite
// against the vendor API.
package ratelimit

import "golang.org/x/time/rate"

// NewRateLimiter creates a new rate limiter with specified requests per minute.
// It uses a token bucket algorithm where tokens are replenished continuously
// at the rate of requestsPerMinute/60 per second. Burst capacity is one
// second's worth of requests (minimum 1): discovery and refresh issue short
// bursts of calls, but sustained traffic stays under the per-minute budget.
func NewRateLimiter(requestsPerMinute int) *rate.Limiter {
	burst := requestsPerMinute / 60
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
}

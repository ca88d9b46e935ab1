package httpclient

import (
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Without it the client
// uses DefaultTimeout as the overall request cap.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.base = client
		}
	}
}

// WithTimeout sets the overall cap for one request, middleware included.
// Retries and rate-limit waits all run inside this budget.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.base.Timeout = timeout
	}
}

// WithTransport sets the transport the middleware chain wraps.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.base.Transport = transport
	}
}

// WithMiddleware appends middleware to the chain. The first middleware
// becomes the outermost layer, so request logging wraps retry, which wraps
// the rate-limit gate; every retried attempt still pays the rate limiter.
//
//	WithMiddleware(A, B, C) builds A(B(C(transport)))
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

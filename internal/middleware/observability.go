package middleware

import (
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/fronzbot/blinkgo/observability"
)

// Observability returns a middleware that logs and records metrics for HTTP requests.
func Observability(logger observability.Logger, metrics observability.MetricsRecorder) func(http.RoundTripper) http.RoundTripper {
	if logger == nil {
		logger = observability.NoopLogger()
	}
	if metrics == nil {
		metrics = observability.NoopMetricsRecorder()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return &observabilityTransport{
			next:    next,
			logger:  logger,
			metrics: metrics,
		}
	}
}

type observabilityTransport struct {
	next    http.RoundTripper
	logger  observability.Logger
	metrics observability.MetricsRecorder
}

func (t *observabilityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	urlStr := req.URL.String()

	t.logger.Debug("http request started",
		observability.Field{Key: "method", Value: req.Method},
		observability.Field{Key: "url", Value: urlStr},
		observability.Field{Key: "path", Value: req.URL.Path},
	)

	resp, err := t.next.RoundTrip(req)

	duration := time.Since(start)

	if err != nil {
		t.logger.Error("http request failed",
			observability.Field{Key: "method", Value: req.Method},
			observability.Field{Key: "url", Value: urlStr},
			observability.Field{Key: "duration", Value: duration},
			observability.Field{Key: "error", Value: err.Error()},
		)

		t.metrics.RecordError("http_request", "NetworkError")

		//nolint:wrapcheck // Observability middleware logs error but passes it through unchanged
		return nil, err
	}

	fields := []observability.Field{
		{Key: "method", Value: req.Method},
		{Key: "url", Value: urlStr},
		{Key: "status", Value: resp.StatusCode},
		{Key: "duration", Value: duration},
	}

	if resp.StatusCode >= http.StatusBadRequest {
		t.logger.Warn("http request completed with error", fields...)
	} else {
		t.logger.Debug("http request completed", fields...)
	}

	// Record metrics with normalized path to avoid unbounded cardinality
	t.metrics.RecordHTTPRequest(req.Method, normalizePath(req.URL.Path), resp.StatusCode, duration)

	return resp, nil
}

var (
	// numericIDPattern matches the numeric entity ids the vendor API embeds
	// in paths (accounts, networks, cameras, sync modules, commands, clips).
	numericIDPattern = regexp.MustCompile(`/\d+(/|$)`)
	// manifestIDPattern matches hex manifest/request identifiers used by the
	// local storage endpoints.
	manifestIDPattern = regexp.MustCompile(`/[0-9a-f]{16,}(/|$)`)

	// normalizedPathCache caches normalized paths: the client hits a small
	// fixed set of endpoints, so nearly every lookup is a cache hit.
	normalizedPathCache sync.Map
)

// normalizePath replaces dynamic path segments with placeholders so metric
// label cardinality stays bounded.
//
// Examples:
//   - /network/1234/camera/5678/thumbnail → /network/:id/camera/:id/thumbnail
//   - /api/v3/accounts/1111/homescreen → /api/v3/accounts/:id/homescreen
func normalizePath(path string) string {
	if cached, ok := normalizedPathCache.Load(path); ok {
		//nolint:forcetypeassert // Cache only stores strings, type assertion is safe
		return cached.(string)
	}

	replace := func(match string) string {
		if match[len(match)-1] == '/' {
			return "/:id/"
		}
		return "/:id"
	}

	// Two passes: numeric ids everywhere, then long hex manifest ids.
	// Numeric ids can be adjacent (/network/1234/5678), so repeat until the
	// pattern stops matching.
	normalized := path
	for {
		next := numericIDPattern.ReplaceAllStringFunc(normalized, replace)
		if next == normalized {
			break
		}
		normalized = next
	}
	normalized = manifestIDPattern.ReplaceAllStringFunc(normalized, replace)

	normalizedPathCache.Store(path, normalized)

	return normalized
}

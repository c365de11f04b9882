// Package httputil provides http.RoundTripper decorators for outbound
// LLM provider calls.
package httputil

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// LoggingTransport logs outbound HTTP calls with duration and status.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()

	resp, err := base.RoundTrip(req)

	duration := time.Since(start)

	attrs := []any{
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"duration_ms", duration.Milliseconds(),
	}

	if err != nil {
		attrs = append(attrs, "error", err.Error())
		logger.ErrorContext(req.Context(), "HTTP call failed", attrs...)
		return nil, err
	}

	attrs = append(attrs, "status", resp.StatusCode)
	logger.DebugContext(req.Context(), "HTTP call completed", attrs...)

	return resp, nil
}

// RequestIDTransport sets an X-Request-ID header on outbound requests
// so provider-side logs can be correlated with pilot runs.
type RequestIDTransport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *RequestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if req.Header.Get("X-Request-ID") == "" {
		// Clone before mutating; RoundTrippers must not modify the caller's request
		req = req.Clone(req.Context())
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	return base.RoundTrip(req)
}

// NewClient returns an http.Client with request ID injection and call
// logging wired in, suitable for judge provider traffic.
func NewClient(timeout time.Duration, logger *slog.Logger) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &RequestIDTransport{
			Base: &LoggingTransport{
				Base:   http.DefaultTransport,
				Logger: logger,
			},
		},
	}
}

// Package search provides web search provider clients and the orchestrator
// that runs keyword queries against them.
package search

import (
	"errors"
	"fmt"
	"time"
)

// Input validation errors, surfaced before any I/O.
var (
	// ErrUnknownProvider is returned when a provider name is not registered.
	ErrUnknownProvider = errors.New("unknown search provider")

	// ErrNoQueries is returned when a search is requested with no queries.
	ErrNoQueries = errors.New("at least one non-empty query is required")
)

// ConfigError indicates missing or invalid provider credentials. It is
// detected at construction time and is never retried.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Provider, e.Reason)
}

// RateLimitError indicates the upstream service rejected the call with a
// quota/429 response, or the local limiter refused admission. Callers should
// back off and may retry later.
type RateLimitError struct {
	Provider string
	Local    bool // true when the client's own token bucket refused
	Message  string
}

func (e *RateLimitError) Error() string {
	if e.Local {
		return fmt.Sprintf("%s: local rate limit exceeded: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: rate limited by upstream: %s", e.Provider, e.Message)
}

// APIError indicates an upstream provider failure: a non-2xx response, a
// malformed body, a network failure, or retry exhaustion.
type APIError struct {
	Provider   string
	StatusCode int // 0 when no HTTP response was received
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: api error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: api error: %s", e.Provider, e.Message)
}

// TimeoutError indicates a network timeout before retry exhaustion.
type TimeoutError struct {
	Provider string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request timed out after %s", e.Provider, e.Timeout)
}

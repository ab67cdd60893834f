package search

import (
	"fmt"
	"net/http"
)

// maxErrorBodyBytes limits how much of an upstream error body is kept in
// error messages.
const maxErrorBodyBytes = 512

// statusToError translates a non-2xx upstream response into the shared error
// taxonomy: 401/403 mean bad credentials, 429 means quota exhaustion, and
// everything else is a provider failure. None of these are retried.
func statusToError(provider string, statusCode int, body []byte) error {
	snippet := string(body)
	if len(snippet) > maxErrorBodyBytes {
		snippet = snippet[:maxErrorBodyBytes]
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &ConfigError{
			Provider: provider,
			Reason:   fmt.Sprintf("credentials rejected (status %d): %s", statusCode, snippet),
		}
	case statusCode == http.StatusTooManyRequests:
		return &RateLimitError{Provider: provider, Message: snippet}
	default:
		return &APIError{Provider: provider, StatusCode: statusCode, Message: snippet}
	}
}

// Package llm provides an internal representation of text generation requests
// and responses plus the HTTP client that performs them against an
// Ollama-style generate endpoint.
package llm

import "fmt"

// ErrorResponse represents an error returned to API callers.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TransportError reports a generation call that never produced usable
// output: connection failures, timeouts, and non-2xx statuses.
type TransportError struct {
	Endpoint string // Endpoint the call targeted
	Status   int    // HTTP status when the endpoint answered, 0 otherwise
	Body     string // Truncated response body for status failures
	Err      error  // Underlying cause, nil for bare status failures
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		if e.Body != "" {
			return fmt.Sprintf("inference endpoint returned %d: %s", e.Status, e.Body)
		}
		return fmt.Sprintf("inference endpoint returned %d", e.Status)
	}
	return fmt.Sprintf("inference request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

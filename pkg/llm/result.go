package llm

import "net/http"

// InferenceResult represents one completed generation. Results are
// treated as immutable once built; cache hits hand back a shallow copy
// so the flag below can differ per call.
type InferenceResult struct {
	Content  string      // Extracted assistant text
	RawBody  any         // Decoded JSON body, nil when the response was not JSON
	Headers  http.Header // Response headers, kept for timing estimation
	CacheHit bool        // Whether this result came from the memo cache
}

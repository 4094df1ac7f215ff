// Package timing estimates how long an inference server spent generating,
// as opposed to time spent on the wire. Servers report this in ad-hoc
// places: a response header on well-behaved ones, a timing field buried
// somewhere in the JSON body on the rest.
package timing

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// headerKeys are tried in order; the first parseable value wins.
var headerKeys = [...]string{
	"x-inference-time",
	"x-process-time",
	"x-runtime-ms",
	"x-duration-ms",
}

// bodyKeys are tried in order at every map level before descending.
var bodyKeys = [...]string{
	"inference_time",
	"inferenceSeconds",
	"duration",
	"elapsed",
	"time",
	"runtime",
}

// Estimate returns the server-side inference time in seconds. Headers are
// consulted before the body; the bool is false when neither carries a
// usable value. Values above 10 are assumed to be milliseconds and are
// scaled down, since no local model takes ten seconds and no server
// reports sub-centisecond milliseconds.
func Estimate(headers http.Header, body any) (float64, bool) {
	for _, k := range headerKeys {
		raw := headers.Get(k)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			continue
		}
		return normalize(v), true
	}
	if v, ok := search(body); ok {
		return normalize(v), true
	}
	return 0, false
}

func normalize(v float64) float64 {
	if v > 10 {
		return v / 1000
	}
	return v
}

// search walks a decoded JSON value depth-first looking for a timing
// field. At each map the known keys are tried first; only then do child
// values get visited, in sorted key order so the result is deterministic.
func search(v any) (float64, bool) {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range bodyKeys {
			raw, present := val[k]
			if !present {
				continue
			}
			if f, ok := numeric(raw); ok {
				return f, true
			}
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if f, ok := search(val[k]); ok {
				return f, true
			}
		}
	case []any:
		for _, item := range val {
			if f, ok := search(item); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// numeric accepts JSON numbers and numeric strings.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

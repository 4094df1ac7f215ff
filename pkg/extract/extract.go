// Package extract normalizes the JSON shapes returned by different
// inference servers into plain text. Servers disagree wildly about where
// generated text lives (top-level keys, OpenAI choices, Ollama-style
// completions), so extraction is a prioritized list of shape matchers with
// a serialize-everything fallback. It never fails: an unrecognized shape
// still renders as something.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// scalarKeys are checked first: a map carrying generated text under a
// single well-known key.
var scalarKeys = [...]string{"text", "output", "result", "response", "completion"}

// completionKeys are scanned per element of a "completions" array.
var completionKeys = [...]string{"data", "content", "text", "output"}

// matcher inspects one map shape. The bool reports whether the shape
// applied; when it did, the string is final even if empty.
type matcher func(map[string]any) (string, bool)

var matchers = []matcher{matchScalarKey, matchChoices, matchCompletions}

// Text maps a decoded JSON value to a best-effort plain-text rendering.
// Strings pass through untouched, known map shapes are unwrapped, arrays
// extract element-wise, and everything else is stringified.
func Text(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		for _, match := range matchers {
			if s, ok := match(val); ok {
				return s
			}
		}
		return stringify(val)
	case []any:
		// Elements that extract to nothing are dropped; elements that
		// extract to a serialized form (an empty map becomes "{}") are kept.
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := Text(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return stringify(v)
	}
}

// matchScalarKey returns the first string value found under scalarKeys.
// A key holding a non-string does not match and falls through to the
// next key, then to the other shapes.
func matchScalarKey(m map[string]any) (string, bool) {
	for _, k := range scalarKeys {
		if s, ok := m[k].(string); ok {
			return s, true
		}
	}
	return "", false
}

// matchChoices unwraps OpenAI-style {"choices": [...]}. Each element map
// contributes its message.content when the element carries a message map,
// otherwise its "text" string. The shape applies whenever "choices" holds
// an array, even if no element yields text.
func matchChoices(m map[string]any) (string, bool) {
	choices, ok := m["choices"].([]any)
	if !ok {
		return "", false
	}
	var texts []string
	for _, item := range choices {
		c, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if raw, present := c["message"]; present {
			if msg, ok := raw.(map[string]any); ok {
				if s, ok := msg["content"].(string); ok && s != "" {
					texts = append(texts, s)
				}
				continue
			}
		}
		if s, ok := c["text"].(string); ok {
			texts = append(texts, s)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n")), true
}

// matchCompletions unwraps {"completions": [...]}. Every completionKey
// present on an element contributes: strings directly, arrays as their
// stringified items.
func matchCompletions(m map[string]any) (string, bool) {
	completions, ok := m["completions"].([]any)
	if !ok {
		return "", false
	}
	var texts []string
	for _, item := range completions {
		c, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, k := range completionKeys {
			v, present := c[k]
			if !present {
				continue
			}
			switch vv := v.(type) {
			case string:
				texts = append(texts, vv)
			case []any:
				for _, elem := range vv {
					texts = append(texts, stringify(elem))
				}
			}
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n")), true
}

// stringify renders a leaf or unmatched value. Maps and arrays serialize
// to canonical JSON; scalars use their JSON vocabulary (null, true, 42).
func stringify(v any) string {
	if v == nil {
		return "null"
	}
	switch vv := v.(type) {
	case string:
		return vv
	case map[string]any, []any:
		if b, err := json.Marshal(vv); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", vv)
	default:
		return fmt.Sprintf("%v", vv)
	}
}

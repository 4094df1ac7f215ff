package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/remacdev/chatbot/pkg/extract"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultCacheTTL = time.Hour
)

// Client calls a generate endpoint and memoizes identical calls so that
// resubmitting the same prompt costs nothing. The zero value is not
// usable; construct with NewClient.
type Client struct {
	httpClient *http.Client
	cache      *resultCache
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, timeout and
// transport included.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each generation call end to end.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithCacheTTL sets how long identical calls are served from memory.
// Zero or negative disables memoization.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) { c.cache = newResultCache(d) }
}

// WithLogger attaches a logger for cache and transport events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a Client with a 30 second call timeout and a one hour
// memo cache. Outbound requests carry OpenTelemetry client spans.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache:  newResultCache(defaultCacheTTL),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate performs one generation call, serving repeats of the same
// params from the memo cache. Transport and status failures come back
// as *TransportError; other errors mean the request never left.
func (c *Client) Generate(ctx context.Context, p GenerateParams) (*InferenceResult, error) {
	key := cacheKey(p)
	if res, ok := c.cache.get(key); ok {
		c.logger.Debug("generation served from cache",
			zap.String("model", p.Model),
			zap.String("key", key[:12]))
		return res, nil
	}

	payload, err := json.Marshal(GenerateRequest{
		Model:    p.Model,
		Prompt:   p.Prompt,
		NPredict: p.MaxTokens,
		Stream:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: p.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: p.Endpoint, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			Endpoint: p.Endpoint,
			Status:   resp.StatusCode,
			Body:     truncate(string(raw), 200),
		}
	}

	res := buildResult(resp.Header, raw)
	c.cache.put(key, res)
	return res, nil
}

// CacheStats reports memo cache occupancy and hit counts.
func (c *Client) CacheStats() CacheStats {
	return c.cache.stats()
}

// buildResult decodes the body when the endpoint declared JSON and runs
// text extraction over it. Undecodable or non-JSON bodies pass through
// as raw text.
func buildResult(headers http.Header, raw []byte) *InferenceResult {
	res := &InferenceResult{
		Content: string(raw),
		Headers: headers.Clone(),
	}
	if strings.Contains(headers.Get("Content-Type"), "application/json") {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			res.RawBody = decoded
			res.Content = extract.Text(decoded)
		}
	}
	return res
}

// cacheKey derives a stable digest for the full param tuple.
func cacheKey(p GenerateParams) string {
	b, _ := json.Marshal(struct {
		Prompt    string `json:"prompt"`
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Endpoint  string `json:"endpoint"`
	}{p.Prompt, p.Model, p.MaxTokens, p.Endpoint})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// truncate shortens a string for error messages and logs.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

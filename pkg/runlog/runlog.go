// Package runlog ships completed chat turns to a LangSmith-style run
// collection API. Logging is strictly best-effort: a failed attempt is
// recorded as an outcome for the analytics panel and otherwise swallowed,
// so it can never break a chat turn.
package runlog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// requestTimeout bounds one log attempt. Run logging rides on the tail
// of a chat turn, so it gets a short leash.
const requestTimeout = 5 * time.Second

// DefaultURL receives runs when no collector URL is configured.
const DefaultURL = "https://api.langsmith.ai/v1/runs"

// Outcome records how one log attempt went.
type Outcome struct {
	Time       time.Time `json:"time"`
	StatusCode int       `json:"status_code,omitempty"` // HTTP status, 0 when the request never completed
	OK         bool      `json:"ok"`
	Err        string    `json:"error,omitempty"` // Transport error text, empty when the endpoint answered
}

// Run is one completed chat turn ready to be logged.
type Run struct {
	Prompt           string   // Rendered prompt the model saw
	Model            string   // Model name
	MaxTokens        int      // n_predict used for the call
	Output           string   // Extracted assistant text
	LatencySeconds   float64  // Wall-clock round trip
	InferenceSeconds *float64 // Server-side generation time, nil when unknown
	NetworkSeconds   float64  // Round trip minus inference
}

// Config carries the collector settings.
type Config struct {
	URL     string // Collector endpoint, DefaultURL when empty
	APIKey  string // Bearer token; empty leaves the logger disabled
	Project string // Optional project the runs file under
	AppURL  string // Origin URL recorded in run metadata
	Logger  *zap.Logger
}

// Logger posts runs to the collector. A nil Logger, or one built without
// an API key, is permanently disabled and safe to call.
type Logger struct {
	url        string
	apiKey     string
	project    string
	appURL     string
	httpClient *http.Client
	log        *zap.Logger
}

// New builds a Logger from config, filling in the default collector URL.
func New(cfg Config) *Logger {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{
		url:        url,
		apiKey:     cfg.APIKey,
		project:    cfg.Project,
		appURL:     cfg.AppURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log,
	}
}

// Enabled reports whether Log attempts will actually go anywhere.
func (l *Logger) Enabled() bool {
	return l != nil && l.apiKey != ""
}

type runPayload struct {
	Name     string      `json:"name"`
	Project  string      `json:"project,omitempty"`
	Inputs   runInputs   `json:"inputs"`
	Outputs  runOutputs  `json:"outputs"`
	Metrics  runMetrics  `json:"metrics"`
	Tags     []string    `json:"tags"`
	Metadata runMetadata `json:"metadata"`
}

type runInputs struct {
	Prompt   string `json:"prompt"`
	Model    string `json:"model"`
	NPredict int    `json:"n_predict"`
}

type runOutputs struct {
	Text string `json:"text"`
}

type runMetrics struct {
	Latency       float64  `json:"latency"`
	InferenceTime *float64 `json:"inference_time"` // null when the server never reported one
	NetworkTime   float64  `json:"network_time"`
}

type runMetadata struct {
	AppURL string `json:"app_url,omitempty"`
}

// Log posts one run and reports the outcome. It never returns an error:
// non-2xx statuses and transport failures both land in the Outcome, and
// the response body is drained and ignored.
func (l *Logger) Log(ctx context.Context, run Run) Outcome {
	out := Outcome{Time: time.Now()}
	if !l.Enabled() {
		return out
	}

	payload, err := json.Marshal(runPayload{
		Name:    "chatbot-chat-run",
		Project: l.project,
		Inputs: runInputs{
			Prompt:   run.Prompt,
			Model:    run.Model,
			NPredict: run.MaxTokens,
		},
		Outputs: runOutputs{Text: run.Output},
		Metrics: runMetrics{
			Latency:       run.LatencySeconds,
			InferenceTime: run.InferenceSeconds,
			NetworkTime:   run.NetworkSeconds,
		},
		Tags:     []string{"chatbot", "ollama"},
		Metadata: runMetadata{AppURL: l.appURL},
	})
	if err != nil {
		out.Err = err.Error()
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(payload))
	if err != nil {
		out.Err = err.Error()
		return out
	}
	req.Header.Set("Authorization", "Bearer "+l.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		l.log.Debug("run log attempt failed", zap.Error(err))
		out.Err = err.Error()
		return out
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	out.StatusCode = resp.StatusCode
	out.OK = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !out.OK {
		l.log.Debug("run log rejected", zap.Int("status", resp.StatusCode))
	}
	return out
}

package chat

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/remacdev/chatbot/pkg/analytics"
	"github.com/remacdev/chatbot/pkg/llm"
	"github.com/remacdev/chatbot/pkg/runlog"
	"github.com/remacdev/chatbot/pkg/session"
	"github.com/remacdev/chatbot/pkg/timing"
	"github.com/remacdev/chatbot/pkg/tokens"
)

// TurnInput is one user submission. Zero Model and MaxTokens fall back
// to the runner defaults.
type TurnInput struct {
	Content   string
	Model     string
	MaxTokens int
}

// TurnResult reports the assistant turn that got appended. Failed is set
// when the endpoint could not be reached or answered badly; Message then
// carries the error text in place of generated content.
type TurnResult struct {
	Message session.ChatMessage
	Failed  bool
	RunLog  *runlog.Outcome // outcome of the run log attempt, nil when none was made
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Endpoint  string          // Generate endpoint URL
	Model     string          // Default model name
	MaxTokens int             // Default n_predict
	Client    *llm.Client     // Built fresh when nil
	RunLog    *runlog.Logger  // Nil disables run logging outright
	Tokens    *tokens.Counter // Built fresh when nil
	Logger    *zap.Logger     // Nop when nil
}

// Runner executes turns. One Runner serves every conversation; all
// per-conversation state lives in the Context it is handed.
type Runner struct {
	endpoint  string
	model     string
	maxTokens int
	client    *llm.Client
	runlog    *runlog.Logger
	tokens    *tokens.Counter
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewRunner builds a Runner, filling in a default client, token counter,
// and nop logger where the config leaves them nil.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.Client
	if client == nil {
		client = llm.NewClient(llm.WithLogger(logger))
	}
	counter := cfg.Tokens
	if counter == nil {
		counter = tokens.NewCounter()
	}
	return &Runner{
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    client,
		runlog:    cfg.RunLog,
		tokens:    counter,
		logger:    logger,
		tracer:    otel.Tracer("github.com/remacdev/chatbot/pkg/chat"),
		now:       time.Now,
	}
}

// Model returns the default model name.
func (r *Runner) Model() string { return r.model }

// MaxTokens returns the default n_predict for a turn.
func (r *Runner) MaxTokens() int { return r.maxTokens }

// CacheStats passes through the memo cache counters.
func (r *Runner) CacheStats() llm.CacheStats { return r.client.CacheStats() }

// RunTurn executes one turn against sc; turns within one conversation
// run one at a time. It never returns an error: a failed call becomes
// an assistant-visible error message plus an analytics record, so the
// conversation always moves forward.
func (r *Runner) RunTurn(ctx context.Context, sc *Context, in TurnInput) TurnResult {
	sc.turnMu.Lock()
	defer sc.turnMu.Unlock()

	model := in.Model
	if model == "" {
		model = r.model
	}
	maxTokens := in.MaxTokens
	if maxTokens == 0 {
		maxTokens = r.maxTokens
	}
	settings := sc.Session.Settings()

	sc.Session.Append(session.RoleUser, in.Content, nil)
	prompt := sc.Session.RenderContext()

	ctx, span := r.tracer.Start(ctx, "chat.turn", trace.WithAttributes(
		attribute.String("chat.model", model),
		attribute.Int("chat.max_tokens", maxTokens),
		attribute.String("chat.session_id", sc.Session.ID()),
	))
	defer span.End()

	promptTokens := 0
	if n, ok := r.tokens.Count(model, prompt); ok {
		promptTokens = n
	}

	start := r.now()
	res, err := r.client.Generate(ctx, llm.GenerateParams{
		Prompt:    prompt,
		Model:     model,
		MaxTokens: maxTokens,
		Endpoint:  r.endpoint,
	})
	latency := r.now().Sub(start).Seconds()

	if err != nil {
		span.RecordError(err)
		r.logger.Warn("generation failed",
			zap.String("model", model),
			zap.Float64("latency_s", latency),
			zap.Error(err))
		// Failed turns always land in analytics, toggle or not, so the
		// panel shows outages even when timing capture is off.
		sc.Analytics.RecordError(r.now(), err.Error())
		msg := sc.Session.Append(session.RoleAssistant, "Error: "+err.Error(), nil)
		return TurnResult{Message: msg, Failed: true}
	}

	var inference *float64
	if settings.AnalyticsEnabled {
		if est, ok := timing.Estimate(res.Headers, res.RawBody); ok {
			inference = &est
		}
	}
	network := analytics.NetworkSeconds(latency, inference)

	if settings.AnalyticsEnabled {
		lat := latency
		net := network
		sc.Analytics.Record(analytics.Record{
			Timestamp:        r.now(),
			LatencySeconds:   &lat,
			InferenceSeconds: inference,
			NetworkSeconds:   &net,
		})
	}

	msg := sc.Session.Append(session.RoleAssistant, res.Content, &session.TurnMeta{
		LatencySeconds:   latency,
		InferenceSeconds: inference,
		NetworkSeconds:   &network,
		PromptTokens:     promptTokens,
		CacheHit:         res.CacheHit,
	})

	span.SetAttributes(
		attribute.Float64("chat.latency_s", latency),
		attribute.Bool("chat.cache_hit", res.CacheHit),
		attribute.Int("chat.prompt_tokens", promptTokens),
	)
	r.logger.Info("turn completed",
		zap.String("model", model),
		zap.Float64("latency_s", latency),
		zap.Bool("cache_hit", res.CacheHit),
		zap.Int("prompt_tokens", promptTokens))

	result := TurnResult{Message: msg}
	if settings.RunLogEnabled && r.runlog.Enabled() {
		outcome := r.runlog.Log(ctx, runlog.Run{
			Prompt:           prompt,
			Model:            model,
			MaxTokens:        maxTokens,
			Output:           res.Content,
			LatencySeconds:   latency,
			InferenceSeconds: inference,
			NetworkSeconds:   network,
		})
		sc.Analytics.RecordRunLog(outcome)
		result.RunLog = &outcome
	}
	return result
}

package webui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/remacdev/chatbot/pkg/analytics"
	"github.com/remacdev/chatbot/pkg/chat"
	"github.com/remacdev/chatbot/pkg/config"
	"github.com/remacdev/chatbot/pkg/llm"
	"github.com/remacdev/chatbot/pkg/runlog"
	"github.com/remacdev/chatbot/pkg/session"
)

type uiConfigResponse struct {
	Model           string `json:"model"`
	NPredict        int    `json:"n_predict"`
	NPredictMin     int    `json:"n_predict_min"`
	NPredictMax     int    `json:"n_predict_max"`
	ChatEnabled     bool   `json:"chat_enabled"`
	DisabledReason  string `json:"disabled_reason,omitempty"`
	RunLogAvailable bool   `json:"runlog_available"`
	AppURL          string `json:"app_url,omitempty"`
}

type createSessionResponse struct {
	SessionID string           `json:"session_id"`
	Settings  session.Settings `json:"settings"`
}

type postMessageRequest struct {
	Content  string `json:"content"`
	Model    string `json:"model"`
	NPredict int    `json:"n_predict"`
}

type postMessageResponse struct {
	Message session.ChatMessage `json:"message"`
	Failed  bool                `json:"failed"`
}

type messagesResponse struct {
	Messages []session.ChatMessage `json:"messages"`
}

type updateSettingsRequest struct {
	AnalyticsEnabled *bool `json:"analytics_enabled"`
	RunLogEnabled    *bool `json:"runlog_enabled"`
}

type analyticsResponse struct {
	Summary         analytics.Summary `json:"summary"`
	ThroughputRPM1m float64           `json:"throughput_rpm_1m"`
	ThroughputRPM5m float64           `json:"throughput_rpm_5m"`
	LatencySeries   []float64         `json:"latency_series"`
	InferenceSeries []float64         `json:"inference_series"`
	RunLog          []runlog.Outcome  `json:"runlog"`
	Cache           llm.CacheStats    `json:"cache"`
}

func (s *Server) handleUIConfig(c *fiber.Ctx) error {
	reason := s.cfg.ChatDisabledReason()
	return c.JSON(uiConfigResponse{
		Model:           s.cfg.Model,
		NPredict:        s.cfg.NPredict,
		NPredictMin:     config.MinNPredict,
		NPredictMax:     config.MaxNPredict,
		ChatEnabled:     reason == "",
		DisabledReason:  reason,
		RunLogAvailable: s.cfg.LangSmith.APIKey != "",
		AppURL:          s.cfg.AppURL,
	})
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	sc := s.sessions.Create()
	return c.Status(fiber.StatusCreated).JSON(createSessionResponse{
		SessionID: sc.Session.ID(),
		Settings:  sc.Session.Settings(),
	})
}

func (s *Server) handleListMessages(c *fiber.Ctx) error {
	sc, ok := s.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "unknown session"})
	}
	return c.JSON(messagesResponse{Messages: sc.Session.Messages()})
}

func (s *Server) handlePostMessage(c *fiber.Ctx) error {
	sc, ok := s.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "unknown session"})
	}

	if reason := s.cfg.ChatDisabledReason(); reason != "" {
		return c.Status(fiber.StatusConflict).JSON(llm.ErrorResponse{Error: reason})
	}

	var req postMessageRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	if strings.TrimSpace(req.Content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "message content is empty"})
	}

	if req.NPredict != 0 && (req.NPredict < config.MinNPredict || req.NPredict > config.MaxNPredict) {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: fmt.Sprintf("n_predict must be between %d and %d", config.MinNPredict, config.MaxNPredict),
		})
	}

	result := s.runner.RunTurn(c.Context(), sc, chat.TurnInput{
		Content:   req.Content,
		Model:     req.Model,
		MaxTokens: req.NPredict,
	})

	return c.JSON(postMessageResponse{
		Message: result.Message,
		Failed:  result.Failed,
	})
}

func (s *Server) handleUpdateSettings(c *fiber.Ctx) error {
	sc, ok := s.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "unknown session"})
	}

	var req updateSettingsRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	settings := sc.Session.Settings()
	if req.AnalyticsEnabled != nil {
		settings.AnalyticsEnabled = *req.AnalyticsEnabled
	}
	if req.RunLogEnabled != nil {
		settings.RunLogEnabled = *req.RunLogEnabled
	}
	sc.Session.SetSettings(settings)

	return c.JSON(settings)
}

func (s *Server) handleAnalytics(c *fiber.Ctx) error {
	sc, ok := s.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "unknown session"})
	}

	now := time.Now()
	ring := sc.Analytics
	latencies, inferences := ring.Series(now, analytics.SeriesWindow)
	resp := analyticsResponse{
		Summary:         ring.Summary(now),
		ThroughputRPM1m: ring.Throughput(now, analytics.ThroughputShort),
		ThroughputRPM5m: ring.Throughput(now, analytics.ThroughputLong),
		LatencySeries:   latencies,
		InferenceSeries: inferences,
		RunLog:          ring.RunLogOutcomes(now),
		Cache:           s.runner.CacheStats(),
	}
	// Empty slices render as [] rather than null.
	if resp.LatencySeries == nil {
		resp.LatencySeries = []float64{}
	}
	if resp.InferenceSeries == nil {
		resp.InferenceSeries = []float64{}
	}
	if resp.RunLog == nil {
		resp.RunLog = []runlog.Outcome{}
	}
	return c.JSON(resp)
}

func (s *Server) handleResetAnalytics(c *fiber.Ctx) error {
	sc, ok := s.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "unknown session"})
	}
	sc.Analytics.Reset()
	return c.JSON(map[string]string{"status": "reset"})
}

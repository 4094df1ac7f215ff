package chatcmder

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/remacdev/chatbot/pkg/chat"
	"github.com/remacdev/chatbot/pkg/config"
	"github.com/remacdev/chatbot/pkg/session"
)

var _ = Describe("Chat TUI", func() {
	var (
		endpoint *httptest.Server
		m        model
	)

	newTestModel := func(endpointURL string, settings session.Settings) model {
		cfg := &config.Config{
			Endpoint: endpointURL,
			Model:    "mistral",
			NPredict: 50,
		}
		runner := chat.NewRunner(chat.RunnerConfig{
			Endpoint:  cfg.Endpoint,
			Model:     cfg.Model,
			MaxTokens: cfg.NPredict,
		})
		sc := chat.NewContext("tui-test", settings)
		return newModel(runner, sc, cfg)
	}

	resize := func(m model) model {
		updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
		return updated.(model)
	}

	BeforeEach(func() {
		endpoint = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Inference-Time", "0.9")
			json.NewEncoder(w).Encode(map[string]any{"response": "hi there"})
		}))
		DeferCleanup(endpoint.Close)

		m = resize(newTestModel(endpoint.URL, session.Settings{AnalyticsEnabled: true}))
	})

	It("renders the empty state", func() {
		view := m.View()

		Expect(view).To(ContainSubstring("Localdev assistant"))
		Expect(view).To(ContainSubstring("No messages yet"))
	})

	It("completes a turn and renders the reply with timings", func() {
		cmd := m.sendTurn("hello")
		msg := cmd()

		done, ok := msg.(turnDoneMsg)
		Expect(ok).To(BeTrue())
		Expect(done.result.Failed).To(BeFalse())
		Expect(done.result.Message.Content).To(Equal("hi there"))

		updated, _ := m.Update(done)
		m = updated.(model)
		view := m.View()

		Expect(view).To(ContainSubstring("hi there"))
		Expect(view).To(ContainSubstring("inference: 0.900s"))
	})

	It("hides timing captions while analytics is off", func() {
		off := resize(newTestModel(endpoint.URL, session.Settings{}))

		done := off.sendTurn("hello")().(turnDoneMsg)
		updated, _ := off.Update(done)
		off = updated.(model)

		view := off.View()
		Expect(view).To(ContainSubstring("hi there"))
		Expect(view).NotTo(ContainSubstring("rtt:"))
	})

	It("renders a failed turn as an error line", func() {
		broken := resize(newTestModel("http://127.0.0.1:1", session.Settings{AnalyticsEnabled: true}))

		cmd := broken.sendTurn("hello")
		done := cmd().(turnDoneMsg)

		Expect(done.result.Failed).To(BeTrue())
		Expect(done.result.Message.Content).To(HavePrefix("Error: "))
	})

	It("toggles analytics capture with ctrl+t", func() {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
		m = updated.(model)

		Expect(m.sc.Session.Settings().AnalyticsEnabled).To(BeFalse())
		Expect(m.status).To(Equal("analytics off"))
	})

	It("refuses the run log toggle without an API key", func() {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
		m = updated.(model)

		Expect(m.sc.Session.Settings().RunLogEnabled).To(BeFalse())
		Expect(m.status).To(ContainSubstring("unavailable"))
	})

	It("starts a fresh conversation on ctrl+n", func() {
		done := m.sendTurn("hello")().(turnDoneMsg)
		updated, _ := m.Update(done)
		m = updated.(model)
		Expect(m.sc.Session.Len()).To(Equal(2))

		updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
		m = updated.(model)

		Expect(m.sc.Session.Len()).To(BeZero())
		Expect(m.View()).To(ContainSubstring("No messages yet"))
	})

	It("shows the stats panel on ctrl+a", func() {
		done := m.sendTurn("hello")().(turnDoneMsg)
		updated, _ := m.Update(done)
		m = updated.(model)

		updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlA})
		m = updated.(model)
		view := m.View()

		Expect(view).To(ContainSubstring("turns: 1"))
		Expect(view).To(ContainSubstring("req/min"))
	})
})

var _ = Describe("Meta line", func() {
	It("formats all three timings", func() {
		inference := 0.9
		network := 0.3
		line := metaLine(&session.TurnMeta{
			LatencySeconds:   1.2,
			InferenceSeconds: &inference,
			NetworkSeconds:   &network,
		})

		Expect(line).To(Equal("inference: 0.900s • rtt: 1.200s • network: 0.300s"))
	})

	It("omits inference when the server never reported it", func() {
		network := 1.2
		line := metaLine(&session.TurnMeta{
			LatencySeconds: 1.2,
			NetworkSeconds: &network,
		})

		Expect(line).To(Equal("rtt: 1.200s • network: 1.200s"))
	})

	It("marks memoized turns", func() {
		network := 0.0
		line := metaLine(&session.TurnMeta{
			LatencySeconds: 0.001,
			NetworkSeconds: &network,
			CacheHit:       true,
		})

		Expect(line).To(ContainSubstring("cached"))
	})
})

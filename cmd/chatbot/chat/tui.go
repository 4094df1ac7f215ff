package chatcmder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/remacdev/chatbot/pkg/analytics"
	"github.com/remacdev/chatbot/pkg/chat"
	"github.com/remacdev/chatbot/pkg/config"
	"github.com/remacdev/chatbot/pkg/session"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7dd3fc"))
	userStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#cbd5e1"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#fca5a5"))
	metaStyle  = lipgloss.NewStyle().Faint(true)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// turnDoneMsg carries a finished turn back into the update loop.
type turnDoneMsg struct {
	result chat.TurnResult
}

type model struct {
	runner *chat.Runner
	sc     *chat.Context
	cfg    *config.Config

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	width     int
	height    int
	ready     bool
	waiting   bool
	showStats bool
	status    string
}

func newModel(runner *chat.Runner, sc *chat.Context, cfg *config.Config) model {
	ti := textinput.New()
	ti.Placeholder = "Say something"
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = metaStyle

	return model{
		runner: runner,
		sc:     sc,
		cfg:    cfg,
		input:  ti,
		spin:   sp,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, 1)
			m.ready = true
		}
		m.rebuildRenderer()
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			content := strings.TrimSpace(m.input.Value())
			if m.waiting || content == "" {
				return m, nil
			}
			m.input.Reset()
			m.waiting = true
			m.status = ""
			m.refresh()
			return m, tea.Batch(m.spin.Tick, m.sendTurn(content))

		case "ctrl+a":
			m.showStats = !m.showStats
			m.layout()
			return m, nil

		case "ctrl+t":
			settings := m.sc.Session.Settings()
			settings.AnalyticsEnabled = !settings.AnalyticsEnabled
			m.sc.Session.SetSettings(settings)
			m.status = "analytics " + onOff(settings.AnalyticsEnabled)
			return m, nil

		case "ctrl+l":
			if m.cfg.LangSmith.APIKey == "" {
				m.status = "run logging unavailable: LANGSMITH_API_KEY not set"
				return m, nil
			}
			settings := m.sc.Session.Settings()
			settings.RunLogEnabled = !settings.RunLogEnabled
			m.sc.Session.SetSettings(settings)
			m.status = "run logging " + onOff(settings.RunLogEnabled)
			return m, nil

		case "ctrl+r":
			m.sc.Analytics.Reset()
			m.status = "analytics reset"
			return m, nil

		case "ctrl+n":
			m.sc.Session.Clear()
			m.status = "new conversation"
			m.refresh()
			return m, nil
		}

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		m.refresh()
		return m, cmd

	case turnDoneMsg:
		m.waiting = false
		if msg.result.Failed {
			m.status = "turn failed"
		}
		m.refresh()
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.headerView() + "\n")
	b.WriteString(m.viewport.View() + "\n")
	if m.showStats {
		b.WriteString(m.statsView() + "\n")
	}
	b.WriteString(m.input.View() + "\n")
	b.WriteString(m.helpView())
	return b.String()
}

// sendTurn runs the turn off the update loop and reports back as a message.
func (m *model) sendTurn(content string) tea.Cmd {
	runner, sc := m.runner, m.sc
	return func() tea.Msg {
		result := runner.RunTurn(context.Background(), sc, chat.TurnInput{Content: content})
		return turnDoneMsg{result: result}
	}
}

// layout sizes the viewport around the fixed chrome.
func (m *model) layout() {
	h := m.height - 3
	if m.showStats {
		h -= lipgloss.Height(m.statsView())
	}
	if h < 3 {
		h = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
}

func (m *model) refresh() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

func (m *model) rebuildRenderer() {
	wrap := m.width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		m.renderer = r
	}
}

func (m *model) renderConversation() string {
	msgs := m.sc.Session.Messages()
	if len(msgs) == 0 && !m.waiting {
		return metaStyle.Render("No messages yet. Type below and press enter.")
	}

	// Captions follow the live toggle: switching analytics off hides the
	// timings for past turns too, switching it back on restores them.
	showMeta := m.sc.Session.Settings().AnalyticsEnabled

	var b strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case session.RoleUser:
			b.WriteString(userStyle.Render("You: ") + msg.Content + "\n")
		case session.RoleAssistant:
			if strings.HasPrefix(msg.Content, "Error: ") {
				b.WriteString(errorStyle.Render(msg.Content) + "\n")
			} else {
				b.WriteString(m.renderMarkdown(msg.Content))
			}
			if msg.Meta != nil && showMeta {
				b.WriteString(metaStyle.Render(metaLine(msg.Meta)) + "\n")
			}
		}
		b.WriteString("\n")
	}
	if m.waiting {
		b.WriteString(m.spin.View() + metaStyle.Render("thinking"))
	}
	return b.String()
}

func (m *model) renderMarkdown(content string) string {
	if m.renderer != nil {
		if out, err := m.renderer.Render(content); err == nil {
			return strings.TrimRight(out, "\n") + "\n"
		}
	}
	return content + "\n"
}

func (m *model) headerView() string {
	settings := m.sc.Session.Settings()
	left := titleStyle.Render("Localdev assistant")
	right := metaStyle.Render(fmt.Sprintf("%s • analytics %s • run log %s",
		m.runner.Model(), onOff(settings.AnalyticsEnabled), onOff(settings.RunLogEnabled)))
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m *model) statsView() string {
	now := time.Now()
	ring := m.sc.Analytics
	s := ring.Summary(now)
	cache := m.runner.CacheStats()

	lines := []string{
		fmt.Sprintf("turns: %d  last: %s  avg rtt: %s  avg inference: %s  avg network: %s",
			s.Count, fmtSeconds(s.LastLatency), fmtSeconds(s.AvgLatency),
			fmtSeconds(s.AvgInference), fmtSeconds(s.AvgNetwork)),
		fmt.Sprintf("req/min: %.1f (1m)  %.1f (5m)  cache: %d hits / %d misses",
			ring.Throughput(now, analytics.ThroughputShort),
			ring.Throughput(now, analytics.ThroughputLong),
			cache.Hits, cache.Misses),
	}
	if outs := ring.RunLogOutcomes(now); len(outs) > 0 {
		last := outs[len(outs)-1]
		switch {
		case last.OK:
			lines = append(lines, fmt.Sprintf("run log: ok (%d) at %s", last.StatusCode, last.Time.Format("15:04:05")))
		case last.Err != "":
			lines = append(lines, "run log: "+last.Err)
		default:
			lines = append(lines, fmt.Sprintf("run log: failed (%d)", last.StatusCode))
		}
	}

	width := m.width - 2
	if width < 20 {
		width = 20
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m *model) helpView() string {
	help := "enter send • ctrl+a stats • ctrl+t analytics • ctrl+l run log • ctrl+r reset • ctrl+n new • esc quit"
	if m.status != "" {
		help += "   [" + m.status + "]"
	}
	return metaStyle.Render(help)
}

// metaLine renders the timing caption under an assistant turn. Metrics
// the server never reported are left out rather than shown as blanks.
func metaLine(meta *session.TurnMeta) string {
	var parts []string
	if meta.InferenceSeconds != nil {
		parts = append(parts, fmt.Sprintf("inference: %.3fs", *meta.InferenceSeconds))
	}
	parts = append(parts, fmt.Sprintf("rtt: %.3fs", meta.LatencySeconds))
	if meta.NetworkSeconds != nil {
		parts = append(parts, fmt.Sprintf("network: %.3fs", *meta.NetworkSeconds))
	}
	if meta.CacheHit {
		parts = append(parts, "cached")
	}
	return strings.Join(parts, " • ")
}

func fmtSeconds(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3fs", *v)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// Package tui renders integrations in the terminal: static line charts and
// a live bubbletea view that advances a driver frame by frame.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/ddesim/internal/sim"
)

const (
	historyLen  = 240
	framePeriod = 33 * time.Millisecond
)

type LiveConfig struct {
	Name     string
	Driver   *sim.Driver
	SampleDt float64
	Duration float64
	Labels   []string
	// SamplesPerFrame is how many sample intervals one frame advances.
	SamplesPerFrame int
}

// Live is a bubbletea model that integrates on every tick and plots the
// selected component.
type Live struct {
	cfg    LiveConfig
	driver *sim.Driver

	t         float64
	component int
	speed     int
	paused    bool
	done      bool
	err       error

	values   [][]float64
	steps    []float64
	events   map[sim.EventKind]int
	lastKind sim.EventKind

	width, height int
}

func NewLive(cfg LiveConfig) *Live {
	if cfg.SamplesPerFrame <= 0 {
		cfg.SamplesPerFrame = 1
	}
	n := cfg.Driver.Kernel().Dim()
	m := &Live{
		cfg:    cfg,
		driver: cfg.Driver,
		t:      cfg.Driver.Time(),
		speed:  cfg.SamplesPerFrame,
		values: make([][]float64, n),
		events: make(map[sim.EventKind]int),
		width:  80,
		height: 24,
	}
	cfg.Driver.AddObserver(m)
	return m
}

// OnEvent records step sizes for the sparkline.
func (m *Live) OnEvent(ev sim.Event) {
	m.events[ev.Kind]++
	m.lastKind = ev.Kind
	if ev.Kind == sim.EventAccept {
		m.steps = appendBounded(m.steps, ev.Step)
	}
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(framePeriod, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Live) Init() tea.Cmd { return tick() }

func (m *Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tickMsg:
		if !m.paused && !m.done {
			m.advance()
		}
		if m.done {
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

func (m *Live) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case " ", "p":
		m.paused = !m.paused
	case "+", "=":
		m.speed = min(m.speed*2, 1024)
	case "-", "_":
		m.speed = max(m.speed/2, 1)
	case "c", "tab":
		if len(m.values) > 0 {
			m.component = (m.component + 1) % len(m.values)
		}
	case "n":
		if m.paused && !m.done {
			m.advance()
		}
	}
	return m, nil
}

// advance integrates speed sample intervals, stopping at the duration or the
// first failure.
func (m *Live) advance() {
	for i := 0; i < m.speed; i++ {
		next := m.t + m.cfg.SampleDt
		if next > m.cfg.Duration+1e-9*m.cfg.SampleDt {
			m.done = true
			return
		}
		res := m.driver.Solve(next)
		m.t = next
		for c := range m.values {
			m.values[c] = appendBounded(m.values[c], res.State[c])
		}
		if res.Err != nil {
			m.err, m.done = res.Err, true
			return
		}
	}
}

func appendBounded(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > historyLen {
		s = s[len(s)-historyLen:]
	}
	return s
}

func (m *Live) label(c int) string {
	if c < len(m.cfg.Labels) {
		return m.cfg.Labels[c]
	}
	return fmt.Sprintf("y%d", c)
}

func (m *Live) status() string {
	switch {
	case m.err != nil:
		return StatusFailed.Render("FAILED")
	case m.done:
		return StatusRunning.Render("DONE")
	case m.paused:
		return StatusPaused.Render("PAUSED")
	}
	return StatusRunning.Render("RUNNING")
}

func (m *Live) View() string {
	var s strings.Builder
	s.WriteString(Title.Render(strings.ToUpper(m.cfg.Name)) + "  " + m.status() + "\n\n")

	chartWidth := max(m.width-30, 20)
	if vals := m.values[m.component]; len(vals) > 1 {
		s.WriteString(Plot([][]float64{vals}, m.label(m.component), chartWidth, max(m.height-16, 5)))
		s.WriteString("\n\n")
	}

	st := m.driver.Stats()
	row := func(label, value string) {
		s.WriteString(MetricLabel.Render(label) + MetricValue.Render(value) + "\n")
	}
	row("time", fmt.Sprintf("%.2f / %.2f", m.t, m.cfg.Duration))
	s.WriteString(MetricLabel.Render("progress") + ProgressBar(m.t/m.cfg.Duration, 30) + "\n")
	if len(m.values[0]) > 0 {
		parts := make([]string, len(m.values))
		for i, vals := range m.values {
			parts[i] = fmt.Sprintf("%s=%.4g", m.label(i), vals[len(vals)-1])
		}
		row("state", strings.Join(parts, " "))
	}
	row("steps", fmt.Sprintf("%d accepted, %d rejected, %d throttled", st.Accepted, st.Rejected, st.Throttled))
	row("dt", fmt.Sprintf("%.3g", st.NextStep))
	if !math.IsNaN(st.MinPWSFactor) {
		row("pws factor", fmt.Sprintf("min %.3g", st.MinPWSFactor))
	}
	s.WriteString(MetricLabel.Render("step size") + Sparkline(m.steps, 30) + "\n")
	if m.err != nil {
		s.WriteString("\n" + StatusFailed.Render(m.err.Error()) + "\n")
	}

	s.WriteString("\n" + KeyHint.Render(fmt.Sprintf("space pause  n step  +/- speed (x%d)  c component  q quit", m.speed)))
	return lipgloss.NewStyle().Padding(1, 2).Render(s.String())
}

// Run starts the live view and blocks until the user quits.
func Run(cfg LiveConfig) error {
	_, err := tea.NewProgram(NewLive(cfg), tea.WithAltScreen()).Run()
	return err
}

// Package tui renders a live view of an in-flight run: one card per
// scenario fed by engine snapshots, plus an overall progress bar.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"perftest/internal/config"
	"perftest/internal/engine"
	"perftest/internal/tui/components"
	"perftest/internal/tui/styles"
)

const tickInterval = 200 * time.Millisecond

type (
	tickMsg time.Time
	doneMsg struct{}
)

type row struct {
	plan config.Resolved
	last engine.Snapshot
	rps  *components.Sparkline

	lastReqs    uint64
	lastElapsed time.Duration
}

// Model is the live run view. It drains the updates channel until the
// channel closes, which the caller does once the run finishes.
type Model struct {
	updates engine.UpdateChan

	order []string
	rows  map[string]*row

	progress  progress.Model
	startTime time.Time
	total     time.Duration

	width    int
	quitting bool
}

func NewModel(updates engine.UpdateChan, plans []config.Resolved) Model {
	rows := make(map[string]*row, len(plans))
	order := make([]string, 0, len(plans))
	total := time.Duration(0)
	for _, p := range plans {
		name := string(p.Scenario)
		order = append(order, name)
		rows[name] = &row{
			plan: p,
			rps:  components.NewSparkline(40, styles.Active),
		}
		if d := time.Duration(p.DurationSeconds) * time.Second; d > total {
			total = d
		}
	}
	return Model{
		updates:   updates,
		order:     order,
		rows:      rows,
		progress:  progress.New(progress.WithDefaultGradient()),
		startTime: time.Now(),
		total:     total,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 4
		for _, r := range m.rows {
			half := msg.Width/2 - 8
			if half < 10 {
				half = 10
			}
			r.rps.SetWidth(half)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}

	case engine.Snapshot:
		if r, ok := m.rows[msg.Label]; ok {
			dt := (msg.Elapsed - r.lastElapsed).Seconds()
			if dt > 0 {
				r.rps.Push(float64(msg.Requests-r.lastReqs) / dt)
			}
			r.lastReqs = msg.Requests
			r.lastElapsed = msg.Elapsed
			r.last = msg
		}
		return m, waitForUpdate(m.updates)

	case doneMsg:
		m.quitting = true
		return m, tea.Quit

	case tickMsg:
		pct := 1.0
		if m.total > 0 {
			pct = float64(time.Since(m.startTime)) / float64(m.total)
			if pct > 1.0 {
				pct = 1.0
			}
		}
		return m, tea.Batch(m.progress.SetPercent(pct), tickCmd())

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := strings.Builder{}
	s.WriteString(styles.Title.Render("perftest live run"))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf(
		"Elapsed: %s / %s", time.Since(m.startTime).Round(time.Second), m.total)))
	s.WriteString("\n\n")

	for _, name := range m.order {
		s.WriteString(m.renderRow(m.rows[name]))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(m.progress.View())
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render("Press q to quit"))
	return s.String()
}

func (m Model) renderRow(r *row) string {
	snap := r.last

	header := fmt.Sprintf("%s  %s",
		styles.Active.Render(string(r.plan.Scenario)),
		styles.Subtle.Render(fmt.Sprintf("%s | %d users @ %.1f/s | %ds",
			r.plan.Host, r.plan.UserCount, r.plan.SpawnRate, r.plan.DurationSeconds)))

	failStyle := styles.Value
	if snap.Failures > 0 {
		failStyle = styles.Error
	}
	counters := fmt.Sprintf("REQ %s  FAIL %s  INF %d  RX %dKB",
		styles.Value.Render(fmt.Sprintf("%d", snap.Requests)),
		failStyle.Render(fmt.Sprintf("%d", snap.Failures)),
		snap.Inflight,
		snap.Bytes/1024)

	latency := styles.Text.Render(fmt.Sprintf(
		"P50 %.0fms  P95 %.0fms  P99 %.0fms  MAX %.0fms",
		snap.P50Ms, snap.P95Ms, snap.P99Ms, snap.MaxMs))

	spark := fmt.Sprintf("%s %s", r.rps.View(),
		styles.Subtle.Render(fmt.Sprintf("peak %.0f req/s", r.rps.Peak())))

	body := lipgloss.JoinVertical(lipgloss.Left, header, counters, latency, spark)
	return styles.Box.Render(body)
}

// waitForUpdate blocks on the next snapshot; a closed channel ends the view.
func waitForUpdate(ch engine.UpdateChan) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return doneMsg{}
		}
		return snap
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

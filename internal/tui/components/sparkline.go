package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var ramp = []rune("▁▂▃▄▅▆▇█")

// Sparkline is a fixed-width rolling graph of recent values, scaled to the
// peak of the visible window.
type Sparkline struct {
	width  int
	values []float64
	style  lipgloss.Style
}

func NewSparkline(width int, style lipgloss.Style) *Sparkline {
	if width < 1 {
		width = 1
	}
	return &Sparkline{
		width:  width,
		style:  style,
		values: make([]float64, 0, width),
	}
}

// Push appends a value, dropping the oldest once the window is full.
func (s *Sparkline) Push(v float64) {
	if v < 0 {
		v = 0
	}
	s.values = append(s.values, v)
	if len(s.values) > s.width {
		s.values = s.values[len(s.values)-s.width:]
	}
}

// SetWidth resizes the window, trimming history if it shrinks.
func (s *Sparkline) SetWidth(w int) {
	if w < 1 {
		w = 1
	}
	s.width = w
	if len(s.values) > w {
		s.values = s.values[len(s.values)-w:]
	}
}

// Peak reports the largest value currently visible.
func (s *Sparkline) Peak() float64 {
	peak := 0.0
	for _, v := range s.values {
		if v > peak {
			peak = v
		}
	}
	return peak
}

// View renders one line, left-padded to the full window width.
func (s *Sparkline) View() string {
	var b strings.Builder
	if pad := s.width - len(s.values); pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}

	peak := s.Peak()
	for _, v := range s.values {
		if peak == 0 {
			b.WriteRune(ramp[0])
			continue
		}
		idx := int(v / peak * float64(len(ramp)-1))
		if idx >= len(ramp) {
			idx = len(ramp) - 1
		}
		b.WriteRune(ramp[idx])
	}
	return s.style.Render(b.String())
}

package waveform

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []rune(" ▁▂▃▄▅▆▇█")

// Terminal renders peaks as a single row of block glyphs.
type Terminal struct {
	Played   lipgloss.Style
	Unplayed lipgloss.Style
	Cursor   lipgloss.Style
}

// NewTerminal returns the default terminal styles.
func NewTerminal() Terminal {
	return Terminal{
		Played:   lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		Unplayed: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Cursor:   lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true),
	}
}

// Glyph returns the block glyph for a peak amplitude.
func Glyph(peak float32) rune {
	if peak <= 0 {
		return levels[0]
	}
	i := int(peak*float32(len(levels)-1) + 0.5)
	if i < 1 {
		i = 1
	}
	if i >= len(levels) {
		i = len(levels) - 1
	}
	return levels[i]
}

// Render draws one glyph per peak, two-toned around position with the
// cursor column highlighted. Runs sharing a style are rendered together.
func (t Terminal) Render(peaks []float32, position float64) string {
	n := len(peaks)
	if n == 0 {
		return ""
	}
	position = SeekFraction(position, 1)
	cursor := min(int(position*float64(n)), n-1)

	var b strings.Builder
	var run []rune
	var runStyle *lipgloss.Style
	flush := func() {
		if len(run) > 0 {
			b.WriteString(runStyle.Render(string(run)))
			run = run[:0]
		}
	}

	for i, p := range peaks {
		style := &t.Unplayed
		switch {
		case i == cursor:
			style = &t.Cursor
		case i < cursor:
			style = &t.Played
		}
		if style != runStyle {
			flush()
			runStyle = style
		}
		g := Glyph(p)
		if i == cursor && g == ' ' {
			g = '│'
		}
		run = append(run, g)
	}
	flush()
	return b.String()
}

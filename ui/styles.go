package ui

import (
	"github.com/charmbracelet/lipgloss"
	te "github.com/muesli/termenv"

	"github.com/dgnsrekt/sampledeck/internal/waveform"
)

const ellipsis = "…"

var (
	fuchsia  = lipgloss.Color("#EE6FF8")
	cream    = lipgloss.Color("#FFFDF5")
	red      = lipgloss.Color("#ED567A")
	green    = lipgloss.Color("#04B575")
	yellow   = lipgloss.Color("#ECFD65")
	darkGray = lipgloss.Color("#333333")

	subtleColor = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	dimColor    = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(lipgloss.Color("#5A56E0")).
			Padding(0, 1)

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(red).
			Padding(0, 1)

	subtleStyle   = lipgloss.NewStyle().Foreground(subtleColor)
	dimStyle      = lipgloss.NewStyle().Foreground(dimColor)
	selectedStyle = lipgloss.NewStyle().Foreground(fuchsia).Bold(true)
	failedStyle   = lipgloss.NewStyle().Foreground(red)
	readyStyle    = lipgloss.NewStyle().Foreground(green)
	flagOnStyle   = lipgloss.NewStyle().Foreground(darkGray).Background(yellow).Padding(0, 1)
	flagOffStyle  = lipgloss.NewStyle().Foreground(dimColor).Padding(0, 1)
	messageStyle  = lipgloss.NewStyle().Foreground(green)
)

// waveformStyles picks waveform colors readable on the terminal background.
func waveformStyles() waveform.Terminal {
	t := waveform.NewTerminal()
	if !te.HasDarkBackground() {
		t.Unplayed = t.Unplayed.Foreground(lipgloss.Color("250"))
		t.Cursor = t.Cursor.Foreground(lipgloss.Color("16"))
	}
	return t
}

package ui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/sampledeck/internal/audio"
	"github.com/dgnsrekt/sampledeck/internal/library"
)

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	samplesLoadedMsg struct {
		samples []library.Sample
	}
	selectDoneMsg struct {
		sample library.Sample
		err    error
	}
	// actionDoneMsg reports the outcome of a transport command.
	actionDoneMsg struct {
		action string
		err    error
	}
	tickMsg                 time.Time
	statusMessageTimeoutMsg struct{ id int }
	copiedMsg               struct {
		path string
		err  error
	}
)

// COMMANDS

func listSamples(ctx context.Context, lib library.Library) tea.Cmd {
	return func() tea.Msg {
		samples, err := lib.List(ctx)
		if err != nil {
			log.Error("Could not list samples", "error", err)
			return errMsg{err}
		}
		log.Debug("Samples listed", "count", len(samples))
		return samplesLoadedMsg{samples: samples}
	}
}

func selectSample(ctx context.Context, p Player, s library.Sample) tea.Cmd {
	return func() tea.Msg {
		return selectDoneMsg{sample: s, err: p.Select(ctx, s)}
	}
}

func transportCmd(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn()}
	}
}

func recoverAudio(ctx context.Context, a AudioContext, signal audio.Signal) tea.Cmd {
	return transportCmd("recover", func() error {
		return a.Recover(ctx, signal)
	})
}

func suspendAudio(a AudioContext) tea.Cmd {
	return transportCmd("suspend", a.Suspend)
}

func copyPath(path string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{path: path, err: clipboard.WriteAll(path)}
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForStatusMessageTimeout(id int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{id: id}
	})
}

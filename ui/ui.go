// Package ui provides the terminal interface for browsing and auditioning
// samples.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/sampledeck/internal/audio"
	"github.com/dgnsrekt/sampledeck/internal/cache"
	"github.com/dgnsrekt/sampledeck/internal/library"
	"github.com/dgnsrekt/sampledeck/internal/playback"
	"github.com/dgnsrekt/sampledeck/internal/waveform"
)

const (
	statusMessageTimeout = time.Second * 3
	waveformIndent       = 2
	// header, blank, blank, waveform, status, blank
	chromeLines = 6
)

// Player is the playback surface the TUI drives. *playback.Orchestrator
// implements it.
type Player interface {
	Select(ctx context.Context, sample library.Sample) error
	Restart(ctx context.Context) error
	TogglePlayback(ctx context.Context) error
	ToggleLoop() bool
	ToggleAutoPlay() bool
	Stop()
	Seek(fraction float64) error
	Status() playback.Status
}

// BufferSource exposes the decoded buffer for the waveform. *audio.Engine
// implements it.
type BufferSource interface {
	Buffer() *audio.Buffer
}

// AudioContext receives focus changes. *audio.ContextManager implements it.
type AudioContext interface {
	audio.Recoverer
	Suspend() error
}

// CacheStats reports cache usage. *cache.CacheManager implements it.
type CacheStats interface {
	Stats() cache.ManagerStats
}

// Deps are the collaborators of the TUI. Cache may be nil.
type Deps struct {
	Library library.Library
	Player  Player
	Buffers BufferSource
	Audio   AudioContext
	Cache   CacheStats
}

// NewProgram returns a new Tea program.
func NewProgram(ctx context.Context, cfg Config, deps Deps) *tea.Program {
	log.Debug("Starting sampledeck", "source", cfg.Source, "mouse", cfg.EnableMouse)

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx)}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(ctx, cfg, deps), opts...)
}

type model struct {
	ctx      context.Context
	cfg      Config
	deps     Deps
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	terminal waveform.Terminal

	width  int
	height int

	loading bool
	samples []library.Sample
	// visible is samples narrowed by the filter
	visible   []library.Sample
	cursor    int
	offset    int
	filter    textinput.Model
	filtering bool

	status   playback.Status
	message  string
	msgID    int
	fatalErr error
}

func newModel(ctx context.Context, cfg Config, deps Deps) model {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 33 * time.Millisecond
	}
	if cfg.SeekStep <= 0 {
		cfg.SeekStep = 0.05
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = selectedStyle

	fi := textinput.New()
	fi.Prompt = "Find: "
	fi.PromptStyle = selectedStyle
	fi.CharLimit = 64

	return model{
		ctx:      ctx,
		cfg:      cfg,
		deps:     deps,
		keys:     newKeyMap(),
		help:     help.New(),
		spinner:  sp,
		filter:   fi,
		terminal: waveformStyles(),
		loading:  true,
		width:    80,
		height:   24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		listSamples(m.ctx, m.deps.Library),
		tick(m.cfg.RefreshInterval),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filtering {
			return m.handleFilterKey(msg)
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.clampScroll()

	case tea.FocusMsg:
		return m, recoverAudio(m.ctx, m.deps.Audio, audio.SignalFocus)

	case tea.BlurMsg:
		if m.cfg.PauseOnFocusLoss {
			return m, suspendAudio(m.deps.Audio)
		}

	case samplesLoadedMsg:
		m.loading = false
		m.samples = msg.samples
		m.applyFilter()

	case selectDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			return m, m.flash(fmt.Sprintf("%s: %v", msg.sample.Filename, msg.err))
		}

	case actionDoneMsg:
		if msg.err != nil {
			log.Warn("Playback action failed", "action", msg.action, "error", msg.err)
			return m, m.flash(fmt.Sprintf("%s failed: %v", msg.action, msg.err))
		}

	case copiedMsg:
		if msg.err != nil {
			return m, m.flash("Could not copy: " + msg.err.Error())
		}
		return m, m.flash("Copied " + msg.path)

	case statusMessageTimeoutMsg:
		if msg.id == m.msgID {
			m.message = ""
		}

	case tickMsg:
		m.status = m.deps.Player.Status()
		return m, tick(m.cfg.RefreshInterval)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case errMsg:
		m.loading = false
		m.fatalErr = msg.err

	default:
		// Cursor blinks
		if m.filtering {
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.deps.Player

	switch {
	case key.Matches(msg, m.keys.Quit):
		p.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.clampScroll()
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.visible)-1 {
			m.cursor++
			m.clampScroll()
		}

	case key.Matches(msg, m.keys.Select):
		if s, ok := m.selected(); ok {
			return m, selectSample(m.ctx, p, s)
		}

	case key.Matches(msg, m.keys.Play):
		return m, transportCmd("play", func() error { return p.TogglePlayback(m.ctx) })

	case key.Matches(msg, m.keys.Restart):
		return m, transportCmd("restart", func() error { return p.Restart(m.ctx) })

	case key.Matches(msg, m.keys.Loop):
		m.status.Prefs.Loop = p.ToggleLoop()

	case key.Matches(msg, m.keys.AutoPlay):
		m.status.Prefs.AutoPlay = p.ToggleAutoPlay()

	case key.Matches(msg, m.keys.Back):
		return m, m.seek(m.status.Engine.Position - m.cfg.SeekStep)

	case key.Matches(msg, m.keys.Forward):
		return m, m.seek(m.status.Engine.Position + m.cfg.SeekStep)

	case key.Matches(msg, m.keys.Copy):
		if s, ok := m.selected(); ok {
			path := s.Path
			if path == "" {
				path = s.ID
			}
			return m, copyPath(path)
		}

	case key.Matches(msg, m.keys.Reload):
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, listSamples(m.ctx, m.deps.Library))

	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.clampScroll()
	}

	return m, nil
}

// handleFilterKey edits the filter. Enter keeps it, esc clears it.
func (m model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.Reset()
		m.applyFilter()
		return m, nil
	case tea.KeyCtrlC:
		m.deps.Player.Stop()
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

// applyFilter narrows the visible samples to fuzzy matches of the filter,
// best match first.
func (m *model) applyFilter() {
	term := strings.TrimSpace(m.filter.Value())
	if term == "" {
		m.visible = m.samples
	} else {
		names := make([]string, len(m.samples))
		for i, s := range m.samples {
			names[i] = s.Filename
		}
		matches := fuzzy.Find(term, names)
		m.visible = make([]library.Sample, 0, len(matches))
		for _, match := range matches {
			m.visible = append(m.visible, m.samples[match.Index])
		}
	}
	m.cursor = max(0, min(m.cursor, len(m.visible)-1))
	m.clampScroll()
}

func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress {
		return m, nil
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		return m.handleKey(tea.KeyMsg{Type: tea.KeyUp})
	case tea.MouseButtonWheelDown:
		return m.handleKey(tea.KeyMsg{Type: tea.KeyDown})
	case tea.MouseButtonLeft:
	default:
		return m, nil
	}

	if msg.Y == m.waveformRow() {
		x := float64(msg.X - waveformIndent)
		return m, m.seek(waveform.SeekFraction(x, float64(m.waveformWidth())))
	}

	// Clicking a row selects it
	row := msg.Y - 2
	if row >= 0 && row < m.listHeight() {
		if i := m.offset + row; i < len(m.visible) {
			m.cursor = i
			return m, selectSample(m.ctx, m.deps.Player, m.visible[i])
		}
	}
	return m, nil
}

func (m model) seek(fraction float64) tea.Cmd {
	fraction = waveform.SeekFraction(fraction, 1)
	return transportCmd("seek", func() error { return m.deps.Player.Seek(fraction) })
}

// flash shows a status message until it times out.
func (m *model) flash(s string) tea.Cmd {
	m.msgID++
	m.message = s
	return waitForStatusMessageTimeout(m.msgID, statusMessageTimeout)
}

func (m model) selected() (library.Sample, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return library.Sample{}, false
	}
	return m.visible[m.cursor], true
}

func (m model) helpLines() int {
	if m.help.ShowAll {
		return 4
	}
	return 1
}

func (m model) listHeight() int {
	return max(m.height-chromeLines-m.helpLines(), 1)
}

func (m model) waveformRow() int {
	return 3 + m.listHeight()
}

func (m model) waveformWidth() int {
	return max(m.width-2*waveformIndent, 8)
}

// clampScroll keeps the cursor within the visible window.
func (m *model) clampScroll() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	m.offset = max(0, min(m.offset, max(len(m.visible)-h, 0)))
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")
	b.WriteString(m.listView())
	b.WriteString("\n")
	b.WriteString(strings.Repeat(" ", waveformIndent) + m.waveformView())
	b.WriteString("\n")
	b.WriteString(m.statusView())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m model) waveformView() string {
	if m.deps.Buffers == nil {
		return ""
	}
	buf := m.deps.Buffers.Buffer()
	if buf == nil {
		return dimStyle.Render(strings.Repeat("·", m.waveformWidth()))
	}
	return m.terminal.Render(buf.Peaks(m.waveformWidth()), m.status.Engine.Position)
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}

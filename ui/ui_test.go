package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/sampledeck/internal/audio"
	"github.com/dgnsrekt/sampledeck/internal/library"
	"github.com/dgnsrekt/sampledeck/internal/playback"
)

type fakePlayer struct {
	mu       sync.Mutex
	calls    []string
	selected []string
	seeks    []float64
	loop     bool
	auto     bool
	status   playback.Status
}

func (p *fakePlayer) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakePlayer) Select(_ context.Context, s library.Sample) error {
	p.record("select")
	p.mu.Lock()
	p.selected = append(p.selected, s.ID)
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Restart(context.Context) error        { p.record("restart"); return nil }
func (p *fakePlayer) TogglePlayback(context.Context) error { p.record("toggle"); return nil }
func (p *fakePlayer) Stop()                                { p.record("stop") }

func (p *fakePlayer) ToggleLoop() bool {
	p.record("loop")
	p.loop = !p.loop
	return p.loop
}

func (p *fakePlayer) ToggleAutoPlay() bool {
	p.record("auto")
	p.auto = !p.auto
	return p.auto
}

func (p *fakePlayer) Seek(f float64) error {
	p.record("seek")
	p.mu.Lock()
	p.seeks = append(p.seeks, f)
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Status() playback.Status { return p.status }

func (p *fakePlayer) last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return ""
	}
	return p.calls[len(p.calls)-1]
}

type fakeAudio struct {
	recovered []audio.Signal
	suspended int
}

func (a *fakeAudio) Recover(_ context.Context, s audio.Signal) error {
	a.recovered = append(a.recovered, s)
	return nil
}

func (a *fakeAudio) Suspend() error {
	a.suspended++
	return nil
}

type staticLibrary []library.Sample

func (l staticLibrary) List(context.Context) ([]library.Sample, error) { return l, nil }

func newTestModel(t *testing.T, cfg Config) (model, *fakePlayer, *fakeAudio) {
	t.Helper()
	p := &fakePlayer{}
	a := &fakeAudio{}
	lib := staticLibrary{
		{ID: "1", Filename: "kick.wav", Path: "/samples/kick.wav", Format: "wav", Size: 2048},
		{ID: "2", Filename: "snare.wav", Path: "/samples/snare.wav", Format: "wav"},
		{ID: "3", Filename: "hat.flac", Path: "/samples/hat.flac", Format: "flac"},
	}
	m := newModel(context.Background(), cfg, Deps{Library: lib, Player: p, Audio: a})
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 20})
	m = update(t, m, samplesLoadedMsg{samples: lib})
	return m, p, a
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

// press sends a key and runs the resulting command, if any.
func press(t *testing.T, m model, k tea.KeyMsg) (model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(k)
	if cmd == nil {
		return next.(model), nil
	}
	return next.(model), cmd()
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestKeyBindings(t *testing.T) {
	testCases := []struct {
		description string
		key         tea.KeyMsg
		want        string
	}{
		{"Space toggles playback", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, "toggle"},
		{"r restarts", runes("r"), "restart"},
		{"l toggles loop", runes("l"), "loop"},
		{"a toggles auto-play", runes("a"), "auto"},
		{"Enter selects", tea.KeyMsg{Type: tea.KeyEnter}, "select"},
		{"Right seeks", tea.KeyMsg{Type: tea.KeyRight}, "seek"},
		{"Left seeks", tea.KeyMsg{Type: tea.KeyLeft}, "seek"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			m, p, _ := newTestModel(t, Config{})
			press(t, m, tc.key)
			if got := p.last(); got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestQuitStopsPlayback(t *testing.T) {
	m, p, _ := newTestModel(t, Config{})
	_, msg := press(t, m, runes("q"))
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("Expected quit, got %T", msg)
	}
	if p.last() != "stop" {
		t.Error("Quitting should stop playback")
	}
}

func TestSelectFollowsCursor(t *testing.T) {
	m, p, _ := newTestModel(t, Config{})

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 2 {
		t.Fatalf("Cursor should stop at the last sample, got %d", m.cursor)
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if len(p.selected) != 1 || p.selected[0] != "3" {
		t.Errorf("Expected sample 3 selected, got %v", p.selected)
	}
}

func TestSeekSteps(t *testing.T) {
	m, p, _ := newTestModel(t, Config{SeekStep: 0.25})
	m.status.Engine.Position = 0.9

	press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m.status.Engine.Position = 0.1
	press(t, m, tea.KeyMsg{Type: tea.KeyLeft})

	if len(p.seeks) != 2 || p.seeks[0] != 1 || p.seeks[1] != 0 {
		t.Errorf("Seeks should clamp to [0, 1], got %v", p.seeks)
	}
}

func TestWaveformClickSeeks(t *testing.T) {
	m, p, _ := newTestModel(t, Config{EnableMouse: true})

	click := tea.MouseMsg{
		X:      waveformIndent + m.waveformWidth()/2,
		Y:      m.waveformRow(),
		Action: tea.MouseActionPress,
		Button: tea.MouseButtonLeft,
	}
	next, cmd := m.Update(click)
	if cmd == nil {
		t.Fatal("Click on the waveform should seek")
	}
	cmd()
	if len(p.seeks) != 1 || p.seeks[0] != 0.5 {
		t.Errorf("Expected seek to 0.5, got %v", p.seeks)
	}

	row := tea.MouseMsg{X: 5, Y: 3, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
	next, cmd = next.(model).Update(row)
	if cmd == nil {
		t.Fatal("Click on a row should select it")
	}
	cmd()
	if next.(model).cursor != 1 || p.last() != "select" {
		t.Errorf("Expected second row selected, cursor=%d last=%s", next.(model).cursor, p.last())
	}
}

func TestFocusSignals(t *testing.T) {
	m, _, a := newTestModel(t, Config{PauseOnFocusLoss: true})

	_, cmd := m.Update(tea.FocusMsg{})
	cmd()
	if len(a.recovered) != 1 || a.recovered[0] != audio.SignalFocus {
		t.Errorf("Focus should trigger recovery, got %v", a.recovered)
	}

	_, cmd = m.Update(tea.BlurMsg{})
	cmd()
	if a.suspended != 1 {
		t.Errorf("Blur should suspend, got %d", a.suspended)
	}

	m, _, a = newTestModel(t, Config{})
	if _, cmd := m.Update(tea.BlurMsg{}); cmd != nil {
		t.Error("Blur without pause on focus loss should do nothing")
	}
	if a.suspended != 0 {
		t.Error("Unexpected suspend")
	}
}

func TestFailedSelectionShown(t *testing.T) {
	m, p, _ := newTestModel(t, Config{})
	sample := m.samples[0]
	failure := playback.NewError(playback.ErrNotFound, "playback", "fetch", sample.ID)
	p.status = playback.Status{
		HasSample: true,
		Sample:    sample,
		Selection: playback.SampleStatus{SampleID: sample.ID, State: playback.SampleFailed, Err: failure},
	}
	m = update(t, m, tickMsg{})

	view := m.View()
	if !strings.Contains(view, "✗") {
		t.Error("Failed sample should carry a failure marker")
	}
	if !strings.Contains(view, "sample not found") {
		t.Error("Failure reason should appear in the status line")
	}
}

func TestActionErrorFlashes(t *testing.T) {
	m, _, _ := newTestModel(t, Config{})
	next, cmd := m.Update(actionDoneMsg{action: "play", err: errors.New("device gone")})
	if cmd == nil {
		t.Fatal("Expected timeout command")
	}
	m = next.(model)
	if !strings.Contains(m.message, "device gone") {
		t.Errorf("Unexpected message %q", m.message)
	}

	m = update(t, m, statusMessageTimeoutMsg{id: m.msgID})
	if m.message != "" {
		t.Error("Message should clear after timeout")
	}
}

func TestScrollKeepsCursorVisible(t *testing.T) {
	m, _, _ := newTestModel(t, Config{})
	many := make([]library.Sample, 50)
	for i := range many {
		many[i] = library.Sample{ID: string(rune('a' + i%26)), Filename: "s.wav"}
	}
	m = update(t, m, samplesLoadedMsg{samples: many})

	for i := 0; i < 30; i++ {
		m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	}
	if m.cursor < m.offset || m.cursor >= m.offset+m.listHeight() {
		t.Errorf("Cursor %d outside window [%d, %d)", m.cursor, m.offset, m.offset+m.listHeight())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0s", "--:--"},
		{"1.5s", "0:01.50"},
		{"75s", "1:15.00"},
	}
	for _, tt := range tests {
		d, _ := time.ParseDuration(tt.in)
		if got := formatDuration(d); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFuzzyFilter(t *testing.T) {
	m, p, _ := newTestModel(t, Config{})

	m = update(t, m, runes("/"))
	if !m.filtering {
		t.Fatal("Slash should start filtering")
	}
	for _, r := range "snr" {
		m = update(t, m, runes(string(r)))
	}
	if len(m.visible) != 1 || m.visible[0].ID != "2" {
		t.Fatalf("Expected only snare to match, got %v", m.visible)
	}
	if p.last() != "" {
		t.Error("Typing into the filter must not trigger playback keys")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.filtering {
		t.Error("Enter should finish filtering")
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(p.selected) != 1 || p.selected[0] != "2" {
		t.Errorf("Expected filtered sample selected, got %v", p.selected)
	}

	m = update(t, m, runes("/"))
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if len(m.visible) != 3 {
		t.Errorf("Esc should clear the filter, %d visible", len(m.visible))
	}
}

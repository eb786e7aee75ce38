package audio

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// MockBackend creates in-memory contexts for tests and device-less hosts.
// Voices only consume their source when driven through Consume, unless the
// backend is realtime.
type MockBackend struct {
	sampleRate int
	realtime   bool

	mu             sync.Mutex
	contexts       []*MockContext
	createErr      error
	startSuspended bool
}

// NewMockBackend creates a deterministic mock backend.
func NewMockBackend(sampleRate int) *MockBackend {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &MockBackend{sampleRate: sampleRate}
}

// NewRealtimeMockBackend creates a mock backend whose playing voices drain
// their source at the output sample rate.
func NewRealtimeMockBackend(sampleRate int) *MockBackend {
	b := NewMockBackend(sampleRate)
	b.realtime = true
	return b
}

// NewContext implements Backend.
func (b *MockBackend) NewContext() (Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.createErr != nil {
		return nil, b.createErr
	}
	state := ContextRunning
	if b.startSuspended {
		state = ContextSuspended
	}
	c := &MockContext{state: state, sampleRate: b.sampleRate, realtime: b.realtime}
	b.contexts = append(b.contexts, c)
	log.Debug("Created mock audio context", "state", state, "created", len(b.contexts))
	return c, nil
}

// SetCreateError makes subsequent NewContext calls fail with err.
func (b *MockBackend) SetCreateError(err error) {
	b.mu.Lock()
	b.createErr = err
	b.mu.Unlock()
}

// StartSuspended makes new contexts start in the suspended state, as
// platforms that require a user gesture do.
func (b *MockBackend) StartSuspended(v bool) {
	b.mu.Lock()
	b.startSuspended = v
	b.mu.Unlock()
}

// Created returns how many contexts were created.
func (b *MockBackend) Created() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.contexts)
}

// Last returns the most recently created context, or nil.
func (b *MockBackend) Last() *MockContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.contexts) == 0 {
		return nil
	}
	return b.contexts[len(b.contexts)-1]
}

// MockContext implements Context in memory.
type MockContext struct {
	sampleRate int
	realtime   bool

	mu         sync.Mutex
	state      ContextState
	voices     []*MockVoice
	resumeErr  error
	voiceErr   error
	closeErr   error
	resumeGate chan struct{}

	resumeCalls atomic.Int32
}

// NewVoice implements Context.
func (c *MockContext) NewVoice(r io.Reader) (Voice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == ContextClosed {
		return nil, ErrContextClosed
	}
	if c.voiceErr != nil {
		return nil, c.voiceErr
	}
	v := &MockVoice{ctx: c, reader: r}
	c.voices = append(c.voices, v)
	return v, nil
}

// State implements Context.
func (c *MockContext) State() ContextState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Suspend implements Context.
func (c *MockContext) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ContextClosed {
		return ErrContextClosed
	}
	c.state = ContextSuspended
	return nil
}

// Resume implements Context. It blocks while a gate installed by BlockResume
// is held.
func (c *MockContext) Resume() error {
	c.resumeCalls.Add(1)

	c.mu.Lock()
	gate := c.resumeGate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ContextClosed {
		return ErrContextClosed
	}
	if c.resumeErr != nil {
		return c.resumeErr
	}
	c.state = ContextRunning
	return nil
}

// Close implements Context.
func (c *MockContext) Close() error {
	c.mu.Lock()
	voices := c.voices
	c.voices = nil
	c.state = ContextClosed
	err := c.closeErr
	c.mu.Unlock()

	for _, v := range voices {
		_ = v.Close()
	}
	return err
}

// SampleRate implements Context.
func (c *MockContext) SampleRate() int {
	return c.sampleRate
}

// SimulateSuspend moves the context to suspended as if the platform did it.
func (c *MockContext) SimulateSuspend() {
	c.mu.Lock()
	if c.state != ContextClosed {
		c.state = ContextSuspended
	}
	c.mu.Unlock()
}

// SimulateClose moves the context to closed as if the device went away.
func (c *MockContext) SimulateClose() {
	c.mu.Lock()
	c.state = ContextClosed
	c.mu.Unlock()
}

// SetResumeError makes Resume fail with err.
func (c *MockContext) SetResumeError(err error) {
	c.mu.Lock()
	c.resumeErr = err
	c.mu.Unlock()
}

// SetVoiceError makes NewVoice fail with err.
func (c *MockContext) SetVoiceError(err error) {
	c.mu.Lock()
	c.voiceErr = err
	c.mu.Unlock()
}

// SetCloseError makes Close fail with err after closing.
func (c *MockContext) SetCloseError(err error) {
	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()
}

// BlockResume makes Resume block until the returned release func is called.
func (c *MockContext) BlockResume() (release func()) {
	gate := make(chan struct{})
	c.mu.Lock()
	c.resumeGate = gate
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.resumeGate = nil
			c.mu.Unlock()
			close(gate)
		})
	}
}

// ResumeCalls returns how many times Resume reached the platform.
func (c *MockContext) ResumeCalls() int {
	return int(c.resumeCalls.Load())
}

// Voices returns every voice created on this context that is still open.
func (c *MockContext) Voices() []*MockVoice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*MockVoice(nil), c.voices...)
}

// LastVoice returns the most recently created voice, or nil.
func (c *MockContext) LastVoice() *MockVoice {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.voices) == 0 {
		return nil
	}
	return c.voices[len(c.voices)-1]
}

// ActiveVoices counts voices currently playing.
func (c *MockContext) ActiveVoices() int {
	n := 0
	for _, v := range c.Voices() {
		if v.IsPlaying() {
			n++
		}
	}
	return n
}

// MockVoice implements Voice over an in-memory reader.
type MockVoice struct {
	ctx    *MockContext
	reader io.Reader

	mu       sync.Mutex
	playing  bool
	closed   bool
	drained  bool
	consumed int
	pump     chan struct{}
}

// Play implements Voice.
func (v *MockVoice) Play() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.drained || v.playing {
		return
	}
	v.playing = true
	if v.ctx.realtime {
		v.pump = make(chan struct{})
		go v.run(v.pump)
	}
}

// Pause implements Voice.
func (v *MockVoice) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopPumpLocked()
	v.playing = false
}

// IsPlaying implements Voice.
func (v *MockVoice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

// BufferedSize implements Voice. Mock voices never buffer ahead.
func (v *MockVoice) BufferedSize() int {
	return 0
}

// Close implements Voice.
func (v *MockVoice) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopPumpLocked()
	v.playing = false
	v.closed = true
	return nil
}

// Closed reports whether Close was called.
func (v *MockVoice) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// Consumed returns how many frames the voice has read.
func (v *MockVoice) Consumed() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.consumed
}

// Consume reads up to frames frames from the source as if they were heard.
// A playing voice stops when its source is exhausted.
func (v *MockVoice) Consume(frames int) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.consumeLocked(frames)
}

func (v *MockVoice) consumeLocked(frames int) int {
	if !v.playing || v.closed {
		return 0
	}
	buf := make([]byte, frames*frameBytes)
	total := 0
	for total < len(buf) {
		n, err := v.reader.Read(buf[total:])
		total += n
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("Mock voice source failed", "error", err)
			}
			v.drained = true
			v.playing = false
			v.stopPumpLocked()
			break
		}
		if n == 0 {
			break
		}
	}
	read := total / frameBytes
	v.consumed += read
	return read
}

func (v *MockVoice) stopPumpLocked() {
	if v.pump != nil {
		close(v.pump)
		v.pump = nil
	}
}

func (v *MockVoice) run(stop chan struct{}) {
	const tick = 10 * time.Millisecond
	frames := v.ctx.sampleRate * int(tick) / int(time.Second)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if v.ctx.State() != ContextRunning {
				continue
			}
			v.mu.Lock()
			// Pause may have replaced the pump while we waited on the lock
			if v.pump != stop {
				v.mu.Unlock()
				return
			}
			v.consumeLocked(frames)
			v.mu.Unlock()
		}
	}
}

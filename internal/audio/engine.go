package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultFrameInterval refreshes the position at display frame rate.
const DefaultFrameInterval = time.Second / 60

// ContextProvider supplies the output context. *ContextManager implements it.
type ContextProvider interface {
	Context() (Context, error)
	Resume(ctx context.Context) error
	Reset() (Context, error)
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	// PeakBuckets is the bucket count precomputed on every load. Zero skips
	// precomputation.
	PeakBuckets int
	// FrameInterval is how often the position is refreshed while playing.
	FrameInterval time.Duration
	// OnEnded is called after a non-looping session reaches its end.
	OnEnded func()
}

// Engine decodes one sample at a time and drives its transport. Transport
// calls that do not apply to the current state are ignored.
type Engine struct {
	contexts ContextProvider
	decoder  Decoder
	config   EngineConfig

	mu      sync.Mutex
	state   StateType
	buffer  *Buffer
	session *session
	offset  int // frames
	lastErr error
	loadSeq uint64

	loop     atomic.Bool
	position atomic.Uint64 // float64 bits of the heard fraction
}

// NewEngine creates an idle engine.
func NewEngine(contexts ContextProvider, decoder Decoder, config EngineConfig) *Engine {
	if config.FrameInterval <= 0 {
		config.FrameInterval = DefaultFrameInterval
	}
	return &Engine{
		contexts: contexts,
		decoder:  decoder,
		config:   config,
		state:    StateIdle,
	}
}

// Load decodes blob and makes it the current buffer, stopping any playback.
// A load that completes after a newer Load started returns ErrSuperseded and
// leaves the newer load in charge.
func (e *Engine) Load(ctx context.Context, blob []byte) (*Buffer, error) {
	e.mu.Lock()
	e.loadSeq++
	seq := e.loadSeq
	e.teardownLocked()
	e.state = StateDecoding
	e.buffer = nil
	e.offset = 0
	e.lastErr = nil
	e.setPosition(0)
	e.mu.Unlock()

	start := time.Now()
	buf, err := e.decoder.Decode(ctx, blob)
	if err == nil && e.config.PeakBuckets > 0 {
		buf.Peaks(e.config.PeakBuckets)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if seq != e.loadSeq {
		log.Debug("Discarding superseded decode", "seq", seq, "current", e.loadSeq)
		return nil, ErrSuperseded
	}
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			e.state = StateIdle
			return nil, err
		}
		e.state = StateError
		e.lastErr = err
		log.Debug("Decode failed", "error", err)
		return nil, err
	}

	e.buffer = buf
	e.state = StateReady
	log.Debug("Sample decoded",
		"frames", buf.Frames(),
		"duration", buf.Duration(),
		"took", time.Since(start))
	return buf, nil
}

// Play starts a new session from the stored offset. Playing while already
// playing is a no-op.
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StatePlaying {
		e.mu.Unlock()
		return nil
	}
	if e.state != StateReady && e.state != StateStopped {
		log.Debug("Ignoring play", "state", e.state)
		e.mu.Unlock()
		return nil
	}
	buf := e.buffer
	e.mu.Unlock()

	// Resuming may block, so it runs without holding the engine lock
	audioCtx, err := e.acquireContext(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.buffer != buf {
		return nil
	}
	if err != nil {
		e.failLocked(err)
		return err
	}
	if e.state != StateReady && e.state != StateStopped {
		return nil
	}
	return e.startLocked(audioCtx, e.offset)
}

// Stop tears down the active session and rewinds to the start.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.HasBuffer() {
		log.Debug("Ignoring stop", "state", e.state)
		return
	}
	e.teardownLocked()
	e.offset = 0
	e.setPosition(0)
	if e.state == StatePlaying {
		e.state = StateStopped
	}
}

// ToggleLoop flips the loop flag and returns the new value. The current
// session picks it up at its next wrap point.
func (e *Engine) ToggleLoop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := !e.loop.Load()
	e.loop.Store(v)
	return v
}

// SetLooping sets the loop flag.
func (e *Engine) SetLooping(v bool) {
	e.mu.Lock()
	e.loop.Store(v)
	e.mu.Unlock()
}

// Looping reports the loop flag.
func (e *Engine) Looping() bool {
	return e.loop.Load()
}

// Seek moves playback to fraction of the buffer. While playing the current
// session is replaced by one starting at the new offset; otherwise the
// offset is kept for the next Play.
func (e *Engine) Seek(fraction float64) error {
	fraction = clamp01(fraction)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.HasBuffer() {
		log.Debug("Ignoring seek", "state", e.state)
		return nil
	}

	frame := int(fraction * float64(e.buffer.Frames()))
	if e.state != StatePlaying {
		e.offset = frame
		e.setPosition(fraction)
		return nil
	}

	audioCtx := e.session.ctx
	e.teardownLocked()
	return e.startLocked(audioCtx, frame)
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		State:       e.state,
		Playing:     e.state == StatePlaying,
		Looping:     e.loop.Load(),
		Position:    e.Position(),
		BufferReady: e.state.HasBuffer(),
		Err:         e.lastErr,
	}
	if e.buffer != nil {
		st.Duration = e.buffer.Duration()
		st.Elapsed = time.Duration(st.Position * float64(st.Duration))
	}
	return st
}

// Position returns the last refreshed position fraction.
func (e *Engine) Position() float64 {
	return math.Float64frombits(e.position.Load())
}

// Buffer returns the loaded buffer, or nil.
func (e *Engine) Buffer() *Buffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer
}

// Close stops playback and forgets the loaded buffer.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.loadSeq++
	e.teardownLocked()
	e.buffer = nil
	e.offset = 0
	e.state = StateIdle
	e.setPosition(0)
}

func (e *Engine) acquireContext(ctx context.Context) (Context, error) {
	audioCtx, err := e.contexts.Context()
	if err != nil {
		return nil, err
	}
	if audioCtx.State() != ContextSuspended {
		return audioCtx, nil
	}
	if err := e.contexts.Resume(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		e.resetContext()
		return nil, err
	}
	return audioCtx, nil
}

// startLocked creates a session at offset (must be called with lock held).
func (e *Engine) startLocked(audioCtx Context, offset int) error {
	stream := newFrameStream(e.buffer, offset, &e.loop)
	voice, err := audioCtx.NewVoice(stream)
	if err != nil {
		e.resetContext()
		err = fmt.Errorf("%w: new voice: %v", ErrContext, err)
		e.failLocked(err)
		return err
	}

	s := newSession(audioCtx, voice, stream)
	voice.Play()
	e.session = s
	e.state = StatePlaying
	e.setPosition(float64(offset) / float64(max(e.buffer.Frames(), 1)))

	go e.watch(s)
	return nil
}

// watch refreshes the position of s and detects its natural end.
func (e *Engine) watch(s *session) {
	ticker := time.NewTicker(e.config.FrameInterval)
	defer ticker.Stop()

	frames := float64(max(s.stream.buffer.Frames(), 1))
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.finished() {
				e.ended(s)
				return
			}
			// A torn down session must not overwrite a newer position
			e.mu.Lock()
			if e.session == s {
				e.setPosition(float64(s.heardFrame()) / frames)
			}
			e.mu.Unlock()
		}
	}
}

func (e *Engine) ended(s *session) {
	e.mu.Lock()
	if e.session != s {
		e.mu.Unlock()
		return
	}
	e.teardownLocked()
	e.offset = 0
	e.setPosition(0)
	e.state = StateStopped
	onEnded := e.config.OnEnded
	e.mu.Unlock()

	log.Debug("Playback ended")
	if onEnded != nil {
		onEnded()
	}
}

// failLocked records a playback failure (must be called with lock held).
func (e *Engine) failLocked(err error) {
	e.teardownLocked()
	e.state = StateError
	e.lastErr = err
	log.Warn("Playback failed", "error", err)
}

func (e *Engine) resetContext() {
	if _, err := e.contexts.Reset(); err != nil {
		log.Warn("Audio context reset failed", "error", err)
	}
}

// teardownLocked closes the active session (must be called with lock held).
func (e *Engine) teardownLocked() {
	if e.session != nil {
		e.session.close()
		e.session = nil
	}
}

func (e *Engine) setPosition(f float64) {
	e.position.Store(math.Float64bits(f))
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

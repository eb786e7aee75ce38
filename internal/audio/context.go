package audio

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Output format shared by every context: interleaved stereo float32.
const (
	DefaultSampleRate = 44100
	ChannelCount      = 2
	bytesPerSample    = 4
	frameBytes        = ChannelCount * bytesPerSample
)

// ContextState is the lifecycle state of an output context.
type ContextState int

const (
	// ContextUninitialized means no context has been created yet.
	ContextUninitialized ContextState = iota
	// ContextRunning means the context is producing sound.
	ContextRunning
	// ContextSuspended means the platform or the user paused output.
	ContextSuspended
	// ContextClosed means the context is gone and must be recreated.
	ContextClosed
)

func (s ContextState) String() string {
	switch s {
	case ContextUninitialized:
		return "uninitialized"
	case ContextRunning:
		return "running"
	case ContextSuspended:
		return "suspended"
	case ContextClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Context is a platform audio output context.
type Context interface {
	// NewVoice creates a voice that pulls PCM frames from r.
	NewVoice(r io.Reader) (Voice, error)

	// State reports the current lifecycle state.
	State() ContextState

	// Suspend pauses output without releasing the context.
	Suspend() error

	// Resume brings a suspended context back to running. It blocks until the
	// platform reports the context running or fails.
	Resume() error

	// Close releases the context. A closed context cannot be resumed.
	Close() error

	// SampleRate returns the output sample rate.
	SampleRate() int
}

// Voice is a single playback source attached to a context.
type Voice interface {
	Play()
	Pause()
	IsPlaying() bool
	// BufferedSize is the number of bytes read from the source but not yet
	// heard.
	BufferedSize() int
	Close() error
}

// Backend creates platform contexts.
type Backend interface {
	NewContext() (Context, error)
}

// BackendConfig configures NewBackend.
type BackendConfig struct {
	SampleRate int
	BufferSize int // milliseconds
	Mock       bool
}

// NewBackend returns the oto backend, or the mock backend when requested or
// when running in CI where no output device exists.
func NewBackend(cfg BackendConfig) Backend {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Mock || isCI() {
		log.Debug("Using mock audio backend")
		return NewRealtimeMockBackend(cfg.SampleRate)
	}
	return NewOtoBackend(cfg.SampleRate, cfg.BufferSize)
}

func isCI() bool {
	for _, name := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "BUILDKITE"} {
		if v := os.Getenv(name); v != "" && v != "false" {
			log.Debug("CI environment detected", "variable", name)
			return true
		}
	}
	return false
}

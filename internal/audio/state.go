package audio

import "time"

// StateType is the transport state of the engine.
type StateType int

const (
	// StateIdle indicates nothing is loaded.
	StateIdle StateType = iota
	// StateDecoding indicates a blob is being decoded.
	StateDecoding
	// StateReady indicates a buffer is loaded and has not played yet.
	StateReady
	// StatePlaying indicates a voice is producing the buffer.
	StatePlaying
	// StateStopped indicates playback stopped or ended; the buffer is kept.
	StateStopped
	// StateError indicates the last load or play failed.
	StateError
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDecoding:
		return "decoding"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the engine.
type Status struct {
	State       StateType
	Playing     bool
	Looping     bool
	Position    float64       // Playback position as a fraction in [0, 1]
	Elapsed     time.Duration // Playback position as time
	Duration    time.Duration // Length of the loaded buffer
	BufferReady bool
	Err         error
}

// HasBuffer reports whether the state keeps a decoded buffer.
func (s StateType) HasBuffer() bool {
	return s == StateReady || s == StatePlaying || s == StateStopped
}

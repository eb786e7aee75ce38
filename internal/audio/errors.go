package audio

import "errors"

// Common errors for decoding and playback.
var (
	// Decode errors
	ErrDecode            = errors.New("audio decode failed")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmptyAudio        = errors.New("audio data is empty")

	// Context errors
	ErrContext       = errors.New("audio context failure")
	ErrContextClosed = errors.New("audio context is closed")

	// Engine errors
	ErrSuperseded = errors.New("load superseded by a newer load")
)

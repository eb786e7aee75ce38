package playback

import (
	"errors"
	"fmt"
	"time"
)

// Common errors for the playback layer.
var (
	// Fetch errors
	ErrFetch    = errors.New("sample fetch failed")
	ErrNotFound = errors.New("sample not found")
	ErrNetwork  = errors.New("network error")
	ErrTooLarge = errors.New("sample exceeds maximum file size")

	// Sequencing errors, never surfaced to callers
	ErrStale = errors.New("result belongs to a stale selection")
)

// Error carries the sample and step that failed.
type Error struct {
	Err       error     // The underlying error
	Component string    // Component that generated the error
	Action    string    // Action being performed when error occurred
	SampleID  string    // Sample being processed
	Timestamp time.Time // When the error occurred
}

// NewError wraps err with its origin.
func NewError(err error, component, action, sampleID string) *Error {
	return &Error{
		Err:       err,
		Component: component,
		Action:    action,
		SampleID:  sampleID,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s %s failed", e.Component, e.Action, e.SampleID)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Component, e.Action, e.SampleID, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

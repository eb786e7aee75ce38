package audio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// Signal is an environment event that may mean the output context needs
// attention.
type Signal int

const (
	// SignalFocus is sent when the application regains input focus.
	SignalFocus Signal = iota
	// SignalVisible is sent when the application becomes visible again.
	SignalVisible
	// SignalDeviceChange is sent when the output device changes.
	SignalDeviceChange
)

func (s Signal) String() string {
	switch s {
	case SignalFocus:
		return "focus"
	case SignalVisible:
		return "visible"
	case SignalDeviceChange:
		return "device-change"
	default:
		return "unknown"
	}
}

// Recoverer repairs output after an environment signal.
type Recoverer interface {
	Recover(ctx context.Context, signal Signal) error
}

// ContextManager owns the single process-wide output context. It creates the
// context lazily, recreates it after it closes and coalesces concurrent
// resumes into one platform call.
type ContextManager struct {
	backend Backend

	mu      sync.Mutex
	current Context
	created int

	resumes    singleflight.Group
	recovering atomic.Bool
}

// NewContextManager creates a manager over backend. No context is created
// until first use.
func NewContextManager(backend Backend) *ContextManager {
	return &ContextManager{backend: backend}
}

// Context returns the live context, creating a new one when none exists or
// the previous one was closed. The returned context is never closed.
func (m *ContextManager) Context() (Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked()
}

func (m *ContextManager) ensureLocked() (Context, error) {
	if m.current != nil && m.current.State() != ContextClosed {
		return m.current, nil
	}

	c, err := m.backend.NewContext()
	if err != nil {
		return nil, fmt.Errorf("%w: create context: %v", ErrContext, err)
	}
	m.current = c
	m.created++
	log.Debug("Audio context created", "state", c.State(), "created", m.created)
	return c, nil
}

// State reports the state of the current context without creating one.
func (m *ContextManager) State() ContextState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ContextUninitialized
	}
	return m.current.State()
}

// Created returns how many contexts have been created.
func (m *ContextManager) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// Resume brings a suspended context back to running. Concurrent callers share
// one platform resume and all observe its outcome. Resuming a running context
// or having no context is a no-op.
func (m *ContextManager) Resume(ctx context.Context) error {
	m.mu.Lock()
	c := m.current
	m.mu.Unlock()

	if c == nil {
		return nil
	}
	switch c.State() {
	case ContextRunning:
		return nil
	case ContextClosed:
		return ErrContextClosed
	}

	ch := m.resumes.DoChan("resume", func() (any, error) {
		log.Debug("Resuming audio context")
		if err := c.Resume(); err != nil {
			return nil, err
		}
		if state := c.State(); state != ContextRunning {
			return nil, fmt.Errorf("context %s after resume", state)
		}
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("%w: resume: %v", ErrContext, res.Err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Suspend pauses output on the current context. It does nothing when no
// context is live.
func (m *ContextManager) Suspend() error {
	m.mu.Lock()
	c := m.current
	m.mu.Unlock()

	if c == nil || c.State() != ContextRunning {
		return nil
	}
	log.Debug("Suspending audio context")
	return c.Suspend()
}

// Reset discards the current context and creates a fresh one.
func (m *ContextManager) Reset() (Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if err := m.current.Close(); err != nil {
			log.Debug("Audio context close failed", "error", err)
		}
		m.current = nil
	}
	log.Debug("Audio context reset")
	return m.ensureLocked()
}

// Recover makes sure a usable running context exists after signal. Only one
// recovery runs at a time; signals arriving during a recovery are dropped.
// When no context was ever created there is nothing to recover.
func (m *ContextManager) Recover(ctx context.Context, signal Signal) error {
	if !m.recovering.CompareAndSwap(false, true) {
		log.Debug("Recovery already in progress", "signal", signal)
		return nil
	}
	defer m.recovering.Store(false)

	if m.State() == ContextUninitialized {
		return nil
	}

	log.Debug("Recovering audio context", "signal", signal, "state", m.State())

	c, err := m.Context()
	if err != nil {
		return err
	}
	if c.State() != ContextSuspended {
		return nil
	}
	if err := m.Resume(ctx); err != nil {
		log.Warn("Audio resume failed, recreating context", "error", err)
		if _, err := m.Reset(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the current context.
func (m *ContextManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	err := m.current.Close()
	m.current = nil
	return err
}

//go:build !nocgo

package audio

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

const readyTimeout = 5 * time.Second

// OtoBackend plays through the system output device via oto. oto permits a
// single device per process, so every logical context shares it; closing a
// logical context releases its voices and leaves the device open.
type OtoBackend struct {
	sampleRate int
	bufferSize time.Duration

	once   sync.Once
	device *oto.Context
	err    error

	// oto reports no suspension state, so it is tracked here across every
	// logical context sharing the device.
	suspended atomic.Bool
}

// NewOtoBackend creates an oto backend. A bufferSize of 0 uses the platform
// default.
func NewOtoBackend(sampleRate, bufferSizeMS int) *OtoBackend {
	return &OtoBackend{
		sampleRate: sampleRate,
		bufferSize: time.Duration(bufferSizeMS) * time.Millisecond,
	}
}

// NewContext returns a running context over the shared device.
func (b *OtoBackend) NewContext() (Context, error) {
	b.once.Do(b.open)
	if b.err != nil {
		return nil, b.err
	}
	if err := b.device.Resume(); err != nil {
		return nil, fmt.Errorf("%w: resume device: %v", ErrContext, err)
	}
	b.suspended.Store(false)
	return &otoContext{device: b.device, sampleRate: b.sampleRate, suspended: &b.suspended}, nil
}

func (b *OtoBackend) open() {
	options := &oto.NewContextOptions{
		SampleRate:   b.sampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatFloat32LE,
		BufferSize:   b.bufferSize,
	}

	log.Debug("Opening audio device",
		"sample_rate", options.SampleRate,
		"channels", options.ChannelCount,
		"buffer_size", options.BufferSize)

	device, ready, err := oto.NewContext(options)
	if err != nil {
		b.err = fmt.Errorf("%w: open device: %v", ErrContext, err)
		return
	}

	select {
	case <-ready:
		b.device = device
	case <-time.After(readyTimeout):
		b.err = fmt.Errorf("%w: device not ready after %v", ErrContext, readyTimeout)
	}
}

type otoContext struct {
	device     *oto.Context
	sampleRate int
	suspended  *atomic.Bool

	closed atomic.Bool

	mu     sync.Mutex
	voices []*oto.Player
}

func (c *otoContext) NewVoice(r io.Reader) (Voice, error) {
	if c.closed.Load() {
		return nil, ErrContextClosed
	}
	p := c.device.NewPlayer(r)

	c.mu.Lock()
	c.voices = append(c.voices, p)
	c.mu.Unlock()
	return p, nil
}

func (c *otoContext) State() ContextState {
	if c.closed.Load() || c.device.Err() != nil {
		return ContextClosed
	}
	if c.suspended.Load() {
		return ContextSuspended
	}
	return ContextRunning
}

func (c *otoContext) Suspend() error {
	if c.closed.Load() {
		return ErrContextClosed
	}
	if err := c.device.Suspend(); err != nil {
		return fmt.Errorf("%w: suspend: %v", ErrContext, err)
	}
	c.suspended.Store(true)
	return nil
}

func (c *otoContext) Resume() error {
	if c.closed.Load() {
		return ErrContextClosed
	}
	if err := c.device.Resume(); err != nil {
		return fmt.Errorf("%w: resume: %v", ErrContext, err)
	}
	c.suspended.Store(false)
	return nil
}

func (c *otoContext) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	voices := c.voices
	c.voices = nil
	c.mu.Unlock()

	for _, p := range voices {
		p.Pause()
		_ = p.Close()
	}
	return nil
}

func (c *otoContext) SampleRate() int {
	return c.sampleRate
}

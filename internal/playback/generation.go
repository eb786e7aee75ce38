package playback

import "sync/atomic"

// Generation is a monotonic counter tagging selection requests. Work started
// under one generation is discarded once a newer generation exists.
type Generation struct {
	n atomic.Uint64
}

// Next starts a new generation and returns it.
func (g *Generation) Next() uint64 {
	return g.n.Add(1)
}

// Current returns the latest generation.
func (g *Generation) Current() uint64 {
	return g.n.Load()
}

// IsCurrent reports whether gen is still the latest generation.
func (g *Generation) IsCurrent(gen uint64) bool {
	return g.n.Load() == gen
}

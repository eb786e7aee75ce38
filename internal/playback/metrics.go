package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

const relativeAccuracy = 0.01

// Operations tracked by Metrics.
const (
	OpFetch  = "fetch"
	OpDecode = "decode"
)

// Metrics tracks fetch and decode latency quantiles with DDSketch.
type Metrics struct {
	mu          sync.Mutex
	sketches    map[string]*ddsketch.DDSketch
	cacheHits   int64
	cacheMisses int64
}

// LatencyStats summarises one operation.
type LatencyStats struct {
	Operation string
	Count     int64
	P50       time.Duration
	P90       time.Duration
	P99       time.Duration
	Max       time.Duration
}

// String formats the stats for logs and the status bar.
func (s LatencyStats) String() string {
	if s.Count == 0 {
		return fmt.Sprintf("%s: no data", s.Operation)
	}
	return fmt.Sprintf("%s (n=%d): p50=%v p90=%v p99=%v max=%v",
		s.Operation, s.Count, s.P50, s.P90, s.P99, s.Max)
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{sketches: make(map[string]*ddsketch.DDSketch)}
}

// Record records a duration for operation.
func (m *Metrics) Record(operation string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sketch, ok := m.sketches[operation]
	if !ok {
		var err error
		sketch, err = ddsketch.LogUnboundedDenseDDSketch(relativeAccuracy)
		if err != nil {
			sketch, _ = ddsketch.NewDefaultDDSketch(relativeAccuracy)
		}
		m.sketches[operation] = sketch
	}
	// Durations are stored in milliseconds
	_ = sketch.Add(float64(d.Microseconds()) / 1000.0)
}

// RecordCache counts a cache lookup.
func (m *Metrics) RecordCache(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
}

// CacheCounts returns cache hits and misses seen by the orchestrator.
func (m *Metrics) CacheCounts() (hits, misses int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheHits, m.cacheMisses
}

// Stats returns the summary for operation.
func (m *Metrics) Stats(operation string) LatencyStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := LatencyStats{Operation: operation}
	sketch, ok := m.sketches[operation]
	if !ok || sketch.GetCount() == 0 {
		return stats
	}

	ms := func(q float64) time.Duration {
		v, err := sketch.GetValueAtQuantile(q)
		if err != nil {
			return 0
		}
		return time.Duration(v * float64(time.Millisecond))
	}
	stats.Count = int64(sketch.GetCount())
	stats.P50 = ms(0.50)
	stats.P90 = ms(0.90)
	stats.P99 = ms(0.99)
	if v, err := sketch.GetMaxValue(); err == nil {
		stats.Max = time.Duration(v * float64(time.Millisecond))
	}
	return stats
}

package playback

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGeneration(t *testing.T) {
	var g Generation
	a := g.Next()
	if !g.IsCurrent(a) {
		t.Fatal("Fresh generation should be current")
	}
	b := g.Next()
	if g.IsCurrent(a) || !g.IsCurrent(b) || g.Current() != b {
		t.Errorf("Expected only %d current, got current=%d", b, g.Current())
	}
}

func TestGuard(t *testing.T) {
	var g Guard
	if g.State() != GuardIdle {
		t.Fatalf("Expected idle, got %s", g.State())
	}

	var entered atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryEnter() {
				entered.Add(1)
			}
		}()
	}
	wg.Wait()

	if entered.Load() != 1 || g.State() != GuardBusy {
		t.Errorf("Expected one entry and busy, got %d/%s", entered.Load(), g.State())
	}
	g.Leave()
	if !g.TryEnter() {
		t.Error("Guard should admit after Leave")
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	if s := m.Stats(OpFetch); s.Count != 0 || !strings.Contains(s.String(), "no data") {
		t.Errorf("Expected empty stats, got %s", s)
	}

	for i := 1; i <= 100; i++ {
		m.Record(OpFetch, time.Duration(i)*time.Millisecond)
	}
	s := m.Stats(OpFetch)
	if s.Count != 100 {
		t.Fatalf("Expected 100 samples, got %d", s.Count)
	}
	within := func(got, want time.Duration) bool {
		diff := got - want
		if diff < 0 {
			diff = -diff
		}
		return diff <= want/50
	}
	if !within(s.P50, 50*time.Millisecond) || !within(s.P99, 99*time.Millisecond) || !within(s.Max, 100*time.Millisecond) {
		t.Errorf("Quantiles off: %s", s)
	}
}

func TestError(t *testing.T) {
	err := NewError(ErrNotFound, "playback", "fetch", "kick")
	if !errors.Is(err, ErrNotFound) {
		t.Error("Error should unwrap to its cause")
	}
	if got := err.Error(); got != "playback: fetch kick: sample not found" {
		t.Errorf("Unexpected message %q", got)
	}
}

package playback

import "sync/atomic"

// GuardState is the state of a Guard.
type GuardState int32

const (
	// GuardIdle means no operation is in flight.
	GuardIdle GuardState = iota
	// GuardBusy means an operation is in flight.
	GuardBusy
)

func (s GuardState) String() string {
	switch s {
	case GuardIdle:
		return "idle"
	case GuardBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Guard admits one operation at a time and rejects requests arriving while
// one is in flight.
type Guard struct {
	state atomic.Int32
}

// TryEnter moves the guard from idle to busy. It returns false when an
// operation is already in flight.
func (g *Guard) TryEnter() bool {
	return g.state.CompareAndSwap(int32(GuardIdle), int32(GuardBusy))
}

// Leave moves the guard back to idle.
func (g *Guard) Leave() {
	g.state.Store(int32(GuardIdle))
}

// State returns the current state.
func (g *Guard) State() GuardState {
	return GuardState(g.state.Load())
}

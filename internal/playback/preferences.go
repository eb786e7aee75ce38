package playback

import (
	"sync"
)

// Prefs is a snapshot of the global playback preferences.
type Prefs struct {
	Loop     bool
	AutoPlay bool
}

// Preferences is the global preference store.
type Preferences interface {
	Loop() bool
	AutoPlay() bool
	SetLoop(v bool) error
	SetAutoPlay(v bool) error
	// Subscribe calls fn with the new snapshot after every change until the
	// returned cancel func is called.
	Subscribe(fn func(Prefs)) (cancel func())
}

// subscribers fans change notifications out to listeners.
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Prefs)
}

func (s *subscribers) add(fn func(Prefs)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Prefs))
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) notify(p Prefs) {
	s.mu.Lock()
	fns := make([]func(Prefs), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

// MemoryPreferences keeps preferences in memory.
type MemoryPreferences struct {
	mu    sync.Mutex
	prefs Prefs
	subs  subscribers
}

// NewMemoryPreferences creates a store holding initial.
func NewMemoryPreferences(initial Prefs) *MemoryPreferences {
	return &MemoryPreferences{prefs: initial}
}

func (m *MemoryPreferences) Loop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs.Loop
}

func (m *MemoryPreferences) AutoPlay() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs.AutoPlay
}

func (m *MemoryPreferences) SetLoop(v bool) error {
	m.update(func(p *Prefs) { p.Loop = v })
	return nil
}

func (m *MemoryPreferences) SetAutoPlay(v bool) error {
	m.update(func(p *Prefs) { p.AutoPlay = v })
	return nil
}

func (m *MemoryPreferences) Subscribe(fn func(Prefs)) func() {
	return m.subs.add(fn)
}

func (m *MemoryPreferences) update(fn func(*Prefs)) {
	m.mu.Lock()
	before := m.prefs
	fn(&m.prefs)
	after := m.prefs
	m.mu.Unlock()

	if after != before {
		m.subs.notify(after)
	}
}

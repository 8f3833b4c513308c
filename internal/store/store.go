// Package store keeps recently captured IR events in a bounded,
// time-queryable buffer.
package store

import (
	"sync"
	"time"

	"github.com/sweeney/ir-remote/internal/ir"
)

// DefaultMaxEvents is the default store capacity.
const DefaultMaxEvents = 100

// Store holds a bounded number of events. One mutex guards the events and the
// signal counter; eviction happens under it so readers never see a
// partial batch.
type Store struct {
	mu      sync.Mutex
	max     int
	events  []ir.Event
	counter uint64
	total   uint64
}

// New creates a store holding at most maxEvents events. A non-positive
// value uses DefaultMaxEvents.
func New(maxEvents int) *Store {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Store{max: maxEvents, events: make([]ir.Event, 0, maxEvents+1)}
}

// Add numbers the signal, appends the event and returns it as stored.
// When the store is over capacity the oldest tenth (at least one) is
// evicted in one batch.
func (s *Store) Add(signal ir.Signal, analysis ir.Analysis) ir.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	s.total++
	signal.Number = s.counter
	ev := ir.Event{Signal: signal, Analysis: analysis}
	s.events = append(s.events, ev)

	if len(s.events) > s.max {
		evict := max(s.max/10, 1)
		n := copy(s.events, s.events[evict:])
		clear(s.events[n:])
		s.events = s.events[:n]
	}
	return ev
}

// Recent returns the events captured at or after now-horizon, oldest first.
func (s *Store) Recent(now time.Time, horizon time.Duration) []ir.Event {
	cutoff := now.Add(-horizon)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ir.Event
	for _, ev := range s.events {
		if !ev.Signal.CapturedAt.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}

// FindSimilar returns the newest Generic event captured within window of
// now whose raw timing is similar to pulses.
func (s *Store) FindSimilar(now time.Time, window time.Duration, pulses []ir.Pulse) (ir.Event, bool) {
	cutoff := now.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if ev.Signal.CapturedAt.Before(cutoff) {
			break
		}
		if ev.Analysis.Kind == ir.KindGeneric && ir.Similar(pulses, ev.Analysis.Raw) {
			return ev, true
		}
	}
	return ir.Event{}, false
}

// Clear removes all events and resets the signal counter.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.events)
	s.events = s.events[:0]
	s.counter = 0
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Total returns the number of events added since the store was created.
// Clear does not reset it.
func (s *Store) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Counter returns the current signal counter.
func (s *Store) Counter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// Latest returns the most recent event, if any.
func (s *Store) Latest() (ir.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return ir.Event{}, false
	}
	return s.events[len(s.events)-1], true
}

// CountSince returns how many stored events were captured at or after t.
func (s *Store) CountSince(t time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Signal.CapturedAt.Before(t) {
			break
		}
		n++
	}
	return n
}

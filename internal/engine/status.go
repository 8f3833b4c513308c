package engine

import (
	"fmt"
	"time"
)

// Status is a point-in-time snapshot of the engine.
type Status struct {
	Listening          bool
	Transmitting       bool
	TotalEvents        uint64
	Stored             int
	Pin                int
	TxPin              int
	LastEventTime      time.Time
	EventsLastMinute   int
	EventsLast5Minutes int
	Dropped            uint64
	Glitches           uint64
	FeedDropped        uint64
	Message            string
}

// Status returns the current status. It never waits on a transmit.
func (e *Engine) Status() Status {
	e.mu.RLock()
	listening, transmitting := e.listening, e.transmitting
	e.mu.RUnlock()

	now := e.clock.Now()
	stats := e.framer.Stats()

	s := Status{
		Listening:          listening,
		Transmitting:       transmitting,
		TotalEvents:        e.store.Total(),
		Stored:             e.store.Len(),
		Pin:                e.receiver.Pin(),
		TxPin:              e.transmitter.Pin(),
		EventsLastMinute:   e.store.CountSince(now.Add(-time.Minute)),
		EventsLast5Minutes: e.store.CountSince(now.Add(-5 * time.Minute)),
		Dropped:            stats.Dropped,
		Glitches:           stats.Glitches,
		FeedDropped:        e.feedDropped.Load(),
	}
	if ev, ok := e.store.Latest(); ok {
		s.LastEventTime = ev.Signal.CapturedAt
	}

	if listening {
		s.Message = fmt.Sprintf("IR listener is active on GPIO%d. %d events in the last minute.", s.Pin, s.EventsLastMinute)
	} else {
		s.Message = "IR listener is not running."
	}
	return s
}

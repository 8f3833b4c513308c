package capture

import (
	"time"

	"github.com/sweeney/ir-remote/internal/clock"
	"github.com/sweeney/ir-remote/internal/ir"
)

// frameState is owned by the framing goroutine.
type frameState struct {
	maxPulses int

	accumulating bool
	capturedAt   time.Time
	pulses       []ir.Pulse
	prevLevel    ir.Level
	prevTicks    clock.Ticks

	timer *clock.Timer
	gen   uint64

	// last records how to reverse the most recent accepted edge.
	last struct {
		valid     bool
		start     bool
		prevLevel ir.Level
		prevTicks clock.Ticks
	}
}

func newFrameState(maxPulses int) *frameState {
	return &frameState{maxPulses: maxPulses, pulses: newBuffer(maxPulses)}
}

func newBuffer(maxPulses int) []ir.Pulse {
	return make([]ir.Pulse, 0, min(maxPulses, 128))
}

// begin starts a signal at the first edge of an idle period.
func (s *frameState) begin(level ir.Level, ticks clock.Ticks, now time.Time) {
	s.accumulating = true
	s.capturedAt = now
	s.prevLevel = level
	s.prevTicks = ticks
	s.last.valid = true
	s.last.start = true
}

// appendPulse closes the pulse that ended at ticks.
func (s *frameState) appendPulse(level ir.Level, ticks clock.Ticks, d uint32) {
	s.last.valid = true
	s.last.start = false
	s.last.prevLevel = s.prevLevel
	s.last.prevTicks = s.prevTicks

	s.pulses = append(s.pulses, ir.Pulse{Level: s.prevLevel, Duration: d})
	s.prevLevel = level
	s.prevTicks = ticks
}

// undo reverses the most recent accepted edge. If that edge started the
// signal the state is idle again. A second glitch in a row has nothing left
// to cancel and is ignored.
func (s *frameState) undo() {
	if !s.last.valid {
		return
	}
	s.last.valid = false

	if s.last.start {
		s.reset()
		return
	}
	s.pulses = s.pulses[:len(s.pulses)-1]
	s.prevLevel = s.last.prevLevel
	s.prevTicks = s.last.prevTicks
}

// take returns the signal in progress and leaves the state idle with a
// fresh buffer. It reports false when there are no pulses.
func (s *frameState) take() (ir.Signal, bool) {
	pulses := s.pulses
	capturedAt := s.capturedAt
	s.reset()
	if len(pulses) == 0 {
		return ir.Signal{}, false
	}
	s.pulses = newBuffer(s.maxPulses)
	return ir.Signal{CapturedAt: capturedAt, Pulses: pulses}, true
}

// reset drops the signal in progress and cancels the silence timer.
func (s *frameState) reset() {
	s.stopTimer()
	s.gen++
	s.accumulating = false
	s.capturedAt = time.Time{}
	s.pulses = s.pulses[:0]
	s.last.valid = false
}

func (s *frameState) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

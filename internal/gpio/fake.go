package gpio

import (
	"errors"
	"sync"
	"time"

	"github.com/sweeney/ir-remote/internal/clock"
	"github.com/sweeney/ir-remote/internal/ir"
)

// FakeReceiver is a test double that delivers scripted edges.
type FakeReceiver struct {
	mu      sync.Mutex
	pin     int
	handler EdgeHandler

	// StartError, if set, will be returned by Start()
	StartError error

	// Starts and Stops count successful calls
	Starts int
	Stops  int
}

// NewFakeReceiver creates a FakeReceiver for pin.
func NewFakeReceiver(pin int) *FakeReceiver {
	return &FakeReceiver{pin: pin}
}

// Pin returns the configured pin.
func (f *FakeReceiver) Pin() int { return f.pin }

// Start records the handler.
func (f *FakeReceiver) Start(h EdgeHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartError != nil {
		return f.StartError
	}
	f.handler = h
	f.Starts++
	return nil
}

// Stop forgets the handler.
func (f *FakeReceiver) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = nil
	f.Stops++
	return nil
}

// Started reports whether edges are currently delivered.
func (f *FakeReceiver) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

// Edge delivers one edge. It reports false if the receiver is stopped.
func (f *FakeReceiver) Edge(level ir.Level, ticks clock.Ticks) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(level, ticks)
	return true
}

// Replay delivers the edges that produce pulses, starting at tick start, and
// returns the tick of the final edge.
func (f *FakeReceiver) Replay(start clock.Ticks, pulses []ir.Pulse) clock.Ticks {
	if len(pulses) == 0 {
		return start
	}
	at := start
	f.Edge(pulses[0].Level, at)
	for _, p := range pulses {
		at = at.Add(p.Duration)
		f.Edge(!p.Level, at)
	}
	return at
}

// EmitterOp is one recorded emitter call.
type EmitterOp struct {
	Op       string // ACQUIRE, MARK, SPACE, OFF, RELEASE
	Duration time.Duration
}

// ErrFakeEmitter is the default injected emitter failure.
var ErrFakeEmitter = errors.New("fake emitter failure")

// FakeEmitter records emitter calls without sleeping.
type FakeEmitter struct {
	mu  sync.Mutex
	pin int

	// CarrierHz and Duty hold the last Acquire arguments
	CarrierHz int
	Duty      uint8

	// On tracks whether the carrier is currently on
	On bool

	// Acquired tracks whether the pin is held
	Acquired bool

	// Ops lists every call in order
	Ops []EmitterOp

	// AcquireError, if set, will be returned by Acquire()
	AcquireError error

	// FailAfterPulses, if positive, makes the Nth Mark/Space call fail
	FailAfterPulses int

	pulses int
}

// NewFakeEmitter creates a FakeEmitter for pin.
func NewFakeEmitter(pin int) *FakeEmitter {
	return &FakeEmitter{pin: pin}
}

// Pin returns the configured pin.
func (f *FakeEmitter) Pin() int { return f.pin }

// Acquire records the carrier configuration.
func (f *FakeEmitter) Acquire(carrierHz int, duty uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = append(f.Ops, EmitterOp{Op: "ACQUIRE"})
	if f.AcquireError != nil {
		return f.AcquireError
	}
	f.CarrierHz = carrierHz
	f.Duty = duty
	f.Acquired = true
	f.On = false
	return nil
}

// Mark records a carrier-on pulse.
func (f *FakeEmitter) Mark(d time.Duration) error {
	return f.pulse("MARK", true, d)
}

// Space records a carrier-off pulse.
func (f *FakeEmitter) Space(d time.Duration) error {
	return f.pulse("SPACE", false, d)
}

func (f *FakeEmitter) pulse(op string, on bool, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulses++
	if f.FailAfterPulses > 0 && f.pulses >= f.FailAfterPulses {
		// Fail with the carrier left on, as a real fault might.
		f.On = true
		return ErrFakeEmitter
	}
	f.On = on
	f.Ops = append(f.Ops, EmitterOp{Op: op, Duration: d})
	return nil
}

// Off records a carrier-off call.
func (f *FakeEmitter) Off() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = append(f.Ops, EmitterOp{Op: "OFF"})
	f.On = false
	return nil
}

// Release records the pin being returned.
func (f *FakeEmitter) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = append(f.Ops, EmitterOp{Op: "RELEASE"})
	f.On = false
	f.Acquired = false
	return nil
}

// CarrierOn reports whether the carrier is on.
func (f *FakeEmitter) CarrierOn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.On
}

// Pulses returns the recorded marks and spaces as pulses.
func (f *FakeEmitter) Pulses() []ir.Pulse {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ir.Pulse
	for _, op := range f.Ops {
		us := uint32(op.Duration / time.Microsecond)
		switch op.Op {
		case "MARK":
			out = append(out, ir.Mark(us))
		case "SPACE":
			out = append(out, ir.Space(us))
		}
	}
	return out
}

// Reset clears recorded calls and injected failures.
func (f *FakeEmitter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = nil
	f.pulses = 0
	f.FailAfterPulses = 0
	f.AcquireError = nil
	f.On = false
	f.Acquired = false
}

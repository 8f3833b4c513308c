// Package gpio provides the IR receiver and emitter with hardware abstraction.
// The real receiver uses the Linux GPIO character device; the real emitter
// drives PWM through the pigpio daemon. The fakes allow testing without
// hardware.
package gpio

import (
	"time"

	"github.com/sweeney/ir-remote/internal/clock"
	"github.com/sweeney/ir-remote/internal/ir"
)

// Pin definitions (BCM numbering)
const (
	PinRX = 27 // IR receiver output
	PinTX = 17 // IR LED driver
)

// DefaultChip is the GPIO character device used on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// EdgeHandler is called for every transition of the receiver output with the
// level after the edge and the edge time. It runs on the event goroutine of
// the GPIO backend and must not block.
type EdgeHandler func(level ir.Level, ticks clock.Ticks)

// Receiver delivers receiver edges while started.
type Receiver interface {
	// Start requests the pin and begins delivering edges to h.
	Start(h EdgeHandler) error

	// Stop releases the pin. No edges are delivered after it returns.
	Stop() error

	// Pin returns the BCM pin number.
	Pin() int
}

// Emitter switches a modulated carrier on the IR LED. Mark and Space block
// for the pulse duration.
type Emitter interface {
	// Acquire claims the output pin and configures the carrier with the
	// carrier off.
	Acquire(carrierHz int, duty uint8) error

	// Mark turns the carrier on for d.
	Mark(d time.Duration) error

	// Space turns the carrier off for d.
	Space(d time.Duration) error

	// Off turns the carrier off immediately.
	Off() error

	// Release turns the carrier off and returns the pin to input.
	Release() error

	// Pin returns the BCM pin number.
	Pin() int
}

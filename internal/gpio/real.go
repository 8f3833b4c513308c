//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/ir-remote/internal/clock"
	"github.com/sweeney/ir-remote/internal/ir"
)

// RealReceiver reads the IR receiver through the Linux GPIO character device.
// Kernel edge timestamps are converted to ticks, so durations do not depend
// on how quickly events are read.
type RealReceiver struct {
	chipName   string
	pin        int
	activeHigh bool

	mu   sync.Mutex
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealReceiver creates a receiver for pin on chip. Receivers are normally
// active-low (output pulled low while carrier is present); set activeHigh
// for the inverse.
func NewRealReceiver(chip string, pin int, activeHigh bool) *RealReceiver {
	return &RealReceiver{chipName: chip, pin: pin, activeHigh: activeHigh}
}

// Pin returns the BCM pin number.
func (r *RealReceiver) Pin() int { return r.pin }

// Start requests the pin as an input with pull-up and both-edge detection.
func (r *RealReceiver) Start(h EdgeHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.line != nil {
		return nil
	}

	chip, err := gpiocdev.NewChip(r.chipName, gpiocdev.WithConsumer("ir-remote"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("open gpio chip %s: %w: %w", r.chipName, ir.ErrHardwareUnavailable, err)
		}
		return fmt.Errorf("open gpio chip %s: %w", r.chipName, err)
	}

	activeHigh := r.activeHigh
	handler := func(evt gpiocdev.LineEvent) {
		rising := evt.Type == gpiocdev.LineEventRisingEdge
		// Active-low: a falling edge means carrier present.
		level := ir.Level(rising)
		if activeHigh {
			level = !level
		}
		h(level, clock.TicksOf(evt.Timestamp))
	}

	line, err := chip.RequestLine(r.pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(handler))
	if err != nil {
		chip.Close()
		return fmt.Errorf("request RX pin %d: %w", r.pin, err)
	}

	r.chip = chip
	r.line = line
	return nil
}

// Stop releases the line and the chip.
func (r *RealReceiver) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.line != nil {
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close RX pin: %w", err))
		}
		r.line = nil
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

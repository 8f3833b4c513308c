//go:build !linux

package gpio

import (
	"fmt"

	"github.com/sweeney/ir-remote/internal/ir"
)

// RealReceiver is not available on non-Linux platforms.
type RealReceiver struct {
	pin int
}

// NewRealReceiver returns a receiver whose Start always fails on non-Linux
// platforms.
func NewRealReceiver(chip string, pin int, activeHigh bool) *RealReceiver {
	return &RealReceiver{pin: pin}
}

// Pin returns the BCM pin number.
func (r *RealReceiver) Pin() int { return r.pin }

// Start is not implemented on non-Linux platforms.
func (r *RealReceiver) Start(h EdgeHandler) error {
	return fmt.Errorf("gpio: requires Linux: %w", ir.ErrHardwareUnavailable)
}

// Stop is not implemented on non-Linux platforms.
func (r *RealReceiver) Stop() error {
	return nil
}

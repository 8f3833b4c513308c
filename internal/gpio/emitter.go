package gpio

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/ir-remote/internal/clock"
	"github.com/sweeney/ir-remote/internal/pigpio"
)

// PigpioEmitter drives the IR LED with hardware-timed PWM from the pigpio
// daemon. The daemon connection is opened by Acquire and closed by Release.
type PigpioEmitter struct {
	addr        string
	pin         int
	clock       clock.Clock
	dialTimeout time.Duration

	client *pigpio.Client
	duty   uint8
	on     bool
}

// NewPigpioEmitter creates an emitter for pin using the daemon at addr.
func NewPigpioEmitter(addr string, pin int, clk clock.Clock) *PigpioEmitter {
	if addr == "" {
		addr = pigpio.DefaultAddr
	}
	return &PigpioEmitter{addr: addr, pin: pin, clock: clk, dialTimeout: 2 * time.Second}
}

// Pin returns the BCM pin number.
func (e *PigpioEmitter) Pin() int { return e.pin }

// Acquire connects to the daemon, sets the pin to output and configures the
// PWM frequency with the carrier off.
func (e *PigpioEmitter) Acquire(carrierHz int, duty uint8) error {
	if e.client == nil {
		ctx, cancel := context.WithTimeout(context.Background(), e.dialTimeout)
		defer cancel()
		client, err := pigpio.Dial(ctx, e.addr, e.dialTimeout)
		if err != nil {
			return err
		}
		e.client = client
	}

	if err := e.client.SetMode(e.pin, pigpio.Output); err != nil {
		return fmt.Errorf("set TX pin %d to output: %w", e.pin, err)
	}
	if _, err := e.client.SetPWMFrequency(e.pin, carrierHz); err != nil {
		return fmt.Errorf("set carrier to %d Hz: %w", carrierHz, err)
	}
	e.duty = duty
	e.on = true // force the first Off to reach the daemon
	return e.Off()
}

// Mark turns the carrier on and holds it for d.
func (e *PigpioEmitter) Mark(d time.Duration) error {
	if !e.on {
		if err := e.client.SetPWMDutycycle(e.pin, e.duty); err != nil {
			return fmt.Errorf("carrier on: %w", err)
		}
		e.on = true
	}
	e.clock.Sleep(d)
	return nil
}

// Space turns the carrier off and holds it off for d.
func (e *PigpioEmitter) Space(d time.Duration) error {
	if err := e.Off(); err != nil {
		return err
	}
	e.clock.Sleep(d)
	return nil
}

// Off turns the carrier off.
func (e *PigpioEmitter) Off() error {
	if e.client == nil || !e.on {
		return nil
	}
	if err := e.client.SetPWMDutycycle(e.pin, 0); err != nil {
		return fmt.Errorf("carrier off: %w", err)
	}
	e.on = false
	return nil
}

// Release turns the carrier off, drives the pin low, returns it to input
// and closes the daemon connection.
func (e *PigpioEmitter) Release() error {
	if e.client == nil {
		return nil
	}

	var errs []error
	e.on = true
	if err := e.Off(); err != nil {
		errs = append(errs, err)
	}
	if err := e.client.Write(e.pin, false); err != nil {
		errs = append(errs, fmt.Errorf("drive TX pin %d low: %w", e.pin, err))
	}
	if err := e.client.SetMode(e.pin, pigpio.Input); err != nil {
		errs = append(errs, fmt.Errorf("set TX pin %d to input: %w", e.pin, err))
	}
	if err := e.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pigpiod connection: %w", err))
	}
	e.client = nil

	if len(errs) > 0 {
		return fmt.Errorf("release errors: %v", errs)
	}
	return nil
}

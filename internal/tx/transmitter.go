package tx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/ir-remote/internal/gpio"
	"github.com/sweeney/ir-remote/internal/ir"
)

// Transmitter sends plans through an emitter. It is not safe for concurrent
// use; the caller serialises transmissions.
type Transmitter struct {
	emitter gpio.Emitter
	logger  *slog.Logger
}

// NewTransmitter creates a Transmitter for emitter.
func NewTransmitter(emitter gpio.Emitter, logger *slog.Logger) *Transmitter {
	return &Transmitter{emitter: emitter, logger: logger}
}

// Pin returns the emitter pin.
func (t *Transmitter) Pin() int { return t.emitter.Pin() }

// Send transmits every frame of p with the planned gap between them. The
// carrier is always off when Send returns. Cancellation is checked only
// between frames; a frame in progress always completes.
func (t *Transmitter) Send(ctx context.Context, p Plan) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := t.emitter.Acquire(p.CarrierHz, p.Duty); err != nil {
		t.release()
		return fmt.Errorf("acquire emitter: %w", err)
	}
	defer t.release()

	for i := 0; i < p.Repeats; i++ {
		if i > 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("stopped after %d of %d frames: %w", i, p.Repeats, err)
			}
			if err := t.emitter.Space(p.Gap); err != nil {
				return t.fault(i, err)
			}
		}
		if err := t.sendFrame(p.Frame); err != nil {
			return t.fault(i, err)
		}
	}

	t.logger.Debug("transmitted", "protocol", p.Protocol, "frames", p.Repeats, "pulses", len(p.Frame))
	return nil
}

func (t *Transmitter) sendFrame(frame []ir.Pulse) error {
	for _, pulse := range frame {
		d := time.Duration(pulse.Duration) * time.Microsecond
		var err error
		if pulse.Level.Mark() {
			err = t.emitter.Mark(d)
		} else {
			err = t.emitter.Space(d)
		}
		if err != nil {
			return err
		}
	}
	return t.emitter.Off()
}

func (t *Transmitter) fault(frame int, err error) error {
	if offErr := t.emitter.Off(); offErr != nil {
		t.logger.Error("failed to force carrier off", "err", offErr)
	}
	return fmt.Errorf("frame %d: %w: %w", frame+1, ir.ErrTxHardwareFault, err)
}

func (t *Transmitter) release() {
	if err := t.emitter.Off(); err != nil {
		t.logger.Error("failed to force carrier off", "err", err)
	}
	if err := t.emitter.Release(); err != nil {
		t.logger.Warn("failed to release emitter", "err", err)
	}
}

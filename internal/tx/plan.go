// Package tx turns a transmit request into a validated pulse plan and sends
// it through an emitter.
package tx

import (
	"fmt"
	"slices"
	"time"

	"github.com/sweeney/ir-remote/internal/ir"
)

// Transmit limits and defaults. Full duty saturates several receivers, so
// the default is about 78%; PowerBoost selects full duty.
const (
	MinCarrierHz     = 30000
	MaxCarrierHz     = 60000
	DefaultCarrierHz = 38000
	DefaultDuty      = 200
	BoostDuty        = 255
	DefaultRepeats   = 3
	MaxRepeats       = 5
	DefaultGap       = 120 * time.Millisecond
)

// Request is a transmit request from a caller. Zero values select defaults.
type Request struct {
	Protocol   string
	Code       string
	Raw        []ir.Pulse
	CarrierHz  int
	Duty       int
	PowerBoost bool
	Repeats    int
	Gap        time.Duration
}

// Defaults fill unset request fields.
type Defaults struct {
	CarrierHz int
	Duty      int
	Repeats   int
	Gap       time.Duration
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Defaults {
	return Defaults{
		CarrierHz: DefaultCarrierHz,
		Duty:      DefaultDuty,
		Repeats:   DefaultRepeats,
		Gap:       DefaultGap,
	}
}

// Plan is a validated transmission.
type Plan struct {
	Protocol  string
	Code      string
	Frame     []ir.Pulse
	FromRaw   bool
	CarrierHz int
	Duty      uint8
	Repeats   int
	Gap       time.Duration
}

// NewPlan validates req and encodes its frame. Raw timing, when present, is
// replayed as-is whatever the protocol. Errors wrap ir.ErrUnsupportedProtocol
// or ir.ErrInvalidCode.
func NewPlan(req Request, d Defaults) (Plan, error) {
	p := Plan{
		Protocol:  ir.NormalizeProtocol(req.Protocol),
		Code:      req.Code,
		CarrierHz: req.CarrierHz,
		Repeats:   req.Repeats,
		Gap:       req.Gap,
	}

	if len(req.Raw) > 0 {
		if err := ir.ValidateRaw(req.Raw); err != nil {
			return Plan{}, err
		}
		p.Frame = slices.Clone(req.Raw)
		p.FromRaw = true
	} else {
		frame, err := ir.Encode(req.Protocol, req.Code)
		if err != nil {
			return Plan{}, err
		}
		p.Frame = frame
	}

	if p.CarrierHz == 0 {
		p.CarrierHz = d.CarrierHz
	}
	if p.CarrierHz < MinCarrierHz || p.CarrierHz > MaxCarrierHz {
		return Plan{}, fmt.Errorf("carrier %d Hz outside %d-%d Hz: %w",
			p.CarrierHz, MinCarrierHz, MaxCarrierHz, ir.ErrInvalidCode)
	}

	duty := req.Duty
	if duty == 0 {
		duty = d.Duty
	}
	if req.PowerBoost {
		duty = BoostDuty
	}
	if duty < 1 || duty > 255 {
		return Plan{}, fmt.Errorf("duty %d outside 1-255: %w", duty, ir.ErrInvalidCode)
	}
	p.Duty = uint8(duty)

	if p.Repeats == 0 {
		p.Repeats = d.Repeats
	}
	if p.Protocol == ir.ProtocolTest {
		p.Repeats = 1
	}
	if p.Repeats < 1 || p.Repeats > MaxRepeats {
		return Plan{}, fmt.Errorf("repeats %d outside 1-%d: %w", p.Repeats, MaxRepeats, ir.ErrInvalidCode)
	}

	if p.Gap == 0 {
		p.Gap = d.Gap
	}
	if p.Gap < 0 || p.Gap > time.Second {
		return Plan{}, fmt.Errorf("gap %v outside 0-1s: %w", p.Gap, ir.ErrInvalidCode)
	}

	return p, nil
}

// Duration returns how long the plan keeps the emitter busy.
func (p Plan) Duration() time.Duration {
	frame := time.Duration(ir.TotalDuration(p.Frame)) * time.Microsecond
	return time.Duration(p.Repeats)*frame + time.Duration(p.Repeats-1)*p.Gap
}

// Describe returns the human-readable confirmation for a sent plan.
func (p Plan) Describe() string {
	what := fmt.Sprintf("%s %s", p.Protocol, p.Code)
	switch {
	case p.Protocol == ir.ProtocolTest:
		what = "test burst"
	case p.FromRaw:
		what = fmt.Sprintf("%s raw timing (%d pulses)", p.Protocol, len(p.Frame))
	}
	return fmt.Sprintf("Sent %s: %d frame(s) at %.1f kHz, duty %d/255",
		what, p.Repeats, float64(p.CarrierHz)/1000, p.Duty)
}

package tx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/neilotoole/slogt"

	"github.com/sweeney/ir-remote/internal/gpio"
	"github.com/sweeney/ir-remote/internal/ir"
)

func TestNewPlanDefaults(t *testing.T) {
	p, err := NewPlan(Request{Protocol: "nec", Code: "0x00FF"}, DefaultSettings())
	assert.NoError(t, err)

	assert.Equal(t, ir.ProtocolNEC, p.Protocol)
	assert.Equal(t, 38000, p.CarrierHz)
	assert.Equal(t, uint8(200), p.Duty)
	assert.Equal(t, 3, p.Repeats)
	assert.Equal(t, 120*time.Millisecond, p.Gap)
	assert.Equal(t, 67, len(p.Frame))
	assert.False(t, p.FromRaw)
}

func TestNewPlanOverrides(t *testing.T) {
	p, err := NewPlan(Request{
		Protocol:   "NEC",
		Code:       "0x00FF",
		CarrierHz:  40000,
		PowerBoost: true,
		Repeats:    5,
	}, DefaultSettings())
	assert.NoError(t, err)
	assert.Equal(t, 40000, p.CarrierHz)
	assert.Equal(t, uint8(255), p.Duty)
	assert.Equal(t, 5, p.Repeats)
}

func TestNewPlanRawWins(t *testing.T) {
	raw := []ir.Pulse{ir.Mark(3000), ir.Space(1000), ir.Mark(500)}
	p, err := NewPlan(Request{Protocol: "unknown_protocol", Code: "whatever", Raw: raw}, DefaultSettings())
	assert.NoError(t, err)
	assert.True(t, p.FromRaw)
	assert.Equal(t, raw, p.Frame)
}

func TestNewPlanTestBurst(t *testing.T) {
	p, err := NewPlan(Request{Protocol: "TEST", Repeats: 4}, DefaultSettings())
	assert.NoError(t, err)
	assert.Equal(t, 1, p.Repeats)
	assert.Equal(t, []ir.Pulse{ir.Mark(ir.TestBurstMicros)}, p.Frame)
	assert.Equal(t, "Sent test burst: 1 frame(s) at 38.0 kHz, duty 200/255", p.Describe())
}

func TestNewPlanErrors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown protocol", Request{Protocol: "unknown_protocol", Code: "0xFF"}, ir.ErrUnsupportedProtocol},
		{"generic without raw", Request{Protocol: "GENERIC", Code: "abcd"}, ir.ErrInvalidCode},
		{"bad code", Request{Protocol: "NEC", Code: "0xZZ"}, ir.ErrInvalidCode},
		{"zero pulse", Request{Protocol: "GENERIC", Raw: []ir.Pulse{ir.Mark(0)}}, ir.ErrInvalidCode},
		{"carrier low", Request{Protocol: "NEC", Code: "0xFF", CarrierHz: 20000}, ir.ErrInvalidCode},
		{"carrier high", Request{Protocol: "NEC", Code: "0xFF", CarrierHz: 70000}, ir.ErrInvalidCode},
		{"duty", Request{Protocol: "NEC", Code: "0xFF", Duty: 300}, ir.ErrInvalidCode},
		{"repeats", Request{Protocol: "NEC", Code: "0xFF", Repeats: 6}, ir.ErrInvalidCode},
	}

	for _, tt := range tests {
		_, err := NewPlan(tt.req, DefaultSettings())
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestSendFrames(t *testing.T) {
	em := gpio.NewFakeEmitter(gpio.PinTX)
	tr := NewTransmitter(em, slogt.New(t))

	p, err := NewPlan(Request{Protocol: "NEC", Code: ir.CodeRepeat, Repeats: 2}, DefaultSettings())
	assert.NoError(t, err)
	assert.NoError(t, tr.Send(context.Background(), p))

	assert.Equal(t, []gpio.EmitterOp{
		{Op: "ACQUIRE"},
		{Op: "MARK", Duration: 9000 * time.Microsecond},
		{Op: "SPACE", Duration: 2250 * time.Microsecond},
		{Op: "MARK", Duration: 560 * time.Microsecond},
		{Op: "OFF"},
		{Op: "SPACE", Duration: 120 * time.Millisecond},
		{Op: "MARK", Duration: 9000 * time.Microsecond},
		{Op: "SPACE", Duration: 2250 * time.Microsecond},
		{Op: "MARK", Duration: 560 * time.Microsecond},
		{Op: "OFF"},
		{Op: "OFF"},
		{Op: "RELEASE"},
	}, em.Ops)
	assert.False(t, em.CarrierOn())
	assert.Equal(t, 38000, em.CarrierHz)
}

func TestSendRoundTripsThroughDecoder(t *testing.T) {
	em := gpio.NewFakeEmitter(gpio.PinTX)
	tr := NewTransmitter(em, slogt.New(t))

	p, err := NewPlan(Request{Protocol: "NEC", Code: "0x00FF", Repeats: 1}, DefaultSettings())
	assert.NoError(t, err)
	assert.NoError(t, tr.Send(context.Background(), p))

	got := ir.Decode(em.Pulses())
	assert.Equal(t, ir.KindNEC, got.Kind)
	assert.Equal(t, uint8(0xFF), got.Command)
	assert.True(t, got.Verified)
}

func TestSendFaultForcesCarrierOff(t *testing.T) {
	em := gpio.NewFakeEmitter(gpio.PinTX)
	em.FailAfterPulses = 10
	tr := NewTransmitter(em, slogt.New(t))

	p, err := NewPlan(Request{Protocol: "NEC", Code: "0x00FF"}, DefaultSettings())
	assert.NoError(t, err)

	err = tr.Send(context.Background(), p)
	if !errors.Is(err, ir.ErrTxHardwareFault) {
		t.Fatalf("got %v, want ErrTxHardwareFault", err)
	}
	assert.True(t, errors.Is(err, gpio.ErrFakeEmitter))
	assert.False(t, em.CarrierOn(), "carrier must be off after a fault")
	assert.False(t, em.Acquired)
}

func TestSendAcquireFailure(t *testing.T) {
	em := gpio.NewFakeEmitter(gpio.PinTX)
	em.AcquireError = ir.ErrDaemonUnreachable
	tr := NewTransmitter(em, slogt.New(t))

	p, err := NewPlan(Request{Protocol: "TEST"}, DefaultSettings())
	assert.NoError(t, err)

	err = tr.Send(context.Background(), p)
	if !errors.Is(err, ir.ErrDaemonUnreachable) {
		t.Errorf("got %v, want ErrDaemonUnreachable", err)
	}
	assert.False(t, em.CarrierOn())
}

func TestSendCancelledBetweenFrames(t *testing.T) {
	em := gpio.NewFakeEmitter(gpio.PinTX)
	tr := NewTransmitter(em, slogt.New(t))

	p, err := NewPlan(Request{Protocol: "NEC", Code: ir.CodeRepeat}, DefaultSettings())
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = tr.Send(ctx, p)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, len(em.Ops), "nothing sent when cancelled up front")
}

func TestSweep(t *testing.T) {
	settings := Sweep()
	assert.Equal(t, 6, len(settings))
	assert.Equal(t, Setting{CarrierHz: 38000}, settings[0])
	assert.Equal(t, Setting{CarrierHz: 40000, PowerBoost: true}, settings[5])
	assert.Equal(t, "High Power: 100% duty cycle, 36kHz", settings[3].String())

	req := settings[1].Apply(Request{Protocol: "NEC", Code: "0xFF"})
	assert.True(t, req.PowerBoost)
	assert.Equal(t, 38000, req.CarrierHz)
}

func TestPlanDuration(t *testing.T) {
	p := Plan{Frame: []ir.Pulse{ir.Mark(1000), ir.Space(1000)}, Repeats: 3, Gap: 10 * time.Millisecond}
	assert.Equal(t, 26*time.Millisecond, p.Duration())
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/neilotoole/slogt"

	"github.com/sweeney/ir-remote/internal/capture"
	"github.com/sweeney/ir-remote/internal/clock"
	"github.com/sweeney/ir-remote/internal/gpio"
	"github.com/sweeney/ir-remote/internal/ir"
	"github.com/sweeney/ir-remote/internal/tx"
)

var epoch = time.Date(2026, 7, 1, 18, 30, 0, 0, time.UTC)

type harness struct {
	engine   *Engine
	clock    *clock.FakeClock
	receiver *gpio.FakeReceiver
	emitter  *gpio.FakeEmitter
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		clock:    clock.Fake(epoch),
		receiver: gpio.NewFakeReceiver(gpio.PinRX),
		emitter:  gpio.NewFakeEmitter(gpio.PinTX),
	}
	h.engine = New(cfg, h.clock, h.receiver, h.emitter, slogt.New(t))
	t.Cleanup(func() { h.engine.Close() })
	return h
}

// press replays pulses and lets the silence timer seal them.
func (h *harness) press(t *testing.T, start clock.Ticks, pulses []ir.Pulse) clock.Ticks {
	t.Helper()
	end := h.receiver.Replay(start, pulses)
	ctx := context.Background()
	assert.NoError(t, h.engine.Sync(ctx))
	h.clock.Advance(capture.DefaultSilence)
	assert.NoError(t, h.engine.Sync(ctx))
	return end
}

func encode(t *testing.T, protocol, code string) []ir.Pulse {
	t.Helper()
	pulses, err := ir.Encode(protocol, code)
	assert.NoError(t, err)
	return pulses
}

func TestCaptureNECScenario(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	assert.NoError(t, h.engine.StartCapture(ctx))
	h.press(t, 0, encode(t, ir.ProtocolNEC, "0x00FF"))

	events := h.engine.RecentEvents(60 * time.Second)
	assert.Equal(t, 1, len(events))
	a := events[0].Analysis
	assert.Equal(t, ir.KindNEC, a.Kind)
	assert.Equal(t, uint8(0), a.Address)
	assert.Equal(t, uint8(255), a.Command)
	assert.True(t, a.Verified)
	assert.Equal(t, uint64(1), events[0].Signal.Number)

	select {
	case ev := <-h.engine.Events():
		assert.Equal(t, uint64(1), ev.Signal.Number)
	default:
		t.Error("expected event on the live feed")
	}
}

func TestRepeatAfterFullFrame(t *testing.T) {
	h := newHarness(t, Config{})
	assert.NoError(t, h.engine.StartCapture(context.Background()))

	end := h.press(t, 0, encode(t, ir.ProtocolNEC, "0x00FF"))
	h.press(t, end.Add(40_000), encode(t, ir.ProtocolNEC, ir.CodeRepeat))

	events := h.engine.RecentEvents(time.Minute)
	assert.Equal(t, 2, len(events))
	assert.Equal(t, ir.CodeRepeat, events[1].Analysis.Code)
	assert.True(t, events[1].Analysis.Verified)
}

func TestStartStopIdempotent(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	assert.NoError(t, h.engine.StartCapture(ctx))
	assert.NoError(t, h.engine.StartCapture(ctx))
	assert.Equal(t, 1, h.receiver.Starts)
	assert.True(t, h.engine.Status().Listening)

	assert.NoError(t, h.engine.StopCapture(ctx))
	assert.NoError(t, h.engine.StopCapture(ctx))
	assert.Equal(t, 1, h.receiver.Stops)
	assert.False(t, h.engine.Status().Listening)
}

func TestStopCaptureFlushesPendingSignal(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	assert.NoError(t, h.engine.StartCapture(ctx))
	h.receiver.Replay(0, encode(t, ir.ProtocolNEC, "0x04FB"))
	assert.NoError(t, h.engine.StopCapture(ctx))

	events := h.engine.RecentEvents(time.Minute)
	assert.Equal(t, 1, len(events))
	assert.Equal(t, uint8(0xFB), events[0].Analysis.Command)
}

func TestStartCaptureHardwareUnavailable(t *testing.T) {
	h := newHarness(t, Config{})
	h.receiver.StartError = ir.ErrHardwareUnavailable

	err := h.engine.StartCapture(context.Background())
	if !errors.Is(err, ir.ErrHardwareUnavailable) {
		t.Errorf("got %v, want ErrHardwareUnavailable", err)
	}
	assert.False(t, h.engine.Status().Listening)
}

func TestClearEventsResetsCounter(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	assert.NoError(t, h.engine.StartCapture(ctx))

	end := h.press(t, 0, encode(t, ir.ProtocolNEC, "0x00FF"))
	end = h.press(t, end.Add(300_000), encode(t, ir.ProtocolNEC, "0x00FE"))
	// Leave a signal in progress; Clear must drop it.
	h.receiver.Replay(end.Add(300_000), encode(t, ir.ProtocolNEC, "0x00FD"))

	assert.NoError(t, h.engine.ClearEvents(ctx))
	h.clock.Advance(time.Second)
	assert.NoError(t, h.engine.Sync(ctx))
	assert.Equal(t, 0, len(h.engine.RecentEvents(time.Hour)))

	h.press(t, end.Add(2_000_000), encode(t, ir.ProtocolNEC, "0x00FC"))
	events := h.engine.RecentEvents(time.Hour)
	assert.Equal(t, 1, len(events))
	assert.Equal(t, uint64(1), events[0].Signal.Number)
	assert.Equal(t, uint64(3), h.engine.Status().TotalEvents)
}

func TestTransmitUnknownProtocol(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.engine.Transmit(context.Background(), tx.Request{Protocol: "unknown_protocol", Code: "0xFF"})
	if !errors.Is(err, ir.ErrUnsupportedProtocol) {
		t.Fatalf("got %v, want ErrUnsupportedProtocol", err)
	}
	assert.False(t, h.emitter.CarrierOn())
	assert.Equal(t, 0, len(h.emitter.Ops), "hardware untouched")
}

func TestTransmitSuspendsCapture(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	assert.NoError(t, h.engine.StartCapture(ctx))

	// A signal in progress is flushed before the receiver is released.
	h.receiver.Replay(0, encode(t, ir.ProtocolNEC, "0x00FF"))

	msg, err := h.engine.Transmit(ctx, tx.Request{Protocol: "NEC", Code: "0x20DF"})
	assert.NoError(t, err)
	assert.Equal(t, "Sent NEC 0x20DF: 3 frame(s) at 38.0 kHz, duty 200/255", msg)

	assert.Equal(t, 1, h.receiver.Stops)
	assert.Equal(t, 2, h.receiver.Starts)
	assert.True(t, h.receiver.Started())
	assert.True(t, h.engine.Status().Listening)
	assert.Equal(t, 1, len(h.engine.RecentEvents(time.Minute)))
	assert.False(t, h.emitter.CarrierOn())
}

func TestTransmitWithoutCaptureLeavesReceiverAlone(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.engine.Transmit(context.Background(), tx.Request{Protocol: "SONY", Code: "0x095"})
	assert.NoError(t, err)
	assert.Equal(t, 0, h.receiver.Starts)
	assert.False(t, h.engine.Status().Listening)
}

func TestTransmitHardwareFault(t *testing.T) {
	h := newHarness(t, Config{})
	h.emitter.FailAfterPulses = 5

	_, err := h.engine.Transmit(context.Background(), tx.Request{Protocol: "NEC", Code: "0x00FF"})
	if !errors.Is(err, ir.ErrTxHardwareFault) {
		t.Errorf("got %v, want ErrTxHardwareFault", err)
	}
	assert.False(t, h.emitter.CarrierOn())
}

func TestTransmitRawTiming(t *testing.T) {
	h := newHarness(t, Config{})
	raw := []ir.Pulse{ir.Mark(3500), ir.Space(1750), ir.Mark(430)}

	_, err := h.engine.Transmit(context.Background(), tx.Request{Protocol: "GENERIC", Code: "abc", Raw: raw, Repeats: 1})
	assert.NoError(t, err)
	assert.Equal(t, raw, h.emitter.Pulses())
}

func TestTroubleshootSweep(t *testing.T) {
	h := newHarness(t, Config{})

	results, err := h.engine.Troubleshoot(context.Background(), tx.Request{Protocol: "NEC", Code: "0x00FF", Repeats: 1})
	assert.NoError(t, err)
	assert.Equal(t, 6, len(results))
	for _, r := range results {
		assert.True(t, r.Success, r.Message)
	}
	assert.Equal(t, 40000, h.emitter.CarrierHz)
	assert.Equal(t, uint8(255), h.emitter.Duty)
}

func TestTroubleshootRejectsBadRequest(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.engine.Troubleshoot(context.Background(), tx.Request{Protocol: "RC6", Code: "0x1"})
	assert.True(t, errors.Is(err, ir.ErrUnsupportedProtocol))
}

func TestMatchGeneric(t *testing.T) {
	frame := func(scale uint32) []ir.Pulse {
		var p []ir.Pulse
		p = append(p, ir.Mark(3500*scale/100), ir.Space(1750*scale/100))
		for i := 0; i < 16; i++ {
			p = append(p, ir.Mark(430*scale/100), ir.Space(1300*scale/100))
		}
		return append(p, ir.Mark(430*scale/100))
	}

	for _, match := range []bool{false, true} {
		h := newHarness(t, Config{MatchGeneric: match})
		assert.NoError(t, h.engine.StartCapture(context.Background()))

		end := h.press(t, 0, frame(100))
		h.press(t, end.Add(1000), frame(115))

		events := h.engine.RecentEvents(time.Minute)
		assert.Equal(t, 2, len(events))
		same := events[0].Analysis.Fingerprint == events[1].Analysis.Fingerprint
		if same != match {
			t.Errorf("MatchGeneric=%v: fingerprints equal=%v", match, same)
		}
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	assert.NoError(t, h.engine.StartCapture(ctx))
	h.press(t, 0, encode(t, ir.ProtocolNEC, "0x00FF"))

	h.clock.Advance(2 * time.Minute)
	st := h.engine.Status()
	assert.Equal(t, gpio.PinRX, st.Pin)
	assert.Equal(t, gpio.PinTX, st.TxPin)
	assert.Equal(t, uint64(1), st.TotalEvents)
	assert.Equal(t, 0, st.EventsLastMinute)
	assert.Equal(t, 1, st.EventsLast5Minutes)
	assert.Equal(t, epoch, st.LastEventTime)
	assert.Equal(t, "IR listener is active on GPIO27. 0 events in the last minute.", st.Message)
}

func TestCloseClosesFeed(t *testing.T) {
	h := newHarness(t, Config{})
	assert.NoError(t, h.engine.StartCapture(context.Background()))
	assert.NoError(t, h.engine.Close())
	assert.NoError(t, h.engine.Close())

	_, ok := <-h.engine.Events()
	assert.False(t, ok)
	assert.False(t, h.receiver.Started())
}

package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/ir-remote/internal/ir"
)

var captured = time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC)

func necEvent() ir.Event {
	return ir.Event{
		Signal: ir.Signal{Number: 7, CapturedAt: captured, Pulses: make([]ir.Pulse, 67)},
		Analysis: ir.Analysis{
			Kind:     ir.KindNEC,
			Protocol: ir.ProtocolNEC,
			Code:     "0x00FFFF00",
			Address:  0,
			Command:  255,
			Verified: true,
		},
	}
}

func TestFormatPayload(t *testing.T) {
	payload, err := FormatPayload(necEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"ir":{"timestamp":"2026-02-10T14:30:00Z","number":7,"kind":"NEC","protocol":"NEC","code":"0x00FFFF00","address":0,"command":255,"verified":true,"pulses":67}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadKinds(t *testing.T) {
	tests := []struct {
		name     string
		analysis ir.Analysis
		check    func(t *testing.T, p EventPayload)
	}{
		{
			name:     "repeat omits address and command",
			analysis: ir.Analysis{Kind: ir.KindNEC, Protocol: ir.ProtocolNEC, Code: ir.CodeRepeat, Verified: true, Repeat: true},
			check: func(t *testing.T, p EventPayload) {
				if p.Address != nil || p.Command != nil {
					t.Error("repeat should not carry address or command")
				}
				if !p.Repeat || p.Code != "REPEAT" {
					t.Errorf("got repeat=%v code=%q", p.Repeat, p.Code)
				}
			},
		},
		{
			name:     "sony carries bits",
			analysis: ir.Analysis{Kind: ir.KindSony, Protocol: ir.ProtocolSony, Code: "0x095", Address: 1, Command: 21, Bits: 12},
			check: func(t *testing.T, p EventPayload) {
				if p.Bits != 12 {
					t.Errorf("Bits: got %d, want 12", p.Bits)
				}
				if p.Command == nil || *p.Command != 21 {
					t.Errorf("Command: got %v, want 21", p.Command)
				}
			},
		},
		{
			name:     "generic has fingerprint code only",
			analysis: ir.Analysis{Kind: ir.KindGeneric, Protocol: ir.ProtocolGeneric, Code: "0123456789abcdef", Fingerprint: "0123456789abcdef"},
			check: func(t *testing.T, p EventPayload) {
				if p.Code != "0123456789abcdef" {
					t.Errorf("Code: got %q", p.Code)
				}
				if p.Address != nil || p.Bits != 0 {
					t.Error("generic should not carry protocol fields")
				}
			},
		},
		{
			name:     "noise",
			analysis: ir.Analysis{Kind: ir.KindNoise},
			check: func(t *testing.T, p EventPayload) {
				if p.Kind != "NOISE" || p.Protocol != "" || p.Code != "" {
					t.Errorf("got %+v", p)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ir.Event{Signal: ir.Signal{Number: 1, CapturedAt: captured}, Analysis: tt.analysis}
			data, err := FormatPayload(ev)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var parsed Payload
			if err := json.Unmarshal(data, &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			tt.check(t, parsed.IR)
		})
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("BST", 3600)
	ev := necEvent()
	ev.Signal.CapturedAt = time.Date(2026, 6, 1, 15, 0, 0, 0, loc)

	data, _ := FormatPayload(ev)
	var parsed Payload
	json.Unmarshal(data, &parsed)

	if parsed.IR.Timestamp != "2026-06-01T14:00:00Z" {
		t.Errorf("Timestamp: got %s, want UTC", parsed.IR.Timestamp)
	}
}

func TestTopics(t *testing.T) {
	if Topic != "home/ir/remote/events" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "home/ir/remote/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     EventShutdown,
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadReconnectedOmitsReason(t *testing.T) {
	payload, _ := FormatSystemPayload(SystemEvent{Timestamp: captured, Event: EventReconnected})

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: EventHeartbeat, RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("got %s, want raw payload", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	fake := NewFakePublisher()

	if err := fake.Publish(necEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fake.PublishSystem(SystemEvent{Event: EventStartup, Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fake.EventCount() != 1 || len(fake.Payloads) != 1 {
		t.Errorf("expected 1 event and payload, got %d/%d", fake.EventCount(), len(fake.Payloads))
	}
	if names := fake.SystemEventNames(); len(names) != 1 || names[0] != "STARTUP" {
		t.Errorf("system events: got %v", names)
	}
	if !fake.SystemEvents[0].Retained {
		t.Error("expected retained flag to be recorded")
	}
}

func TestFakePublisherErrors(t *testing.T) {
	fake := NewFakePublisher()
	fake.PublishError = errors.New("broker down")
	fake.PublishSystemError = errors.New("broker down")

	if err := fake.Publish(necEvent()); err == nil {
		t.Error("expected publish error")
	}
	if err := fake.PublishSystem(SystemEvent{Event: EventHeartbeat}); err == nil {
		t.Error("expected publish system error")
	}
	if fake.EventCount() != 0 || len(fake.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherReset(t *testing.T) {
	fake := NewFakePublisher()
	fake.Connected = true
	fake.Publish(necEvent())
	fake.PublishSystem(SystemEvent{Event: EventStartup})
	fake.Close()

	fake.Reset()

	if fake.EventCount() != 0 || len(fake.SystemEvents) != 0 || len(fake.Payloads) != 0 {
		t.Error("expected recordings cleared")
	}
	if fake.Closed || fake.IsConnected() {
		t.Error("expected flags cleared")
	}
}

// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/ir-remote/internal/ir"
)

// Topic is the MQTT topic for captured IR events.
const Topic = "home/ir/remote/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/ir/remote/system"

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
	EventOffline     = "OFFLINE"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a captured IR event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event ir.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	IR EventPayload `json:"ir"`
}

// EventPayload contains the captured event details. Raw timing is not
// published; Pulses carries its length.
type EventPayload struct {
	Timestamp string `json:"timestamp"`
	Number    uint64 `json:"number"`
	Kind      string `json:"kind"`
	Protocol  string `json:"protocol,omitempty"`
	Code      string `json:"code,omitempty"`
	Address   *uint8 `json:"address,omitempty"`
	Command   *uint8 `json:"command,omitempty"`
	Verified  bool   `json:"verified,omitempty"`
	Repeat    bool   `json:"repeat,omitempty"`
	Bits      int    `json:"bits,omitempty"`
	Pulses    int    `json:"pulses"`
}

// FormatPayload creates the JSON payload for a captured event.
func FormatPayload(event ir.Event) ([]byte, error) {
	a := event.Analysis
	p := EventPayload{
		Timestamp: event.Signal.CapturedAt.UTC().Format(time.RFC3339Nano),
		Number:    event.Signal.Number,
		Kind:      string(a.Kind),
		Protocol:  a.Protocol,
		Code:      a.Code,
		Pulses:    len(event.Signal.Pulses),
	}
	switch a.Kind {
	case ir.KindNEC:
		p.Verified = a.Verified
		p.Repeat = a.Repeat
		if !a.Repeat {
			p.Address, p.Command = &a.Address, &a.Command
		}
	case ir.KindSony:
		p.Address, p.Command = &a.Address, &a.Command
		p.Bits = a.Bits
	}
	return json.Marshal(Payload{IR: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Listening     bool         `json:"listening"`
	Transmitting  bool         `json:"transmitting"`
	Message       string       `json:"message"`
	LastEventTime string       `json:"last_event_time,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Pins          PinsJSON     `json:"pins"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// PinsJSON reports the BCM pins in use.
type PinsJSON struct {
	RX int `json:"rx"`
	TX int `json:"tx"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of capture counters.
type CountsJSON struct {
	Total        uint64 `json:"total"`
	Stored       int    `json:"stored"`
	LastMinute   int    `json:"last_minute"`
	Last5Minutes int    `json:"last_5_minutes"`
	Dropped      uint64 `json:"dropped_edges"`
	Glitches     uint64 `json:"glitches"`
	FeedDropped  uint64 `json:"feed_dropped"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Pigpiod     string `json:"pigpiod"`
	SilenceMs   int64  `json:"silence_ms"`
	DebounceUs  int64  `json:"debounce_us"`
	MaxEvents   int    `json:"max_events"`
	CarrierHz   int    `json:"carrier_hz"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	es := snap.Engine
	message := es.Message
	if message == "" {
		message = "IR listener is not running."
	}

	inner := StatusInner{
		Listening:     es.Listening,
		Transmitting:  es.Transmitting,
		Message:       message,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Pins:          PinsJSON{RX: snap.Config.RxPin, TX: snap.Config.TxPin},
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Total:        es.TotalEvents,
			Stored:       es.Stored,
			LastMinute:   es.EventsLastMinute,
			Last5Minutes: es.EventsLast5Minutes,
			Dropped:      es.Dropped,
			Glitches:     es.Glitches,
			FeedDropped:  es.FeedDropped,
		},
		Config: ConfigJSON{
			Pigpiod:     snap.Config.Pigpiod,
			SilenceMs:   snap.Config.SilenceMs,
			DebounceUs:  snap.Config.DebounceUs,
			MaxEvents:   snap.Config.MaxEvents,
			CarrierHz:   snap.Config.CarrierHz,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if !es.LastEventTime.IsZero() {
		inner.LastEventTime = es.LastEventTime.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

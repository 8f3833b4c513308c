package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sweeney/ir-remote/internal/ir"
	"github.com/sweeney/ir-remote/internal/tx"
)

// EventJSON is the JSON representation of a captured event.
type EventJSON struct {
	Number      uint64         `json:"number"`
	Timestamp   string         `json:"timestamp"`
	Kind        string         `json:"kind"`
	Protocol    string         `json:"protocol,omitempty"`
	Code        string         `json:"code,omitempty"`
	Address     *uint8         `json:"address,omitempty"`
	Command     *uint8         `json:"command,omitempty"`
	Verified    bool           `json:"verified,omitempty"`
	Repeat      bool           `json:"repeat,omitempty"`
	Bits        int            `json:"bits,omitempty"`
	Extended    uint8          `json:"extended,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Pulses      int            `json:"pulses"`
	RawTiming   []ir.Pulse     `json:"raw_timing,omitempty"`
	DeviceCode  *ir.DeviceCode `json:"device_code,omitempty"`
}

// EventsJSON is the response body of GET /events.
type EventsJSON struct {
	HorizonSeconds int         `json:"horizon_seconds"`
	Count          int         `json:"count"`
	Message        string      `json:"message"`
	Events         []EventJSON `json:"events"`
}

// TransmitRequest is the request body of POST /transmit and
// POST /transmit/troubleshoot. Zero values select the daemon defaults.
type TransmitRequest struct {
	Protocol   string     `json:"protocol"`
	Code       string     `json:"code"`
	RawTiming  []ir.Pulse `json:"raw_timing,omitempty"`
	CarrierHz  int        `json:"carrier_hz,omitempty"`
	Duty       int        `json:"duty,omitempty"`
	PowerBoost bool       `json:"power_boost,omitempty"`
	Repeats    int        `json:"repeats,omitempty"`
	GapMs      int        `json:"gap_ms,omitempty"`
}

// Request converts the body to a transmit request.
func (r TransmitRequest) Request() tx.Request {
	return tx.Request{
		Protocol:   r.Protocol,
		Code:       r.Code,
		Raw:        r.RawTiming,
		CarrierHz:  r.CarrierHz,
		Duty:       r.Duty,
		PowerBoost: r.PowerBoost,
		Repeats:    r.Repeats,
		Gap:        time.Duration(r.GapMs) * time.Millisecond,
	}
}

// ResultJSON is one troubleshooting step.
type ResultJSON struct {
	Setting    string `json:"setting"`
	CarrierHz  int    `json:"carrier_hz"`
	PowerBoost bool   `json:"power_boost"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
}

// TroubleshootJSON is the response body of POST /transmit/troubleshoot.
type TroubleshootJSON struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Results []ResultJSON `json:"results"`
}

// MessageJSON is the response body of the simple action endpoints.
type MessageJSON struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func eventJSON(ev ir.Event) EventJSON {
	a := ev.Analysis
	e := EventJSON{
		Number:    ev.Signal.Number,
		Timestamp: ev.Signal.CapturedAt.UTC().Format(time.RFC3339Nano),
		Kind:      string(a.Kind),
		Protocol:  a.Protocol,
		Code:      a.Code,
		Pulses:    len(ev.Signal.Pulses),
	}
	switch a.Kind {
	case ir.KindNEC:
		e.Verified = a.Verified
		e.Repeat = a.Repeat
		if !a.Repeat {
			e.Address, e.Command = &a.Address, &a.Command
		}
	case ir.KindSony:
		e.Address, e.Command = &a.Address, &a.Command
		e.Bits = a.Bits
		e.Extended = a.Extended
	case ir.KindGeneric:
		e.Fingerprint = a.Fingerprint
		e.RawTiming = a.Raw
	}
	if dc, ok := ev.DeviceCode(); ok {
		e.DeviceCode = &dc
	}
	return e
}

func resultJSON(r tx.Result) ResultJSON {
	return ResultJSON{
		Setting:    r.Setting.String(),
		CarrierHz:  r.Setting.CarrierHz,
		PowerBoost: r.Setting.PowerBoost,
		Success:    r.Success,
		Message:    r.Message,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

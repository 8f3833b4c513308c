// Package ir contains the pure infrared signal model: pulses, signals, protocol
// decoders and encoders. This package has NO hardware dependencies and never
// reads the clock; capture times are supplied by the caller.
package ir

import (
	"fmt"
	"time"
)

// Level is the logical level of the receiver output during a pulse.
// Receivers are active-low, so Low means carrier present.
type Level bool

const (
	Low  Level = false // mark: carrier on
	High Level = true  // space: carrier off
)

// Mark reports whether the level is a carrier-on interval.
func (l Level) Mark() bool { return l == Low }

func (l Level) String() string {
	if l == Low {
		return "LOW"
	}
	return "HIGH"
}

// MarshalText encodes the level as "LOW" or "HIGH".
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts "LOW"/"HIGH" and the aliases "MARK"/"SPACE".
func (l *Level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "LOW", "low", "MARK", "mark":
		*l = Low
	case "HIGH", "high", "SPACE", "space":
		*l = High
	default:
		return fmt.Errorf("unknown level %q", b)
	}
	return nil
}

// Pulse is a single carrier-on or carrier-off interval.
type Pulse struct {
	Level    Level  `json:"level"`
	Duration uint32 `json:"duration_us"`
}

// Mark returns a carrier-on pulse of d microseconds.
func Mark(d uint32) Pulse { return Pulse{Level: Low, Duration: d} }

// Space returns a carrier-off pulse of d microseconds.
func Space(d uint32) Pulse { return Pulse{Level: High, Duration: d} }

// TotalDuration returns the summed duration of pulses in microseconds.
func TotalDuration(pulses []Pulse) uint64 {
	var total uint64
	for _, p := range pulses {
		total += uint64(p.Duration)
	}
	return total
}

// Signal is a framed pulse sequence. It is never modified after framing.
type Signal struct {
	Number     uint64
	CapturedAt time.Time
	Pulses     []Pulse
}

// Kind identifies which decoder produced an Analysis.
type Kind string

const (
	KindNEC     Kind = "NEC"
	KindSony    Kind = "SONY"
	KindGeneric Kind = "GENERIC"
	KindNoise   Kind = "NOISE"
	KindEmpty   Kind = "EMPTY"
)

// Protocol names accepted by Encode and reported in Analysis.Protocol.
const (
	ProtocolNEC     = "NEC"
	ProtocolSony    = "SONY"
	ProtocolSony15  = "SONY15"
	ProtocolSony20  = "SONY20"
	ProtocolGeneric = "GENERIC"
	ProtocolTest    = "TEST"
)

// CodeRepeat is the code reported for an NEC repeat frame.
const CodeRepeat = "REPEAT"

// Analysis is the decoded form of a Signal. Only the fields relevant to
// Kind are set.
type Analysis struct {
	Kind     Kind
	Protocol string
	Code     string

	// NEC and Sony
	Address uint8
	Command uint8

	// NEC
	Verified bool
	Repeat   bool

	// Sony
	Bits     int
	Extended uint8

	// Generic
	Fingerprint string
	Raw         []Pulse
}

// Event is a stored signal together with its analysis.
type Event struct {
	Signal   Signal
	Analysis Analysis
}

// DeviceCode is everything needed to replay a signal without decoding it
// again. Raw is set only for Generic codes.
type DeviceCode struct {
	Protocol string  `json:"protocol"`
	Code     string  `json:"code"`
	Raw      []Pulse `json:"raw_timing,omitempty"`
}

// DeviceCode returns the replayable code for the event. It returns false
// for noise and empty events.
func (e Event) DeviceCode() (DeviceCode, bool) {
	a := e.Analysis
	switch a.Kind {
	case KindNEC, KindSony:
		return DeviceCode{Protocol: a.Protocol, Code: a.Code}, true
	case KindGeneric:
		return DeviceCode{Protocol: ProtocolGeneric, Code: a.Fingerprint, Raw: a.Raw}, true
	default:
		return DeviceCode{}, false
	}
}

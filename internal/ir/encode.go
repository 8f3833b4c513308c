package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// TestBurstMicros is the carrier burst sent for the TEST protocol.
const TestBurstMicros = 100_000

// NormalizeProtocol upper-cases a protocol name and maps aliases.
func NormalizeProtocol(protocol string) string {
	p := strings.ToUpper(strings.TrimSpace(protocol))
	switch p {
	case "SIRC", "SONY12":
		return ProtocolSony
	case "SONY_15", "SIRC15":
		return ProtocolSony15
	case "SONY_20", "SIRC20":
		return ProtocolSony20
	}
	return p
}

// Encode produces the pulse train for a protocol and code. Generic codes
// are fingerprints and cannot be encoded; replay their raw timing instead.
func Encode(protocol, code string) ([]Pulse, error) {
	p := NormalizeProtocol(protocol)
	code = strings.TrimSpace(code)

	switch p {
	case ProtocolNEC:
		pulses, err := encodeNEC(code)
		if err != nil {
			return nil, fmt.Errorf("encode NEC %q: %w", code, err)
		}
		return pulses, nil
	case ProtocolTest:
		return []Pulse{Mark(TestBurstMicros)}, nil
	case ProtocolGeneric:
		return nil, fmt.Errorf("encode GENERIC: raw timing required: %w", ErrInvalidCode)
	}
	if IsSony(p) {
		pulses, err := encodeSony(p, code)
		if err != nil {
			return nil, fmt.Errorf("encode %s %q: %w", p, code, err)
		}
		return pulses, nil
	}
	return nil, fmt.Errorf("encode %q: %w", protocol, ErrUnsupportedProtocol)
}

// ValidateRaw checks a raw pulse train before replay.
func ValidateRaw(pulses []Pulse) error {
	if len(pulses) == 0 {
		return fmt.Errorf("raw timing is empty: %w", ErrInvalidCode)
	}
	for i, p := range pulses {
		if p.Duration == 0 {
			return fmt.Errorf("raw timing pulse %d has zero duration: %w", i, ErrInvalidCode)
		}
	}
	return nil
}

// parseHex parses a hex code with an optional 0x prefix that must fit in
// bits bits.
func parseHex(code string, bits int) (uint32, error) {
	s := hexDigits(code)
	if s == "" {
		return 0, ErrInvalidCode
	}
	v, err := strconv.ParseUint(s, 16, bits)
	if err != nil {
		return 0, ErrInvalidCode
	}
	return uint32(v), nil
}

func hexDigits(code string) string {
	return strings.TrimPrefix(strings.TrimPrefix(code, "0x"), "0X")
}

package ir

import (
	"fmt"
	"strconv"
	"strings"
)

var (
	sonyHeaderMark  = window{2000, 2800}
	sonyHeaderSpace = window{300, 1000}
	sonyBitMark     = window{400, 800}
	sonyZeroSpace   = window{400, 800}
	sonyOneSpace    = window{1000, 1400}
)

const (
	sonyMinPulses = 24
	sonyMinBits   = 12
	sonyMaxBits   = 20
)

// Transmit timings. The bit value rides on the space after each mark.
const (
	sonyTxHeaderMark  = 2400
	sonyTxHeaderSpace = 600
	sonyTxBitMark     = 600
	sonyTxZeroSpace   = 600
	sonyTxOneSpace    = 1200
)

// DecodeSony interprets pulses as a Sony frame of 12 to 20 bits. Bits are
// read from mark/space pairs after the header until a pair falls outside the
// bit windows. The 12, 15 and 20 bit widths are reported as SONY, SONY15 and
// SONY20; other widths as SONY followed by the bit count.
func DecodeSony(pulses []Pulse) (Analysis, bool) {
	if len(pulses) < sonyMinPulses {
		return Analysis{}, false
	}
	if !sonyHeaderMark.contains(pulses[0].Duration) || !sonyHeaderSpace.contains(pulses[1].Duration) {
		return Analysis{}, false
	}

	var value uint32
	bits := 0
	for i := 2; i+1 < len(pulses) && bits < sonyMaxBits; i += 2 {
		if !sonyBitMark.contains(pulses[i].Duration) {
			break
		}
		space := pulses[i+1].Duration
		if sonyOneSpace.contains(space) {
			value |= 1 << bits
		} else if !sonyZeroSpace.contains(space) {
			break
		}
		bits++
	}
	if bits < sonyMinBits {
		return Analysis{}, false
	}

	a := Analysis{
		Kind:     KindSony,
		Protocol: sonyProtocol(bits),
		Code:     formatSony(value, bits),
		Command:  uint8(value & 0x7F),
		Bits:     bits,
	}
	if wideAddress(bits) {
		a.Address = uint8(value >> 7)
		a.Extended = uint8(value >> 15)
	} else {
		a.Address = uint8((value >> 7) & 0x1F)
		a.Extended = uint8(value >> 12)
	}
	return a, true
}

func sonyProtocol(bits int) string {
	if bits == sonyMinBits {
		return ProtocolSony
	}
	return ProtocolSony + strconv.Itoa(bits)
}

// sonyBits returns the frame width named by a normalized Sony protocol.
func sonyBits(protocol string) (int, bool) {
	if protocol == ProtocolSony {
		return sonyMinBits, true
	}
	n, err := strconv.Atoi(strings.TrimPrefix(protocol, ProtocolSony))
	if err != nil || !strings.HasPrefix(protocol, ProtocolSony) || n < sonyMinBits || n > sonyMaxBits {
		return 0, false
	}
	return n, true
}

// IsSony reports whether a normalized protocol names a Sony frame width.
func IsSony(protocol string) bool {
	_, ok := sonyBits(protocol)
	return ok
}

// wideAddress reports whether a frame width carries an 8-bit address.
func wideAddress(bits int) bool { return bits >= 15 && bits < 20 }

func formatSony(value uint32, bits int) string {
	return fmt.Sprintf("0x%0*X", (bits+3)/4, value)
}

// SonyValue packs command, address and extended bits into a frame value of
// the given width.
func SonyValue(bits int, address, command, extended uint8) uint32 {
	v := uint32(command & 0x7F)
	if wideAddress(bits) {
		v |= uint32(address)<<7 | uint32(extended)<<15
	} else {
		v |= uint32(address&0x1F)<<7 | uint32(extended)<<12
	}
	return v & (1<<bits - 1)
}

func encodeSony(protocol, code string) ([]Pulse, error) {
	bits, ok := sonyBits(protocol)
	if !ok {
		return nil, ErrUnsupportedProtocol
	}
	value, err := parseHex(code, bits)
	if err != nil {
		return nil, err
	}

	pulses := make([]Pulse, 0, 2+2*bits+1)
	pulses = append(pulses, Mark(sonyTxHeaderMark), Space(sonyTxHeaderSpace))
	for i := 0; i < bits; i++ {
		space := uint32(sonyTxZeroSpace)
		if value&(1<<i) != 0 {
			space = sonyTxOneSpace
		}
		pulses = append(pulses, Mark(sonyTxBitMark), Space(space))
	}
	pulses = append(pulses, Mark(sonyTxBitMark))
	return pulses, nil
}

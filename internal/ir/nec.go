package ir

import "fmt"

// Receive windows are wide to tolerate clock drift and debounce loss.
var (
	necHeaderMark  = window{7000, 11000}
	necHeaderSpace = window{3000, 6000}
	necRepeatSpace = window{1750, 2750}
	necBitMark     = window{300, 800}
	necZeroSpace   = window{300, 800}
	necOneSpace    = window{1200, 2200}
)

const (
	necMinPulses   = 34
	necFramePulses = 2 + 2*32 // header + 32 mark/space pairs
)

// Transmit timings.
const (
	necTxHeaderMark  = 9000
	necTxHeaderSpace = 4500
	necTxRepeatSpace = 2250
	necTxBitMark     = 560
	necTxZeroSpace   = 560
	necTxOneSpace    = 1690
)

// DecodeNEC interprets pulses as an NEC frame or repeat frame.
//
// The trailing space after the stop mark is never captured (the signal is
// sealed by silence), so a repeat frame arrives as 3 pulses and a full frame
// as 67. Four-pulse repeats are accepted too.
func DecodeNEC(pulses []Pulse) (Analysis, bool) {
	if len(pulses) < 2 || !necHeaderMark.contains(pulses[0].Duration) {
		return Analysis{}, false
	}

	if len(pulses) == 3 || len(pulses) == 4 {
		space := pulses[1].Duration
		if necHeaderSpace.contains(space) || necRepeatSpace.contains(space) {
			return Analysis{
				Kind:     KindNEC,
				Protocol: ProtocolNEC,
				Code:     CodeRepeat,
				Verified: true,
				Repeat:   true,
			}, true
		}
		return Analysis{}, false
	}

	if len(pulses) < necMinPulses || !necHeaderSpace.contains(pulses[1].Duration) {
		return Analysis{}, false
	}
	if len(pulses) < necFramePulses {
		return Analysis{}, false
	}

	var word uint32
	for i := 0; i < 32; i++ {
		mark := pulses[2+2*i].Duration
		space := pulses[3+2*i].Duration
		if !necBitMark.contains(mark) {
			return Analysis{}, false
		}
		switch {
		case necZeroSpace.contains(space):
		case necOneSpace.contains(space):
			word |= 1 << i
		default:
			return Analysis{}, false
		}
	}

	addr, notAddr := uint8(word), uint8(word>>8)
	cmd, notCmd := uint8(word>>16), uint8(word>>24)

	return Analysis{
		Kind:     KindNEC,
		Protocol: ProtocolNEC,
		Code:     FormatNEC(word),
		Address:  addr,
		Command:  cmd,
		Verified: addr^notAddr == 0xFF && cmd^notCmd == 0xFF,
	}, true
}

// NECWord builds the 32-bit frame for address and command with their
// complements: address, ~address, command, ~command, least significant
// byte first on the wire.
func NECWord(address, command uint8) uint32 {
	return uint32(address) |
		uint32(^address)<<8 |
		uint32(command)<<16 |
		uint32(^command)<<24
}

// FormatNEC renders a frame word the way DecodeNEC reports it.
func FormatNEC(word uint32) string {
	return fmt.Sprintf("0x%08X", word)
}

// ParseNEC parses an NEC code. A code of up to 4 hex digits is read as
// address (high byte) and command (low byte) and expanded with complements;
// longer codes are sent as the literal 32-bit word, so every code FormatNEC
// produces replays the frame it was decoded from.
func ParseNEC(code string) (word uint32, repeat bool, err error) {
	if code == CodeRepeat {
		return 0, true, nil
	}
	v, err := parseHex(code, 32)
	if err != nil {
		return 0, false, err
	}
	if len(hexDigits(code)) <= 4 {
		return NECWord(uint8(v>>8), uint8(v)), false, nil
	}
	return v, false, nil
}

func encodeNEC(code string) ([]Pulse, error) {
	word, repeat, err := ParseNEC(code)
	if err != nil {
		return nil, err
	}
	if repeat {
		return []Pulse{
			Mark(necTxHeaderMark),
			Space(necTxRepeatSpace),
			Mark(necTxBitMark),
		}, nil
	}

	pulses := make([]Pulse, 0, necFramePulses+1)
	pulses = append(pulses, Mark(necTxHeaderMark), Space(necTxHeaderSpace))
	for i := 0; i < 32; i++ {
		space := uint32(necTxZeroSpace)
		if word&(1<<i) != 0 {
			space = necTxOneSpace
		}
		pulses = append(pulses, Mark(necTxBitMark), Space(space))
	}
	pulses = append(pulses, Mark(necTxBitMark))
	return pulses, nil
}

package ir

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		protocol, code string
		want           error
	}{
		{"unknown_protocol", "0xFF", ErrUnsupportedProtocol},
		{"RC5", "0x01", ErrUnsupportedProtocol},
		{"GENERIC", "0123456789abcdef", ErrInvalidCode},
		{"NEC", "not-hex", ErrInvalidCode},
		{"SONY20", "0x100000", ErrInvalidCode},
	}

	for _, tt := range tests {
		_, err := Encode(tt.protocol, tt.code)
		if !errors.Is(err, tt.want) {
			t.Errorf("Encode(%q, %q): got %v, want %v", tt.protocol, tt.code, err, tt.want)
		}
	}
}

func TestEncodeNECTimings(t *testing.T) {
	pulses := mustEncode(t, "nec", "0x00FF")

	assert.Equal(t, Mark(9000), pulses[0])
	assert.Equal(t, Space(4500), pulses[1])
	// Address 0x00 LSB first: eight zero bits.
	for i := 0; i < 8; i++ {
		assert.Equal(t, Mark(560), pulses[2+2*i])
		assert.Equal(t, Space(560), pulses[3+2*i])
	}
	// ~Address 0xFF: eight one bits.
	for i := 8; i < 16; i++ {
		assert.Equal(t, Space(1690), pulses[3+2*i])
	}
	assert.Equal(t, Mark(560), pulses[len(pulses)-1])
}

func TestEncodeTest(t *testing.T) {
	pulses := mustEncode(t, "test", "")
	assert.Equal(t, []Pulse{Mark(TestBurstMicros)}, pulses)
}

func TestValidateRaw(t *testing.T) {
	assert.NoError(t, ValidateRaw([]Pulse{Mark(500), Space(500)}))

	if err := ValidateRaw(nil); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("empty raw: got %v, want ErrInvalidCode", err)
	}
	if err := ValidateRaw([]Pulse{Mark(500), Space(0)}); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("zero pulse: got %v, want ErrInvalidCode", err)
	}
}

func TestPulseJSON(t *testing.T) {
	data, err := json.Marshal([]Pulse{Mark(9000), Space(4500)})
	assert.NoError(t, err)
	assert.Equal(t, `[{"level":"LOW","duration_us":9000},{"level":"HIGH","duration_us":4500}]`, string(data))

	var back []Pulse
	assert.NoError(t, json.Unmarshal([]byte(`[{"level":"mark","duration_us":560},{"level":"space","duration_us":1690}]`), &back))
	assert.Equal(t, []Pulse{Mark(560), Space(1690)}, back)

	err = json.Unmarshal([]byte(`[{"level":"up","duration_us":1}]`), &back)
	assert.Error(t, err)
}

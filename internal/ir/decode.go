package ir

// Decode classifies a framed pulse sequence. Decoders run in priority order
// NEC, Sony, Generic and the first match wins. Decode never fails: anything
// unrecognised ends up as Generic or Noise.
func Decode(pulses []Pulse) Analysis {
	if len(pulses) == 0 {
		return Analysis{Kind: KindEmpty}
	}
	if a, ok := DecodeNEC(pulses); ok {
		return a
	}
	if a, ok := DecodeSony(pulses); ok {
		return a
	}
	return DecodeGeneric(pulses)
}

// window is an inclusive duration range in microseconds.
type window struct{ min, max uint32 }

func (w window) contains(d uint32) bool { return d >= w.min && d <= w.max }

package ir

import (
	"encoding/binary"
	"encoding/hex"
	"slices"

	"github.com/zeebo/blake3"
)

// Fingerprint parameters. These define the persisted code format for
// undecoded signals: changing any of them invalidates learned devices.
const (
	fingerprintPulses = 20
	bucketMicros      = 50
	totalBucketMicros = 1000
	noiseFloorMicros  = 1000
)

// fingerprintKey is the BLAKE3 key for fingerprints: the ASCII domain name
// zero-padded to 32 bytes.
var fingerprintKey = [32]byte{
	'i', 'r', '-', 'r', 'e', 'm', 'o', 't', 'e', '.', 'f', 'i', 'n', 'g', 'e', 'r',
	'p', 'r', 'i', 'n', 't', '.', 'v', '1', 0, 0, 0, 0, 0, 0, 0, 0,
}

// DecodeGeneric never fails. Trains shorter than 1 ms in total are noise;
// anything else is fingerprinted and keeps its raw timing for replay.
func DecodeGeneric(pulses []Pulse) Analysis {
	if len(pulses) == 0 {
		return Analysis{Kind: KindEmpty}
	}
	if TotalDuration(pulses) < noiseFloorMicros {
		return Analysis{Kind: KindNoise}
	}
	fp := Fingerprint(pulses)
	return Analysis{
		Kind:        KindGeneric,
		Protocol:    ProtocolGeneric,
		Code:        fp,
		Fingerprint: fp,
		Raw:         slices.Clone(pulses),
	}
}

// Fingerprint returns a 16 hex digit keyed hash over the first 20 pulses,
// each rounded to the nearest 50 µs, together with the pulse count and the
// total duration rounded to the nearest millisecond.
func Fingerprint(pulses []Pulse) string {
	n := min(len(pulses), fingerprintPulses)

	h, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("ir: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	var buf [5]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(pulses)))
	h.Write(buf[:4])
	total := (TotalDuration(pulses) + totalBucketMicros/2) / totalBucketMicros
	binary.LittleEndian.PutUint32(buf[:4], uint32(total))
	h.Write(buf[:4])

	for _, p := range pulses[:n] {
		buf[0] = 0
		if p.Level == High {
			buf[0] = 1
		}
		binary.LittleEndian.PutUint32(buf[1:], bucket(p.Duration))
		h.Write(buf[:])
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}

func bucket(d uint32) uint32 {
	return uint32((uint64(d) + bucketMicros/2) / bucketMicros)
}

// Package journal appends captured IR events to a file as a CBOR sequence
// (RFC 8742) and reads them back.
//
// Each record holds one event. Pulses are packed as signed microsecond
// durations: positive for marks, negative for spaces. A crash can leave a
// partial record at the end of the file; readers stop there and report it.
package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/sweeney/ir-remote/internal/ir"
)

// ErrTruncated is returned when the journal ends inside a record.
var ErrTruncated = errors.New("journal: truncated record")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("journal: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("journal: CBOR decoder initialization failed: " + err.Error())
	}
}

// record is the on-disk form of an event. Integer keys keep records small.
type record struct {
	Number      uint64    `cbor:"1,keyasint"`
	CapturedAt  time.Time `cbor:"2,keyasint"`
	Pulses      []int64   `cbor:"3,keyasint"`
	Kind        ir.Kind   `cbor:"4,keyasint"`
	Protocol    string    `cbor:"5,keyasint,omitempty"`
	Code        string    `cbor:"6,keyasint,omitempty"`
	Address     uint8     `cbor:"7,keyasint,omitempty"`
	Command     uint8     `cbor:"8,keyasint,omitempty"`
	Verified    bool      `cbor:"9,keyasint,omitempty"`
	Repeat      bool      `cbor:"10,keyasint,omitempty"`
	Bits        int       `cbor:"11,keyasint,omitempty"`
	Extended    uint8     `cbor:"12,keyasint,omitempty"`
	Fingerprint string    `cbor:"13,keyasint,omitempty"`
	Raw         []int64   `cbor:"14,keyasint,omitempty"`
}

func toRecord(ev ir.Event) record {
	a := ev.Analysis
	return record{
		Number:      ev.Signal.Number,
		CapturedAt:  ev.Signal.CapturedAt.UTC(),
		Pulses:      pack(ev.Signal.Pulses),
		Kind:        a.Kind,
		Protocol:    a.Protocol,
		Code:        a.Code,
		Address:     a.Address,
		Command:     a.Command,
		Verified:    a.Verified,
		Repeat:      a.Repeat,
		Bits:        a.Bits,
		Extended:    a.Extended,
		Fingerprint: a.Fingerprint,
		Raw:         pack(a.Raw),
	}
}

func (r record) event() (ir.Event, error) {
	pulses, err := unpack(r.Pulses)
	if err != nil {
		return ir.Event{}, err
	}
	raw, err := unpack(r.Raw)
	if err != nil {
		return ir.Event{}, err
	}
	return ir.Event{
		Signal: ir.Signal{
			Number:     r.Number,
			CapturedAt: r.CapturedAt,
			Pulses:     pulses,
		},
		Analysis: ir.Analysis{
			Kind:        r.Kind,
			Protocol:    r.Protocol,
			Code:        r.Code,
			Address:     r.Address,
			Command:     r.Command,
			Verified:    r.Verified,
			Repeat:      r.Repeat,
			Bits:        r.Bits,
			Extended:    r.Extended,
			Fingerprint: r.Fingerprint,
			Raw:         raw,
		},
	}, nil
}

func pack(pulses []ir.Pulse) []int64 {
	if len(pulses) == 0 {
		return nil
	}
	out := make([]int64, len(pulses))
	for i, p := range pulses {
		d := int64(p.Duration)
		if !p.Level.Mark() {
			d = -d
		}
		out[i] = d
	}
	return out
}

func unpack(packed []int64) ([]ir.Pulse, error) {
	if len(packed) == 0 {
		return nil, nil
	}
	out := make([]ir.Pulse, len(packed))
	for i, d := range packed {
		switch {
		case d > 0 && d <= int64(^uint32(0)):
			out[i] = ir.Mark(uint32(d))
		case d < 0 && -d <= int64(^uint32(0)):
			out[i] = ir.Space(uint32(-d))
		default:
			return nil, fmt.Errorf("journal: invalid pulse duration %d at index %d", d, i)
		}
	}
	return out, nil
}

// Writer appends events to a journal file. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	enc    *cbor.Encoder
	closed bool
}

// Open opens path for appending, creating it if needed.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Writer{file: f, enc: encMode.NewEncoder(f)}, nil
}

// Append writes one event.
func (w *Writer) Append(ev ir.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	if err := w.enc.Encode(toRecord(ev)); err != nil {
		return fmt.Errorf("append event %d: %w", ev.Signal.Number, err)
	}
	return nil
}

// Close syncs and closes the file. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return errors.Join(w.file.Sync(), w.file.Close())
}

// Read decodes events from r in order, calling fn for each. It stops at
// the first error returned by fn. A partial final record yields an error
// wrapping ErrTruncated after the complete records have been delivered.
func Read(r io.Reader, fn func(ir.Event) error) error {
	dec := decMode.NewDecoder(r)
	for n := 0; ; n++ {
		var rec record
		err := dec.Decode(&rec)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%w after %d events", ErrTruncated, n)
		case err != nil:
			return fmt.Errorf("decode record %d: %w", n, err)
		}

		ev, err := rec.event()
		if err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// ReadFile reads the journal at path.
func ReadFile(path string, fn func(ir.Event) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	return Read(f, fn)
}

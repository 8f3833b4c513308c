package store

import (
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/sweeney/ir-remote/internal/ir"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func signalAt(offset time.Duration) ir.Signal {
	return ir.Signal{CapturedAt: t0.Add(offset), Pulses: []ir.Pulse{ir.Mark(9000)}}
}

func TestAddNumbersSignals(t *testing.T) {
	s := New(10)
	for i := 0; i < 3; i++ {
		ev := s.Add(signalAt(time.Duration(i)*time.Second), ir.Analysis{Kind: ir.KindGeneric})
		assert.Equal(t, uint64(i+1), ev.Signal.Number)
	}
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, uint64(3), s.Counter())
}

func TestBatchEviction(t *testing.T) {
	tests := []struct {
		max       int
		wantLen   int
		wantFirst uint64
	}{
		{100, 100 - 10 + 1, 11},
		{10, 10 - 1 + 1, 2},
		{25, 25 - 2 + 1, 3},
		{5, 5 - 1 + 1, 2}, // max/10 is zero; at least one is evicted
		{1, 1, 2},
	}

	for _, tt := range tests {
		s := New(tt.max)
		for i := 0; i <= tt.max; i++ {
			s.Add(signalAt(time.Duration(i)*time.Millisecond), ir.Analysis{Kind: ir.KindNoise})
		}

		events := s.Recent(t0.Add(time.Hour), 2*time.Hour)
		if len(events) != tt.wantLen {
			t.Errorf("max %d: len got %d, want %d", tt.max, len(events), tt.wantLen)
			continue
		}
		if events[0].Signal.Number != tt.wantFirst {
			t.Errorf("max %d: oldest survivor got #%d, want #%d", tt.max, events[0].Signal.Number, tt.wantFirst)
		}
		if last := events[len(events)-1].Signal.Number; last != uint64(tt.max+1) {
			t.Errorf("max %d: newest got #%d, want #%d", tt.max, last, tt.max+1)
		}
	}
}

func TestEvictionIsBatched(t *testing.T) {
	s := New(20)
	for i := 0; i < 21; i++ {
		s.Add(signalAt(0), ir.Analysis{})
	}
	assert.Equal(t, 19, s.Len())

	// The next insert fits without evicting.
	s.Add(signalAt(0), ir.Analysis{})
	assert.Equal(t, 20, s.Len())
}

func TestRecentHorizon(t *testing.T) {
	s := New(10)
	s.Add(signalAt(0), ir.Analysis{})
	s.Add(signalAt(30*time.Second), ir.Analysis{})
	s.Add(signalAt(50*time.Second), ir.Analysis{})

	now := t0.Add(60 * time.Second)

	got := s.Recent(now, 20*time.Second)
	assert.Equal(t, 1, len(got))
	assert.Equal(t, uint64(3), got[0].Signal.Number)

	got = s.Recent(now, 30*time.Second)
	assert.Equal(t, 2, len(got))
	assert.Equal(t, uint64(2), got[0].Signal.Number, "oldest first")

	assert.Equal(t, 0, len(s.Recent(t0.Add(time.Hour), time.Minute)))
	assert.Equal(t, 2, s.CountSince(t0.Add(30*time.Second)))
}

func TestClearResetsCounter(t *testing.T) {
	s := New(10)
	s.Add(signalAt(0), ir.Analysis{})
	s.Add(signalAt(0), ir.Analysis{})
	s.Clear()

	assert.Equal(t, 0, s.Len())
	_, ok := s.Latest()
	assert.False(t, ok)

	ev := s.Add(signalAt(0), ir.Analysis{})
	assert.Equal(t, uint64(1), ev.Signal.Number)
	assert.Equal(t, uint64(3), s.Total())
}

func TestFindSimilar(t *testing.T) {
	raw := []ir.Pulse{ir.Mark(3000), ir.Space(1500), ir.Mark(500)}
	s := New(10)
	s.Add(signalAt(0), ir.Analysis{Kind: ir.KindGeneric, Fingerprint: "aaaa", Raw: raw})

	near := []ir.Pulse{ir.Mark(3100), ir.Space(1400), ir.Mark(520)}

	ev, ok := s.FindSimilar(t0.Add(time.Second), 2*time.Second, near)
	assert.True(t, ok)
	assert.Equal(t, "aaaa", ev.Analysis.Fingerprint)

	_, ok = s.FindSimilar(t0.Add(3*time.Second), 2*time.Second, near)
	assert.False(t, ok, "outside window")
}

func TestConcurrentAccess(t *testing.T) {
	s := New(50)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Add(signalAt(0), ir.Analysis{})
				_ = s.Recent(t0, time.Minute)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(800), s.Counter())
	if s.Len() > 50 {
		t.Errorf("len %d exceeds cap", s.Len())
	}
}

// Package clock abstracts wall time, the microsecond pulse counter, and timers
// so that capture framing and transmission can be driven deterministically in
// tests.
//
// Production code takes a Clock and is handed Real(); tests hand it Fake()
// and move time forward with Advance.
package clock

import "time"

// Ticks is a free-running microsecond counter that wraps at 2^32
// (roughly every 71.6 minutes). It models the hardware pulse timer.
type Ticks uint32

// Since returns the microseconds elapsed from earlier to t. The subtraction
// is modular, so a single wrap between the two readings is handled.
func (t Ticks) Since(earlier Ticks) uint32 {
	return uint32(t - earlier)
}

// Add returns t advanced by us microseconds, wrapping as the hardware does.
func (t Ticks) Add(us uint32) Ticks {
	return t + Ticks(us)
}

// TicksOf converts a monotonic duration (for example a kernel event
// timestamp) to the wrapping counter.
func TicksOf(d time.Duration) Ticks {
	return Ticks(uint64(d / time.Microsecond))
}

// Clock is the time source used by the capture and transmit paths.
type Clock interface {
	// Now returns the current wall time.
	Now() time.Time

	// Ticks returns the current value of the microsecond counter.
	Ticks() Ticks

	// AfterFunc calls f in its own goroutine (real) or synchronously
	// during Advance (fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker delivers ticks on C every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker

	// Sleep blocks for at least d.
	Sleep(d time.Duration)
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the callback from running. It reports whether the call
// stopped the timer; false means it already fired or was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Ticker delivers periodic ticks on C. C has capacity 1; ticks are dropped
// when the reader falls behind.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stopFunc() }

package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a deterministic Clock. Time moves only when Advance is
// called. AfterFunc callbacks run synchronously inside Advance, in deadline
// order, with the clock's lock released.
//
// FakeClock is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	start   time.Time
	current time.Time
	waiters []*fakeWaiter
	changed *sync.Cond
}

type fakeWaiter struct {
	deadline time.Time
	callback func()         // AfterFunc
	channel  chan time.Time // Sleep, Ticker
	interval time.Duration  // Ticker only
	stopped  bool
	fired    bool
}

// Fake returns a FakeClock set to initial. Its tick counter reads zero at
// initial.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{start: initial, current: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake wall time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Ticks returns the microseconds elapsed since the clock was created,
// wrapped to 32 bits.
func (c *FakeClock) Ticks() Ticks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return TicksOf(c.current.Sub(c.start))
}

// AfterFunc registers f to run once the clock has advanced by d. If d <= 0,
// f runs before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stopFunc: func() bool { return false }}
	}

	c.mu.Lock()
	w := &fakeWaiter{deadline: c.current.Add(d), callback: f}
	c.waiters = append(c.waiters, w)
	c.changed.Broadcast()
	c.mu.Unlock()

	return &Timer{stopFunc: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if w.stopped || w.fired {
			return false
		}
		w.stopped = true
		return true
	}}
}

// NewTicker returns a ticker that fires once per interval crossed by
// Advance.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	w := &fakeWaiter{deadline: c.current.Add(d), channel: ch, interval: d}
	c.waiters = append(c.waiters, w)
	c.changed.Broadcast()

	return &Ticker{C: ch, stopFunc: func() {
		c.mu.Lock()
		w.stopped = true
		c.mu.Unlock()
	}}
}

// Sleep blocks until the clock has been advanced past now+d.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	ch := make(chan time.Time, 1)
	c.waiters = append(c.waiters, &fakeWaiter{deadline: c.current.Add(d), channel: ch})
	c.changed.Broadcast()
	c.mu.Unlock()
	<-ch
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline falls inside the new time, earliest first.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)

	for {
		w := c.nextDueLocked(target)
		if w == nil {
			break
		}
		c.current = w.deadline

		switch {
		case w.callback != nil:
			w.fired = true
			f := w.callback
			c.mu.Unlock()
			f()
			c.mu.Lock()
		case w.interval > 0:
			select {
			case w.channel <- w.deadline:
			default:
			}
			w.deadline = w.deadline.Add(w.interval)
		default:
			w.fired = true
			w.channel <- w.deadline
		}
	}

	c.current = target
	c.pruneLocked()
	c.mu.Unlock()
}

// PendingTimers reports how many timers, tickers, and sleeps are waiting.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
	return len(c.waiters)
}

// WaitForTimers blocks until at least n waiters are registered.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		c.pruneLocked()
		if len(c.waiters) >= n {
			return
		}
		c.changed.Wait()
	}
}

func (c *FakeClock) nextDueLocked(target time.Time) *fakeWaiter {
	var due []*fakeWaiter
	for _, w := range c.waiters {
		if w.stopped || w.fired || w.deadline.After(target) {
			continue
		}
		due = append(due, w)
	}
	if len(due) == 0 {
		return nil
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	return due[0]
}

func (c *FakeClock) pruneLocked() {
	live := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			live = append(live, w)
		}
	}
	c.waiters = live
}

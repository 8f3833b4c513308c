// Package capture turns a stream of receiver edges into framed, decoded
// signals.
//
// Edges enter through OnEdge, which only enqueues. A single framing goroutine
// owns the in-progress pulse buffer, the previous edge and the silence timer;
// timer expiry is delivered as a command on the same queue, so there is no
// shared state between the edge path and the timer. Sealed signals are handed
// to a decode goroutine so the next signal can start immediately.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/ir-remote/internal/clock"
	"github.com/sweeney/ir-remote/internal/ir"
)

// Defaults.
const (
	DefaultDebounce  = 50 * time.Microsecond
	DefaultSilence   = 200 * time.Millisecond
	DefaultMaxPulses = 1024
	DefaultQueueSize = 4096
)

// ErrClosed is returned by commands issued after Close.
var ErrClosed = errors.New("framer closed")

// Config controls framing.
type Config struct {
	// Debounce is the shortest accepted pulse. Shorter edges are glitches.
	Debounce time.Duration
	// Silence seals the signal when no edge arrives for this long.
	Silence time.Duration
	// MaxPulses seals a signal early once it holds this many pulses.
	MaxPulses int
	// QueueSize bounds the edge queue; edges beyond it are dropped.
	QueueSize int
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Silence <= 0 {
		c.Silence = DefaultSilence
	}
	if c.MaxPulses <= 0 {
		c.MaxPulses = DefaultMaxPulses
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}

// Sink receives each sealed signal with its analysis, on the decode
// goroutine, in seal order.
type Sink func(ir.Signal, ir.Analysis)

// Stats are framing counters since the framer was created.
type Stats struct {
	Edges    uint64 // edges processed by the framing loop
	Glitches uint64 // edges rejected by the debounce floor
	Dropped  uint64 // edges lost because the queue was full
	Signals  uint64 // non-empty signals sealed
}

type cmdKind uint8

const (
	cmdEdge cmdKind = iota
	cmdExpire
	cmdReset
	cmdFlush
	cmdSync
)

// command is passed by value so OnEdge never allocates.
type command struct {
	kind  cmdKind
	level ir.Level
	ticks clock.Ticks
	gen   uint64
	done  chan struct{}
}

// job is a sealed signal for the decode goroutine, or a barrier when done
// is set and the signal is empty.
type job struct {
	signal ir.Signal
	done   chan struct{}
}

// Framer segments edges into signals.
type Framer struct {
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger
	sink   Sink

	cmds chan command
	jobs chan job
	quit chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup

	edges    atomic.Uint64
	glitches atomic.Uint64
	dropped  atomic.Uint64
	signals  atomic.Uint64
}

// New creates a framer and starts its framing and decode goroutines.
// Call Close to stop them.
func New(cfg Config, clk clock.Clock, logger *slog.Logger, sink Sink) *Framer {
	cfg = cfg.withDefaults()
	f := &Framer{
		cfg:    cfg,
		clock:  clk,
		logger: logger,
		sink:   sink,
		cmds:   make(chan command, cfg.QueueSize),
		jobs:   make(chan job, 32),
		quit:   make(chan struct{}),
	}

	f.wg.Add(2)
	go f.frameLoop()
	go f.decodeLoop()
	return f
}

// OnEdge records a transition of the receiver to level at ticks. It never
// blocks: when the queue is full the edge is dropped and counted.
func (f *Framer) OnEdge(level ir.Level, ticks clock.Ticks) {
	select {
	case f.cmds <- command{kind: cmdEdge, level: level, ticks: ticks}:
	default:
		f.dropped.Add(1)
	}
}

// Reset discards the signal in progress and waits until every signal
// sealed before it has reached the sink.
func (f *Framer) Reset(ctx context.Context) error {
	return f.roundTrip(ctx, cmdReset)
}

// Flush seals the signal in progress, if any, and waits until it has
// reached the sink.
func (f *Framer) Flush(ctx context.Context) error {
	return f.roundTrip(ctx, cmdFlush)
}

// Sync waits until every edge enqueued before the call has been framed and
// every signal sealed so far has reached the sink.
func (f *Framer) Sync(ctx context.Context) error {
	return f.roundTrip(ctx, cmdSync)
}

// Stats returns a snapshot of the framing counters.
func (f *Framer) Stats() Stats {
	return Stats{
		Edges:    f.edges.Load(),
		Glitches: f.glitches.Load(),
		Dropped:  f.dropped.Load(),
		Signals:  f.signals.Load(),
	}
}

// Close stops the framing and decode goroutines. A signal in progress is
// discarded. Close is safe to call more than once.
func (f *Framer) Close() {
	f.closeOnce.Do(func() { close(f.quit) })
	f.wg.Wait()
}

func (f *Framer) roundTrip(ctx context.Context, kind cmdKind) error {
	done := make(chan struct{})
	select {
	case f.cmds <- command{kind: kind, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	case <-f.quit:
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-f.quit:
		return ErrClosed
	}
}

// post delivers a command from a timer callback. Unlike OnEdge it waits
// for room, so an expiry is never lost.
func (f *Framer) post(cmd command) {
	select {
	case f.cmds <- cmd:
	case <-f.quit:
	}
}

func (f *Framer) frameLoop() {
	defer f.wg.Done()

	st := newFrameState(f.cfg.MaxPulses)
	defer st.stopTimer()

	for {
		select {
		case <-f.quit:
			return
		case cmd := <-f.cmds:
			switch cmd.kind {
			case cmdEdge:
				f.edges.Add(1)
				f.handleEdge(st, cmd.level, cmd.ticks)
			case cmdExpire:
				if st.accumulating && cmd.gen == st.gen {
					f.seal(st)
				}
			case cmdReset:
				st.reset()
				f.barrier(cmd.done)
			case cmdFlush:
				f.seal(st)
				f.barrier(cmd.done)
			case cmdSync:
				f.barrier(cmd.done)
			}
		}
	}
}

func (f *Framer) handleEdge(st *frameState, level ir.Level, ticks clock.Ticks) {
	if !st.accumulating {
		st.begin(level, ticks, f.clock.Now())
		f.arm(st)
		return
	}

	d := ticks.Since(st.prevTicks)
	if d == 0 || time.Duration(d)*time.Microsecond < f.cfg.Debounce {
		f.glitches.Add(1)
		// The glitch and the edge before it cancel out. The timer is
		// not re-armed.
		st.undo()
		return
	}

	st.appendPulse(level, ticks, d)
	if len(st.pulses) >= f.cfg.MaxPulses {
		f.logger.Warn("signal reached pulse limit, sealing early", "pulses", len(st.pulses))
		f.seal(st)
		return
	}
	f.arm(st)
}

// arm cancels the current silence timer and starts a new one. The
// generation lets the loop ignore an expiry that raced with a re-arm.
func (f *Framer) arm(st *frameState) {
	st.stopTimer()
	st.gen++
	gen := st.gen
	st.timer = f.clock.AfterFunc(f.cfg.Silence, func() {
		f.post(command{kind: cmdExpire, gen: gen})
	})
}

func (f *Framer) seal(st *frameState) {
	sig, ok := st.take()
	if !ok {
		return
	}
	f.signals.Add(1)
	f.logger.Debug("signal sealed", "pulses", len(sig.Pulses))

	select {
	case f.jobs <- job{signal: sig}:
	case <-f.quit:
	}
}

func (f *Framer) barrier(done chan struct{}) {
	select {
	case f.jobs <- job{done: done}:
	case <-f.quit:
	}
}

func (f *Framer) decodeLoop() {
	defer f.wg.Done()
	for {
		select {
		case <-f.quit:
			return
		case j := <-f.jobs:
			if j.done != nil {
				close(j.done)
				continue
			}
			f.deliver(j.signal)
		}
	}
}

func (f *Framer) deliver(sig ir.Signal) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("decode failed", "pulses", len(sig.Pulses), "panic", r)
		}
	}()
	f.sink(sig, ir.Decode(sig.Pulses))
}

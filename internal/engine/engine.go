// Package engine composes the receiver, framer, store and transmitter into
// the capture engine used by the HTTP API and the run loop.
//
// The engine owns the IR hardware roles. Capture and transmit never hold the
// hardware at the same time: a transmit while listening suspends the receiver,
// sends, then resumes it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/ir-remote/internal/capture"
	"github.com/sweeney/ir-remote/internal/clock"
	"github.com/sweeney/ir-remote/internal/gpio"
	"github.com/sweeney/ir-remote/internal/ir"
	"github.com/sweeney/ir-remote/internal/store"
	"github.com/sweeney/ir-remote/internal/tx"
)

// Defaults.
const (
	DefaultMatchWindow = 2 * time.Second
	DefaultSweepPause  = 2 * time.Second
	DefaultFeedSize    = 64
)

// Config configures an Engine. Zero values select defaults.
type Config struct {
	Capture   capture.Config
	MaxEvents int

	// MatchGeneric lets a Generic signal inherit the fingerprint of a
	// similar Generic event seen within MatchWindow. Off by default:
	// loose matching has mapped different buttons to one code.
	MatchGeneric bool
	MatchWindow  time.Duration

	Transmit   tx.Defaults
	// SweepPause separates troubleshooting settings. Zero means no pause.
	SweepPause time.Duration
	FeedSize   int
}

// Engine is the IR capture engine.
type Engine struct {
	cfg         Config
	clock       clock.Clock
	logger      *slog.Logger
	receiver    gpio.Receiver
	transmitter *tx.Transmitter
	store       *store.Store
	framer      *capture.Framer

	feed        chan ir.Event
	feedDropped atomic.Uint64

	// role is held while the hardware role changes or a transmit runs.
	role chan struct{}

	mu           sync.RWMutex
	listening    bool
	transmitting bool
	closed       bool
}

// New creates an engine. Capture is not started.
func New(cfg Config, clk clock.Clock, receiver gpio.Receiver, emitter gpio.Emitter, logger *slog.Logger) *Engine {
	if cfg.MatchWindow <= 0 {
		cfg.MatchWindow = DefaultMatchWindow
	}
	if cfg.SweepPause < 0 {
		cfg.SweepPause = 0
	}
	if cfg.FeedSize <= 0 {
		cfg.FeedSize = DefaultFeedSize
	}
	if cfg.Transmit == (tx.Defaults{}) {
		cfg.Transmit = tx.DefaultSettings()
	}

	e := &Engine{
		cfg:         cfg,
		clock:       clk,
		logger:      logger,
		receiver:    receiver,
		transmitter: tx.NewTransmitter(emitter, logger),
		store:       store.New(cfg.MaxEvents),
		feed:        make(chan ir.Event, cfg.FeedSize),
		role:        make(chan struct{}, 1),
	}
	e.framer = capture.New(cfg.Capture, clk, logger, e.sink)
	return e
}

// Events returns the live feed of stored events. Events are dropped when
// the consumer falls behind. The channel is closed by Close.
func (e *Engine) Events() <-chan ir.Event { return e.feed }

// StartCapture begins a capture session. It is a no-op if one is running.
// It waits for a transmit in progress to finish.
func (e *Engine) StartCapture(ctx context.Context) error {
	if err := e.lockRole(ctx); err != nil {
		return err
	}
	defer e.unlockRole()

	if e.isListening() {
		return nil
	}
	if err := e.receiver.Start(e.framer.OnEdge); err != nil {
		return fmt.Errorf("start capture on GPIO%d: %w", e.receiver.Pin(), err)
	}
	e.setListening(true)
	e.logger.Info("capture started", "pin", e.receiver.Pin())
	return nil
}

// StopCapture ends the capture session. The signal in progress is sealed
// and stored before it returns. It is a no-op if capture is not running.
func (e *Engine) StopCapture(ctx context.Context) error {
	if err := e.lockRole(ctx); err != nil {
		return err
	}
	defer e.unlockRole()

	if !e.isListening() {
		return nil
	}
	e.setListening(false)

	var errs []error
	if err := e.receiver.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop receiver: %w", err))
	}
	if err := e.framer.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	e.logger.Info("capture stopped", "stored", e.store.Len())
	return errors.Join(errs...)
}

// RecentEvents returns events captured within horizon, oldest first.
func (e *Engine) RecentEvents(horizon time.Duration) []ir.Event {
	return e.store.Recent(e.clock.Now(), horizon)
}

// ClearEvents drops the signal in progress, empties the store and resets
// the signal counter.
func (e *Engine) ClearEvents(ctx context.Context) error {
	if err := e.framer.Reset(ctx); err != nil {
		return fmt.Errorf("reset framer: %w", err)
	}
	e.store.Clear()
	e.logger.Info("events cleared")
	return nil
}

// Sync waits until every edge delivered so far has been framed and every
// sealed signal stored.
func (e *Engine) Sync(ctx context.Context) error {
	return e.framer.Sync(ctx)
}

// Transmit sends a code and returns a confirmation message. The request is
// validated before any hardware is touched. A capture session is suspended
// for the duration of the transmit.
func (e *Engine) Transmit(ctx context.Context, req tx.Request) (string, error) {
	plan, err := tx.NewPlan(req, e.cfg.Transmit)
	if err != nil {
		return "", err
	}

	if err := e.lockRole(ctx); err != nil {
		return "", err
	}
	defer e.unlockRole()

	return e.transmitLocked(ctx, plan)
}

func (e *Engine) transmitLocked(ctx context.Context, plan tx.Plan) (string, error) {
	resume := e.isListening()
	if resume {
		if err := e.receiver.Stop(); err != nil {
			e.logger.Warn("failed to suspend receiver", "err", err)
		}
		if err := e.framer.Flush(ctx); err != nil {
			e.logger.Warn("failed to flush before transmit", "err", err)
		}
	}

	e.setTransmitting(true)
	sendErr := e.transmitter.Send(ctx, plan)
	e.setTransmitting(false)

	if resume {
		if err := e.receiver.Start(e.framer.OnEdge); err != nil {
			e.logger.Error("failed to resume capture after transmit", "err", err)
			e.setListening(false)
		}
	}

	if sendErr != nil {
		e.logger.Error("transmit failed", "protocol", plan.Protocol, "code", plan.Code, "err", sendErr)
		return "", fmt.Errorf("transmit %s: %w", plan.Protocol, sendErr)
	}

	msg := plan.Describe()
	e.logger.Info("transmitted", "protocol", plan.Protocol, "code", plan.Code,
		"carrier_hz", plan.CarrierHz, "duty", plan.Duty, "frames", plan.Repeats,
		"duration", plan.Duration())
	return msg, nil
}

// Troubleshoot sends req once per sweep setting, pausing between settings,
// and reports each outcome. A request that fails validation returns an
// error without sending anything.
func (e *Engine) Troubleshoot(ctx context.Context, req tx.Request) ([]tx.Result, error) {
	if _, err := tx.NewPlan(req, e.cfg.Transmit); err != nil {
		return nil, err
	}

	var results []tx.Result
	for i, setting := range tx.Sweep() {
		if i > 0 {
			if err := e.pause(ctx, e.cfg.SweepPause); err != nil {
				return results, err
			}
		}

		msg, err := e.Transmit(ctx, setting.Apply(req))
		r := tx.Result{Setting: setting, Success: err == nil, Message: msg}
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			r.Message = err.Error()
		}
		e.logger.Info("troubleshoot step", "setting", setting.String(), "success", r.Success)
		results = append(results, r)
	}
	return results, nil
}

// Close stops capture and the framing goroutines and closes the event feed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	err := e.StopCapture(context.Background())
	e.framer.Close()
	close(e.feed)
	return err
}

// sink runs on the framer's decode goroutine.
func (e *Engine) sink(sig ir.Signal, analysis ir.Analysis) {
	if e.cfg.MatchGeneric && analysis.Kind == ir.KindGeneric {
		if prev, ok := e.store.FindSimilar(sig.CapturedAt, e.cfg.MatchWindow, analysis.Raw); ok {
			analysis.Fingerprint = prev.Analysis.Fingerprint
			analysis.Code = prev.Analysis.Fingerprint
		}
	}

	ev := e.store.Add(sig, analysis)
	e.logger.Info("signal captured",
		"number", ev.Signal.Number,
		"kind", analysis.Kind,
		"code", analysis.Code,
		"pulses", len(sig.Pulses))

	select {
	case e.feed <- ev:
	default:
		e.feedDropped.Add(1)
	}
}

func (e *Engine) pause(ctx context.Context, d time.Duration) error {
	done := make(chan struct{})
	t := e.clock.AfterFunc(d, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	}
}

func (e *Engine) lockRole(ctx context.Context) error {
	select {
	case e.role <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) unlockRole() { <-e.role }

func (e *Engine) isListening() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.listening
}

func (e *Engine) setListening(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listening = v
}

func (e *Engine) setTransmitting(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transmitting = v
}

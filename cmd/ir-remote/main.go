// Command ir-remote captures infrared remote-control signals, decodes them,
// publishes them to MQTT and serves an HTTP API for capture and transmit.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/ir-remote/internal/clock"
	"github.com/sweeney/ir-remote/internal/config"
	"github.com/sweeney/ir-remote/internal/engine"
	"github.com/sweeney/ir-remote/internal/gpio"
	"github.com/sweeney/ir-remote/internal/ir"
	"github.com/sweeney/ir-remote/internal/journal"
	"github.com/sweeney/ir-remote/internal/mqtt"
	"github.com/sweeney/ir-remote/internal/status"
	"github.com/sweeney/ir-remote/internal/web"
)

// refreshInterval is how often the status tracker picks up engine state.
const refreshInterval = time.Second

func main() {
	fs := pflag.NewFlagSet("ir-remote", pflag.ExitOnError)
	configPath := fs.String("config", "", "Config file (default $"+config.EnvConfig+")")
	printJournal := fs.Bool("print-journal", false, "Print the event journal and exit")
	config.AddFlags(fs)
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyFlags(fs); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config:\n%v\n", err)
		os.Exit(2)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *printJournal {
		if err := dumpJournal(os.Stdout, cfg.Journal.Path); err != nil {
			logger.Error("print journal", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	clk := clock.Real()

	receiver := gpio.NewRealReceiver(cfg.GPIO.Chip, cfg.GPIO.RxPin, cfg.GPIO.ActiveHigh)
	emitter := gpio.NewPigpioEmitter(cfg.GPIO.Pigpiod, cfg.GPIO.TxPin, clk)
	eng := engine.New(cfg.Engine(), clk, receiver, emitter, logger.With("component", "engine"))
	defer eng.Close()

	var journalWriter eventJournal
	if cfg.Journal.Path != "" {
		w, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer w.Close()
		journalWriter = w
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(clk, status.Config{
		RxPin:       cfg.GPIO.RxPin,
		TxPin:       cfg.GPIO.TxPin,
		Pigpiod:     cfg.GPIO.Pigpiod,
		SilenceMs:   int64(cfg.Capture.SilenceMs),
		DebounceUs:  int64(cfg.Capture.DebounceUs),
		MaxEvents:   cfg.Capture.MaxEvents,
		CarrierHz:   cfg.Transmit.CarrierHz,
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.StartCapture(ctx); err != nil {
		logger.Warn("capture not started; retry with POST /capture/start", "err", err)
	}
	tracker.Update(eng.Status())

	var publisher *mqtt.RealPublisher
	if cfg.MQTT.Broker != "" {
		publisher = mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, logger.With("component", "mqtt"))
		defer publisher.Close()

		// Publish startup event with full status snapshot
		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      mqtt.EventStartup,
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			logger.Warn("failed to publish startup event", "err", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	refresh := clk.NewTicker(refreshInterval)
	defer refresh.Stop()

	l := &loop{
		source:  eng,
		journal: journalWriter,
		tracker: tracker,
		refresh: refresh.C,
		sig:     sigCh,
		logger:  logger,
	}
	if publisher != nil {
		l.publisher = publisher
		l.mqttStatus = publisher
	}
	if cfg.MQTT.Heartbeat > 0 {
		hb := clk.NewTicker(cfg.MQTT.Heartbeat)
		defer hb.Stop()
		l.heartbeat = hb.C
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, eng, tracker, logger.With("component", "http"))
		g.Go(func() error {
			logger.Info("http server listening", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return l.run(gctx)
	})

	logger.Info("started",
		"rx_pin", cfg.GPIO.RxPin,
		"tx_pin", cfg.GPIO.TxPin,
		"broker", cfg.MQTT.Broker,
		"heartbeat", cfg.MQTT.Heartbeat,
		"journal", cfg.Journal.Path)

	return g.Wait()
}

// eventSource is the part of the engine the run loop consumes.
type eventSource interface {
	Events() <-chan ir.Event
	Status() engine.Status
}

type eventJournal interface {
	Append(ir.Event) error
}

// loop forwards captured events to MQTT and the journal, keeps the status
// tracker fresh, sends heartbeats and announces shutdown.
type loop struct {
	source     eventSource
	publisher  mqtt.Publisher        // nil when MQTT is disabled
	mqttStatus mqtt.ConnectionStatus // nil when MQTT is disabled
	journal    eventJournal          // nil when the journal is disabled
	tracker    *status.Tracker
	refresh    <-chan time.Time
	heartbeat  <-chan time.Time // nil disables heartbeats
	sig        <-chan os.Signal
	logger     *slog.Logger
}

func (l *loop) run(ctx context.Context) error {
	events := l.source.Events()
	for {
		select {
		case s := <-l.sig:
			l.logger.Info("shutting down", "signal", s)
			l.shutdown(signalName(s))
			return nil

		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return errors.New("event feed closed")
			}
			l.handle(ev)

		case <-l.heartbeat:
			l.sendHeartbeat()

		case <-l.refresh:
			l.updateTracker()
		}
	}
}

func (l *loop) handle(ev ir.Event) {
	a := ev.Analysis
	l.logger.Info("event",
		"number", ev.Signal.Number,
		"kind", a.Kind,
		"code", a.Code,
		"pulses", len(ev.Signal.Pulses))

	if l.journal != nil {
		if err := l.journal.Append(ev); err != nil {
			l.logger.Error("journal append failed", "err", err)
		}
	}
	if l.publisher != nil {
		if err := l.publisher.Publish(ev); err != nil {
			// Don't crash on publish failure
			l.logger.Warn("publish error", "number", ev.Signal.Number, "err", err)
		}
	}
	l.updateTracker()
}

func (l *loop) updateTracker() {
	l.tracker.Update(l.source.Status())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) sendHeartbeat() {
	// Refresh network info for heartbeat
	if net := readNetworkInfo(); net != nil {
		l.tracker.SetNetwork(net)
	}
	l.updateTracker()
	snap := l.tracker.Snapshot()
	st := snap.Engine
	l.logger.Info("heartbeat",
		"uptime", snap.Uptime().Truncate(time.Second),
		"listening", st.Listening,
		"total", st.TotalEvents,
		"last_minute", st.EventsLastMinute)

	if l.publisher == nil {
		return
	}
	hb := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventHeartbeat,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventHeartbeat, ""),
	}
	if err := l.publisher.PublishSystem(hb); err != nil {
		l.logger.Warn("heartbeat publish error", "err", err)
	}
}

func (l *loop) shutdown(reason string) {
	if l.publisher == nil {
		return
	}
	l.updateTracker()
	snap := l.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventShutdown,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventShutdown, reason),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.logger.Warn("failed to publish shutdown event", "err", err)
	} else {
		l.logger.Info("published shutdown event")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// dumpJournal writes one line per journalled event.
func dumpJournal(w io.Writer, path string) error {
	if path == "" {
		return errors.New("no journal configured (set journal.path or --journal)")
	}
	return journal.ReadFile(path, func(ev ir.Event) error {
		_, err := fmt.Fprintln(w, journalLine(ev))
		return err
	})
}

func journalLine(ev ir.Event) string {
	a := ev.Analysis
	line := fmt.Sprintf("%s #%d %s", ev.Signal.CapturedAt.UTC().Format(time.RFC3339Nano), ev.Signal.Number, a.Kind)
	if a.Code != "" {
		line += " " + a.Code
	}
	if a.Kind == ir.KindNEC && !a.Verified {
		line += " (unverified)"
	}
	return line + fmt.Sprintf(" pulses=%d", len(ev.Signal.Pulses))
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// Package config provides configuration loading for the ir-remote daemon.
//
// Configuration is loaded from a single YAML file specified by:
//   - the --config flag, or
//   - the IR_REMOTE_CONFIG environment variable.
//
// There is no automatic discovery. Without a file the defaults apply.
// Command-line flags that were set explicitly override the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/ir-remote/internal/capture"
	"github.com/sweeney/ir-remote/internal/engine"
	"github.com/sweeney/ir-remote/internal/gpio"
	"github.com/sweeney/ir-remote/internal/pigpio"
	"github.com/sweeney/ir-remote/internal/tx"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "IR_REMOTE_CONFIG"

// Config is the daemon configuration.
type Config struct {
	GPIO     GPIOConfig     `yaml:"gpio"`
	Capture  CaptureConfig  `yaml:"capture"`
	Transmit TransmitConfig `yaml:"transmit"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
	Journal  JournalConfig  `yaml:"journal"`
	Log      LogConfig      `yaml:"log"`
}

// GPIOConfig selects the IR hardware.
type GPIOConfig struct {
	// Chip is the GPIO character device used for the receiver.
	Chip string `yaml:"chip"`

	// RxPin and TxPin are BCM pin numbers.
	RxPin int `yaml:"rx_pin"`
	TxPin int `yaml:"tx_pin"`

	// ActiveHigh inverts the receiver output. Most demodulating
	// receivers are active-low.
	ActiveHigh bool `yaml:"active_high"`

	// Pigpiod is the host:port of the GPIO daemon driving the emitter.
	Pigpiod string `yaml:"pigpiod"`
}

// CaptureConfig controls framing and the event store.
type CaptureConfig struct {
	DebounceUs   int  `yaml:"debounce_us"`
	SilenceMs    int  `yaml:"silence_ms"`
	MaxEvents    int  `yaml:"max_events"`
	MaxPulses    int  `yaml:"max_pulses"`
	MatchGeneric bool `yaml:"match_generic"`
}

// TransmitConfig holds transmit defaults.
type TransmitConfig struct {
	CarrierHz int `yaml:"carrier_hz"`
	Duty      int `yaml:"duty"`
	Repeats   int `yaml:"repeats"`
	GapMs     int `yaml:"gap_ms"`
}

// MQTTConfig configures publishing. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTPConfig configures the API server. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// JournalConfig configures the event journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		GPIO: GPIOConfig{
			Chip:    gpio.DefaultChip,
			RxPin:   gpio.PinRX,
			TxPin:   gpio.PinTX,
			Pigpiod: pigpio.DefaultAddr,
		},
		Capture: CaptureConfig{
			DebounceUs: int(capture.DefaultDebounce / time.Microsecond),
			SilenceMs:  int(capture.DefaultSilence / time.Millisecond),
			MaxEvents:  100,
			MaxPulses:  capture.DefaultMaxPulses,
		},
		Transmit: TransmitConfig{
			CarrierHz: tx.DefaultCarrierHz,
			Duty:      tx.DefaultDuty,
			Repeats:   tx.DefaultRepeats,
			GapMs:     int(tx.DefaultGap / time.Millisecond),
		},
		MQTT: MQTTConfig{
			Broker:    "tcp://192.168.1.200:1883",
			ClientID:  "ir-remote",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{Addr: ":80"},
		Log:  LogConfig{Level: "info"},
	}
}

// Load returns the configuration from path, or from IR_REMOTE_CONFIG when
// path is empty. With neither set it returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path. Values missing
// from the file keep their defaults. Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.GPIO.Chip == "" {
		errs = append(errs, errors.New("gpio.chip is required"))
	}
	if !validPin(c.GPIO.RxPin) {
		errs = append(errs, fmt.Errorf("gpio.rx_pin %d is not a BCM pin (0-27)", c.GPIO.RxPin))
	}
	if !validPin(c.GPIO.TxPin) {
		errs = append(errs, fmt.Errorf("gpio.tx_pin %d is not a BCM pin (0-27)", c.GPIO.TxPin))
	}
	if c.GPIO.RxPin == c.GPIO.TxPin {
		errs = append(errs, fmt.Errorf("gpio.rx_pin and gpio.tx_pin must differ (both %d)", c.GPIO.RxPin))
	}
	if c.GPIO.Pigpiod == "" {
		errs = append(errs, errors.New("gpio.pigpiod is required"))
	}

	if c.Capture.DebounceUs < 1 || c.Capture.DebounceUs > 1000 {
		errs = append(errs, fmt.Errorf("capture.debounce_us %d outside 1-1000", c.Capture.DebounceUs))
	}
	if c.Capture.SilenceMs < 10 || c.Capture.SilenceMs > 5000 {
		errs = append(errs, fmt.Errorf("capture.silence_ms %d outside 10-5000", c.Capture.SilenceMs))
	}
	if c.Capture.MaxEvents < 1 {
		errs = append(errs, fmt.Errorf("capture.max_events %d must be positive", c.Capture.MaxEvents))
	}
	if c.Capture.MaxPulses < 4 {
		errs = append(errs, fmt.Errorf("capture.max_pulses %d must be at least 4", c.Capture.MaxPulses))
	}

	if c.Transmit.CarrierHz < tx.MinCarrierHz || c.Transmit.CarrierHz > tx.MaxCarrierHz {
		errs = append(errs, fmt.Errorf("transmit.carrier_hz %d outside %d-%d",
			c.Transmit.CarrierHz, tx.MinCarrierHz, tx.MaxCarrierHz))
	}
	if c.Transmit.Duty < 1 || c.Transmit.Duty > 255 {
		errs = append(errs, fmt.Errorf("transmit.duty %d outside 1-255", c.Transmit.Duty))
	}
	if c.Transmit.Repeats < 1 || c.Transmit.Repeats > tx.MaxRepeats {
		errs = append(errs, fmt.Errorf("transmit.repeats %d outside 1-%d", c.Transmit.Repeats, tx.MaxRepeats))
	}
	if c.Transmit.GapMs < 0 || c.Transmit.GapMs > 1000 {
		errs = append(errs, fmt.Errorf("transmit.gap_ms %d outside 0-1000", c.Transmit.GapMs))
	}

	if c.MQTT.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("mqtt.heartbeat %v must not be negative", c.MQTT.Heartbeat))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Engine returns the engine configuration.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		Capture: capture.Config{
			Debounce:  time.Duration(c.Capture.DebounceUs) * time.Microsecond,
			Silence:   time.Duration(c.Capture.SilenceMs) * time.Millisecond,
			MaxPulses: c.Capture.MaxPulses,
		},
		MaxEvents:    c.Capture.MaxEvents,
		MatchGeneric: c.Capture.MatchGeneric,
		Transmit: tx.Defaults{
			CarrierHz: c.Transmit.CarrierHz,
			Duty:      c.Transmit.Duty,
			Repeats:   c.Transmit.Repeats,
			Gap:       time.Duration(c.Transmit.GapMs) * time.Millisecond,
		},
		SweepPause: engine.DefaultSweepPause,
	}
}

// ParseLevel converts a level name (debug, info, warn, error) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log.level %q: want debug, info, warn or error", s)
	}
	return level, nil
}

func validPin(pin int) bool {
	return pin >= 0 && pin <= 27
}

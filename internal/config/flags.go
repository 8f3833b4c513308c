package config

import (
	"time"

	"github.com/spf13/pflag"
)

// AddFlags registers the command-line overrides on fs, with defaults taken
// from Default.
func AddFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("chip", d.GPIO.Chip, "GPIO character device for the receiver")
	fs.Int("rx-pin", d.GPIO.RxPin, "BCM pin of the IR receiver")
	fs.Int("tx-pin", d.GPIO.TxPin, "BCM pin of the IR LED")
	fs.Bool("active-high", d.GPIO.ActiveHigh, "Receiver output is active-high")
	fs.String("pigpiod", d.GPIO.Pigpiod, "pigpiod address (host:port)")
	fs.Int("silence-ms", d.Capture.SilenceMs, "Silence that ends a signal, in milliseconds")
	fs.Int("max-events", d.Capture.MaxEvents, "Events kept in memory")
	fs.Bool("match-generic", d.Capture.MatchGeneric, "Reuse fingerprints of similar unknown signals")
	fs.String("broker", d.MQTT.Broker, "MQTT broker address (empty to disable)")
	fs.Duration("heartbeat", d.MQTT.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.String("http", d.HTTP.Addr, "HTTP API address (empty to disable)")
	fs.String("journal", d.Journal.Path, "Event journal file (empty to disable)")
	fs.String("log-level", d.Log.Level, "Log level: debug, info, warn, error")
}

// ApplyFlags copies every flag set explicitly on the command line into c.
// Flags left at their defaults do not override the config file.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetInt(name)
		}
	}
	flag := func(name string, dst *bool) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetBool(name)
		}
	}
	dur := func(name string, dst *time.Duration) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetDuration(name)
		}
	}

	str("chip", &c.GPIO.Chip)
	num("rx-pin", &c.GPIO.RxPin)
	num("tx-pin", &c.GPIO.TxPin)
	flag("active-high", &c.GPIO.ActiveHigh)
	str("pigpiod", &c.GPIO.Pigpiod)
	num("silence-ms", &c.Capture.SilenceMs)
	num("max-events", &c.Capture.MaxEvents)
	flag("match-generic", &c.Capture.MatchGeneric)
	str("broker", &c.MQTT.Broker)
	dur("heartbeat", &c.MQTT.Heartbeat)
	str("http", &c.HTTP.Addr)
	str("journal", &c.Journal.Path)
	str("log-level", &c.Log.Level)
	return err
}

package ir

import "errors"

var (
	// ErrHardwareUnavailable means there is no GPIO backend on this host.
	// It is fatal for capture and is not retried.
	ErrHardwareUnavailable = errors.New("ir hardware unavailable")

	// ErrDaemonUnreachable means the pigpio daemon is not running.
	ErrDaemonUnreachable = errors.New("pigpiod unreachable (start it with: sudo systemctl start pigpiod)")

	// ErrUnsupportedProtocol is returned when transmitting a protocol that
	// has no encoder and no raw timing attached.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrInvalidCode is returned for a malformed code or raw timing.
	ErrInvalidCode = errors.New("invalid code")

	// ErrTxHardwareFault is returned when the emitter fails mid-frame. The
	// carrier has been forced off by the time it is returned.
	ErrTxHardwareFault = errors.New("transmit hardware fault")
)

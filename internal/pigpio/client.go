// Package pigpio is a minimal client for the pigpio daemon socket interface.
//
// Each request is four little-endian uint32 words (command, p1, p2, p3) and
// each response echoes the first three words followed by an int32 result.
// A negative result is a pigpio error code.
package pigpio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sweeney/ir-remote/internal/ir"
)

// DefaultAddr is where pigpiod listens by default.
const DefaultAddr = "localhost:8888"

// Command numbers from the pigpio socket interface.
const (
	cmdModes = 0
	cmdWrite = 4
	cmdPWM   = 5
	cmdPFS   = 7
)

// Mode is a GPIO pin mode.
type Mode uint32

const (
	Input  Mode = 0
	Output Mode = 1
)

// Error is a negative result returned by the daemon.
type Error struct {
	Cmd  uint32
	Code int32
}

func (e *Error) Error() string {
	return fmt.Sprintf("pigpio: command %d failed with code %d", e.Cmd, e.Code)
}

// Client issues commands over one daemon connection. It is safe for
// concurrent use; commands are serialised.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to the daemon at addr. A connection failure wraps
// ir.ErrDaemonUnreachable.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial pigpiod at %s: %w: %w", addr, ir.ErrDaemonUnreachable, err)
	}
	return NewClient(conn, timeout), nil
}

// NewClient wraps an established connection. A positive timeout bounds
// each command round trip.
func NewClient(conn net.Conn, timeout time.Duration) *Client {
	return &Client{conn: conn, timeout: timeout}
}

// SetMode sets the mode of a GPIO.
func (c *Client) SetMode(gpio int, mode Mode) error {
	_, err := c.command(cmdModes, uint32(gpio), uint32(mode))
	return err
}

// Write sets a GPIO output level.
func (c *Client) Write(gpio int, high bool) error {
	var level uint32
	if high {
		level = 1
	}
	_, err := c.command(cmdWrite, uint32(gpio), level)
	return err
}

// SetPWMFrequency sets the PWM frequency of a GPIO and returns the
// frequency the daemon actually selected.
func (c *Client) SetPWMFrequency(gpio, hz int) (int, error) {
	res, err := c.command(cmdPFS, uint32(gpio), uint32(hz))
	return int(res), err
}

// SetPWMDutycycle sets the PWM duty cycle of a GPIO in the range 0-255.
func (c *Client) SetPWMDutycycle(gpio int, duty uint8) error {
	_, err := c.command(cmdPWM, uint32(gpio), uint32(duty))
	return err
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) command(cmd, p1, p2 uint32) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, fmt.Errorf("set deadline: %w", err)
		}
	}

	var req [16]byte
	binary.LittleEndian.PutUint32(req[0:], cmd)
	binary.LittleEndian.PutUint32(req[4:], p1)
	binary.LittleEndian.PutUint32(req[8:], p2)
	if _, err := c.conn.Write(req[:]); err != nil {
		return 0, fmt.Errorf("pigpio command %d: %w: %w", cmd, ir.ErrDaemonUnreachable, err)
	}

	var resp [16]byte
	if _, err := io.ReadFull(c.conn, resp[:]); err != nil {
		return 0, fmt.Errorf("pigpio command %d response: %w: %w", cmd, ir.ErrDaemonUnreachable, err)
	}

	res := int32(binary.LittleEndian.Uint32(resp[12:]))
	if res < 0 {
		return res, &Error{Cmd: cmd, Code: res}
	}
	return res, nil
}

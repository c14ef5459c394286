package serial

import (
	"fmt"
	"time"

	bugst "go.bug.st/serial"
)

// Port is the serial peripheral as the bridge sees it.
//
// Read must return promptly when no data is available (n == 0, nil
// error) so the bridge cycle is never stalled by an idle peripheral;
// Write is assumed to accept bytes promptly. Implementations other than
// TTY exist only in tests.
type Port interface {
	// Read fills p with currently available bytes. A timed-out read with
	// no data returns (0, nil).
	Read(p []byte) (int, error)

	// Write sends p to the peripheral in order, without buffering.
	Write(p []byte) (int, error)

	// Close releases the port.
	Close() error
}

// Config contains the settings needed to open a TTY.
type Config struct {
	// Port is the device path (e.g. /dev/ttyUSB0).
	Port string

	// Baud is the line rate; must match the motion firmware.
	Baud int

	// ReadTimeout bounds a single Read call. Values at or below zero
	// fall back to 20ms; a fully blocking read would stall the bridge
	// cycle indefinitely.
	ReadTimeout time.Duration
}

// TTY is a Port backed by a physical serial device.
type TTY struct {
	port bugst.Port
	path string
}

// Open opens the serial device with 8N1 framing at the configured baud
// rate and applies the read timeout.
//
// Parameters:
//   - cfg: Port path, baud rate and read timeout
//
// Returns:
//   - *TTY: Open port ready for Read/Write
//   - error: If the device cannot be opened or configured
func Open(cfg Config) (*TTY, error) {
	mode := &bugst.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}

	port, err := bugst.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", cfg.Port, err)
	}

	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = 20 * time.Millisecond
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("setting read timeout on %s: %w", cfg.Port, err)
	}

	return &TTY{port: port, path: cfg.Port}, nil
}

// Read implements Port. A timeout with no data yields (0, nil).
func (t *TTY) Read(p []byte) (int, error) {
	return t.port.Read(p)
}

// Write implements Port.
func (t *TTY) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

// Close implements Port.
func (t *TTY) Close() error {
	if t.port == nil {
		return nil
	}
	return t.port.Close()
}

// Path returns the device path the port was opened with.
func (t *TTY) Path() string {
	return t.path
}

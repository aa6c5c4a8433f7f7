// Package bridge owns the single serial connection to the hardware device
// and relays text commands to it.
//
// Request handlers never see the port itself; they call Send, which is safe
// for concurrent use. Writes are whole-command units and never interleave.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/teslashibe/go-peoplecam/internal/log"
)

// DefaultBaudRate is the device link speed.
const DefaultBaudRate = 9600

// ExitCommand closes the session after it is transmitted (case-insensitive).
const ExitCommand = "exit"

// Sentinel errors for bridge operations.
var (
	// ErrAlreadyOpen is returned when opening a second session.
	ErrAlreadyOpen = errors.New("bridge: session already open")

	// ErrOpen is returned when the serial port cannot be opened.
	ErrOpen = errors.New("bridge: failed to open serial port")

	// ErrWrite is returned when the port rejects a command.
	ErrWrite = errors.New("bridge: serial write failed")

	// ErrShortWrite is returned when the port accepts only part of a command.
	ErrShortWrite = errors.New("bridge: short write")
)

// Port is the byte sink the bridge writes to. go.bug.st/serial ports
// satisfy it.
type Port interface {
	io.Writer
	io.Closer
}

// Opener opens a port by name at the given baud rate.
type Opener func(name string, baud int) (Port, error)

// OpenSerial opens a real serial port. It's a variable so tests can
// swap it out.
var OpenSerial Opener = func(name string, baud int) (Port, error) {
	return serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// SerialSession describes the bridge's connection.
type SerialSession struct {
	PortName string `json:"port_name"`
	BaudRate int    `json:"baud_rate"`
	IsOpen   bool   `json:"is_open"`
}

// Outcome is what Send did with a command.
type Outcome int

const (
	// NoOp means nothing was transmitted: no session, a closed session,
	// or an empty command.
	NoOp Outcome = iota
	// Sent means the whole command was written.
	Sent
	// Failed means the write was attempted and the port returned an error.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case NoOp:
		return "noop"
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithOpener replaces the port opener.
func WithOpener(open Opener) Option {
	return func(b *Bridge) { b.open = open }
}

// WithLogger sets the bridge logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// Bridge serializes all access to one serial session.
//
// A failed write is logged and returned but leaves the session open; the
// bridge never retries and never assumes the link is gone. Only Close or
// an "exit" command end the session, and once ended it is never reopened
// implicitly.
type Bridge struct {
	mu      sync.Mutex
	open    Opener
	port    Port
	session SerialSession
	logger  *zap.Logger
}

// New creates a bridge with no session.
func New(opts ...Option) *Bridge {
	b := &Bridge{open: OpenSerial}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.Named("bridge")
	}
	return b
}

// Open starts the session on portName.
func (b *Bridge) Open(portName string, baud int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session.IsOpen {
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, b.session.PortName)
	}

	port, err := b.open(portName, baud)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrOpen, portName, err)
	}

	b.port = port
	b.session = SerialSession{PortName: portName, BaudRate: baud, IsOpen: true}
	b.logger.Info("serial session opened", zap.String("port", portName), zap.Int("baud", baud))
	return nil
}

// Send transmits command as raw bytes if a session is open. Without an
// open session it does nothing and returns NoOp with a nil error.
func (b *Bridge) Send(command string) (Outcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.port == nil || !b.session.IsOpen || command == "" {
		b.logger.Debug("command dropped", zap.String("command", command))
		return NoOp, nil
	}

	outcome := Sent
	var err error

	n, werr := b.port.Write([]byte(command))
	if werr == nil && n != len(command) {
		werr = fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(command))
	}
	if werr != nil {
		outcome = Failed
		err = fmt.Errorf("%w: %w", ErrWrite, werr)
		b.logger.Error("serial write failed",
			zap.String("port", b.session.PortName),
			zap.String("command", command),
			zap.Error(werr))
	} else {
		b.logger.Debug("command sent", zap.String("command", command))
	}

	if strings.EqualFold(command, ExitCommand) {
		err = multierr.Append(err, b.closeLocked())
	}

	return outcome, err
}

// Close ends the session. Later calls to Send are no-ops.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Bridge) closeLocked() error {
	if b.port == nil {
		return nil
	}

	err := b.port.Close()
	b.port = nil
	b.session.IsOpen = false
	b.logger.Info("serial session closed", zap.String("port", b.session.PortName))

	if err != nil {
		return fmt.Errorf("bridge: close %s: %w", b.session.PortName, err)
	}
	return nil
}

// Session returns a snapshot of the session state.
func (b *Bridge) Session() SerialSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

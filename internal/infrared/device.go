// Package infrared drives a UART IR transceiver module: codes written to the
// port are transmitted, codes the module decodes arrive on the same port and
// are kept in a small mailbox until a request reads them.
package infrared

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/effectnode/internal/effect"
	"github.com/smazurov/effectnode/internal/logging"
	"github.com/smazurov/effectnode/internal/mailbox"
	"github.com/smazurov/effectnode/internal/uart"
)

// DefaultCapacity keeps only the newest received code.
const DefaultCapacity = 1

// ErrEmptyCode is returned by Send for an empty code.
var ErrEmptyCode = errors.New("ir code is empty")

// Options configures a Device.
type Options struct {
	// Name identifies the device in logs and events.
	Name string

	// Port is the opened serial port. A nil port yields a device that
	// reports NOT_INITIALIZED for every operation touching hardware.
	Port uart.SerialPort

	// Capacity of the received-code mailbox (default DefaultCapacity).
	Capacity int

	ReadTimeout time.Duration
	BufferSize  int

	// OnReceived is called for every received code, outside any lock.
	OnReceived func(code string, evicted bool)

	// OnStopped is called when the listener dies on a read error.
	OnStopped func(err error)

	Logger *slog.Logger
}

// Status describes the device.
type Status struct {
	Name        string      `json:"name"`
	Initialized bool        `json:"initialized"`
	Pending     int         `json:"pending"`
	Capacity    int         `json:"capacity"`
	Listener    uart.Status `json:"listener"`
}

// Device is an IR transceiver on a serial port.
type Device struct {
	name     string
	port     uart.SerialPort
	mailbox  *mailbox.Mailbox[string]
	listener *uart.Listener
	logger   *slog.Logger

	writeMu sync.Mutex
}

// New creates a device. The listener is not started.
func New(opts Options) (*Device, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("infrared")
	}
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	d := &Device{
		name:    opts.Name,
		port:    opts.Port,
		mailbox: mailbox.New[string](capacity),
		logger:  logger.With("device", opts.Name),
	}
	if opts.OnReceived != nil {
		d.mailbox.OnPush(opts.OnReceived)
	}

	if opts.Port == nil {
		d.logger.Warn("No serial port, infrared device disabled")
		return d, nil
	}

	listener, err := uart.NewListener(uart.Options{
		Name:        opts.Name,
		Port:        opts.Port,
		Mailbox:     d.mailbox,
		ReadTimeout: opts.ReadTimeout,
		BufferSize:  opts.BufferSize,
		OnStopped:   opts.OnStopped,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create infrared listener: %w", err)
	}
	d.listener = listener
	return d, nil
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.name
}

// Start launches the receive loop.
func (d *Device) Start() error {
	if d.listener == nil {
		return d.notInitialized("start")
	}
	return d.listener.Start()
}

// Restart starts the receive loop again after a stream error.
// It is a no-op while the loop is running.
func (d *Device) Restart() error {
	if d.listener == nil {
		return d.notInitialized("restart")
	}
	if d.listener.Status().Dead {
		d.logger.Info("Restarting dead listener")
	}
	return d.listener.Start()
}

// Send transmits code as raw bytes.
func (d *Device) Send(code string) error {
	if d.port == nil {
		return d.notInitialized("send")
	}
	if code == "" {
		return ErrEmptyCode
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	n, err := d.port.Write([]byte(code))
	if err != nil {
		return fmt.Errorf("failed to send ir code: %w", err)
	}
	if n != len(code) {
		return fmt.Errorf("short write sending ir code: %d of %d bytes", n, len(code))
	}
	d.logger.Info("Sent IR code", "code", code)
	return nil
}

// Latest returns the newest received code.
func (d *Device) Latest() (string, bool) {
	return d.mailbox.Latest()
}

// Received returns every pending code, oldest first, without consuming them.
func (d *Device) Received() []string {
	return d.mailbox.DrainAll()
}

// Clear discards pending codes.
func (d *Device) Clear() {
	d.mailbox.Clear()
}

// Status returns the device state.
func (d *Device) Status() Status {
	s := Status{
		Name:        d.name,
		Initialized: d.port != nil,
		Pending:     d.mailbox.Len(),
		Capacity:    d.mailbox.Cap(),
	}
	if d.listener != nil {
		s.Listener = d.listener.Status()
	}
	return s
}

// Close stops the listener and closes the port.
func (d *Device) Close() error {
	if d.port == nil {
		return nil
	}
	d.listener.Stop()
	return d.port.Close()
}

func (d *Device) notInitialized(op string) error {
	return effect.NewError(effect.ErrCodeNotInitialized, d.name, op+": serial port not open", nil)
}

// Package uart reads asynchronously arriving serial data into a mailbox.
package uart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/effectnode/internal/logging"
	"github.com/smazurov/effectnode/internal/mailbox"
)

// Listener defaults.
const (
	DefaultReadTimeout = time.Second
	DefaultBufferSize  = 2048
)

// ErrStream marks a read failure that ended a listener.
var ErrStream = errors.New("uart stream error")

// StreamError wraps the port error that ended a listener.
type StreamError struct {
	Port  string
	Cause error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStream, e.Port, e.Cause)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrStream) match.
func (e *StreamError) Is(target error) bool {
	return target == ErrStream
}

// Port is the byte stream a listener reads. A read that times out returns
// 0 bytes and a nil error, as go.bug.st/serial ports do.
type Port interface {
	io.Reader
	SetReadTimeout(t time.Duration) error
}

// Status describes a listener.
type Status struct {
	Running   bool   `json:"running"`
	Dead      bool   `json:"dead"`
	LastError string `json:"last_error,omitempty"`
	Received  uint64 `json:"received"`
	Dropped   uint64 `json:"dropped"`
}

// Options configures a new Listener.
type Options struct {
	// Name identifies the port in logs (e.g. the device path).
	Name string

	// Port to read from (required).
	Port Port

	// Mailbox receives normalised payloads (required).
	Mailbox *mailbox.Mailbox[string]

	// ReadTimeout bounds each read and therefore Stop latency.
	ReadTimeout time.Duration

	// BufferSize is the read buffer size in bytes.
	BufferSize int

	// OnStopped is called when a stream error ends the loop (optional).
	OnStopped func(err error)

	// Logger for listener operations. If nil, uses the "uart" module logger.
	Logger *slog.Logger
}

// Listener is the producer side of a mailbox: one goroutine doing bounded
// reads and pushing every non-empty payload.
//
// A stream error ends the loop and marks the listener dead. It does not
// restart itself; Start must be called again.
type Listener struct {
	name        string
	port        Port
	mailbox     *mailbox.Mailbox[string]
	readTimeout time.Duration
	bufferSize  int
	onStopped   func(error)
	logger      *slog.Logger

	run      atomic.Bool
	received atomic.Uint64
	dropped  atomic.Uint64

	mu      sync.Mutex
	done    chan struct{}
	dead    bool
	lastErr error
}

// NewListener creates a stopped listener.
func NewListener(opts Options) (*Listener, error) {
	if opts.Port == nil {
		return nil, fmt.Errorf("listener %q: port is required", opts.Name)
	}
	if opts.Mailbox == nil {
		return nil, fmt.Errorf("listener %q: mailbox is required", opts.Name)
	}

	timeout := opts.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("uart")
	}

	return &Listener{
		name:        opts.Name,
		port:        opts.Port,
		mailbox:     opts.Mailbox,
		readTimeout: timeout,
		bufferSize:  size,
		onStopped:   opts.OnStopped,
		logger:      logger.With("port", opts.Name),
	}, nil
}

// Start launches the read loop. Starting a running listener is a no-op.
// Starting a dead listener clears its error and reads again.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done != nil {
		select {
		case <-l.done:
		default:
			return nil
		}
	}

	if err := l.port.SetReadTimeout(l.readTimeout); err != nil {
		return fmt.Errorf("failed to set read timeout on %s: %w", l.name, err)
	}

	l.dead = false
	l.lastErr = nil
	l.done = make(chan struct{})
	l.run.Store(true)

	go l.loop(l.done)

	l.logger.Info("Listener started", "read_timeout", l.readTimeout)
	return nil
}

// Stop clears the governing flag and waits for the loop to notice, which
// takes at most one read timeout.
func (l *Listener) Stop() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()

	if done == nil {
		return
	}
	l.run.Store(false)

	select {
	case <-done:
	case <-time.After(2 * l.readTimeout):
		l.logger.Warn("Listener did not stop within two read timeouts")
	}
}

// Status returns the listener's current state.
func (l *Listener) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Status{
		Dead:     l.dead,
		Received: l.received.Load(),
		Dropped:  l.dropped.Load(),
	}
	if l.done != nil {
		select {
		case <-l.done:
		default:
			s.Running = true
		}
	}
	if l.lastErr != nil {
		s.LastError = l.lastErr.Error()
	}
	return s
}

func (l *Listener) loop(done chan struct{}) {
	defer close(done)

	buf := make([]byte, l.bufferSize)
	for l.run.Load() {
		n, err := l.port.Read(buf)
		if n > 0 {
			l.handle(buf[:n])
		}
		if err == nil || isTimeout(err) {
			continue
		}
		if !l.run.Load() {
			// Port closed underneath a requested stop
			return
		}

		streamErr := &StreamError{Port: l.name, Cause: err}
		l.mu.Lock()
		l.dead = true
		l.lastErr = streamErr
		l.mu.Unlock()
		l.run.Store(false)

		l.logger.Error("Listener stopped on read error", "error", err)
		if l.onStopped != nil {
			l.onStopped(streamErr)
		}
		return
	}
	l.logger.Info("Listener stopped")
}

func (l *Listener) handle(raw []byte) {
	payload, ok := Normalize(raw)
	if !ok {
		l.dropped.Add(1)
		return
	}
	l.received.Add(1)
	l.mailbox.Push(payload)
	l.logger.Debug("Received data", "payload", payload)
}

// Normalize strips trailing CR and LF bytes. Payloads that are empty
// afterwards are rejected.
func Normalize(raw []byte) (string, bool) {
	trimmed := bytes.TrimRight(raw, "\r\n")
	if len(trimmed) == 0 {
		return "", false
	}
	return string(trimmed), true
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

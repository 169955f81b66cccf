package infrared

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/effectnode/internal/effect"
	"github.com/smazurov/effectnode/internal/uart"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// loopPort is a serial port whose writes are recorded and whose reads
// serve queued payloads, timing out when empty.
type loopPort struct {
	mu       sync.Mutex
	incoming [][]byte
	written  []string
	readErr  error
	writeErr error
	timeout  time.Duration
	closed   bool
}

func (p *loopPort) feed(payloads ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range payloads {
		p.incoming = append(p.incoming, []byte(s))
	}
}

func (p *loopPort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

func (p *loopPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.incoming) > 0 {
		n := copy(b, p.incoming[0])
		p.incoming = p.incoming[1:]
		p.mu.Unlock()
		return n, nil
	}
	if p.readErr != nil {
		err := p.readErr
		p.readErr = nil
		p.mu.Unlock()
		return 0, err
	}
	timeout := p.timeout
	p.mu.Unlock()
	time.Sleep(timeout)
	return 0, nil
}

func (p *loopPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, string(b))
	return len(b), nil
}

func (p *loopPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

var _ uart.SerialPort = (*loopPort)(nil)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func newTestDevice(t *testing.T, port *loopPort, opts Options) *Device {
	t.Helper()
	opts.Name = "ir"
	opts.Port = port
	opts.ReadTimeout = 10 * time.Millisecond
	opts.Logger = testLogger()
	d, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDevice_WithoutPort(t *testing.T) {
	d, err := New(Options{Name: "ir", Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ops := map[string]func() error{
		"send":    func() error { return d.Send("A1") },
		"start":   d.Start,
		"restart": d.Restart,
	}
	for name, op := range ops {
		if err := op(); !effect.IsCode(err, effect.ErrCodeNotInitialized) {
			t.Errorf("%s error = %v, want NOT_INITIALIZED", name, err)
		}
	}

	if _, ok := d.Latest(); ok {
		t.Error("Latest() on empty device returned ok")
	}
	if st := d.Status(); st.Initialized {
		t.Error("Status().Initialized = true without port")
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestDevice_Send(t *testing.T) {
	port := &loopPort{}
	d := newTestDevice(t, port, Options{})

	if err := d.Send("FFA25D"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := d.Send(""); !errors.Is(err, ErrEmptyCode) {
		t.Errorf("Send(\"\") error = %v, want ErrEmptyCode", err)
	}

	port.mu.Lock()
	written := slices.Clone(port.written)
	port.mu.Unlock()
	if !slices.Equal(written, []string{"FFA25D"}) {
		t.Errorf("written = %q", written)
	}

	port.mu.Lock()
	port.writeErr = errors.New("tx fault")
	port.mu.Unlock()
	if err := d.Send("00"); err == nil {
		t.Error("Send() with failing port returned nil")
	}
}

func TestDevice_KeepsOnlyNewestCode(t *testing.T) {
	port := &loopPort{}
	var mu sync.Mutex
	var seen []string
	var evictions int
	d := newTestDevice(t, port, Options{
		OnReceived: func(code string, evicted bool) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, code)
			if evicted {
				evictions++
			}
		},
	})

	if err := d.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	port.feed("AA\r\n", "\r\n", "BB\n")

	waitFor(t, "two codes", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	})

	code, ok := d.Latest()
	if !ok || code != "BB" {
		t.Errorf("Latest() = %q, %v, want BB", code, ok)
	}
	if got := d.Received(); !slices.Equal(got, []string{"BB"}) {
		t.Errorf("Received() = %q, want [BB]", got)
	}
	// Reading is non-destructive
	if got := d.Received(); len(got) != 1 {
		t.Errorf("second Received() = %q", got)
	}

	mu.Lock()
	if evictions != 1 {
		t.Errorf("evictions = %d, want 1", evictions)
	}
	mu.Unlock()

	st := d.Status()
	if st.Listener.Received != 2 || st.Listener.Dropped != 1 {
		t.Errorf("listener status = %+v", st.Listener)
	}

	d.Clear()
	if _, ok := d.Latest(); ok {
		t.Error("Latest() after Clear returned ok")
	}
}

func TestDevice_RestartAfterStreamError(t *testing.T) {
	port := &loopPort{}
	stopped := make(chan error, 1)
	d := newTestDevice(t, port, Options{
		OnStopped: func(err error) { stopped <- err },
	})

	if err := d.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	port.mu.Lock()
	port.readErr = errors.New("framing error")
	port.mu.Unlock()

	select {
	case err := <-stopped:
		if !errors.Is(err, uart.ErrStream) {
			t.Errorf("OnStopped error = %v, want ErrStream", err)
		}
	case <-time.After(time.Second):
		t.Fatal("listener did not stop on read error")
	}

	if !d.Status().Listener.Dead {
		t.Fatal("listener not marked dead")
	}

	if err := d.Restart(); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	port.feed("CC")
	waitFor(t, "code after restart", func() bool {
		code, ok := d.Latest()
		return ok && code == "CC"
	})
	if d.Status().Listener.Dead {
		t.Error("listener still dead after Restart")
	}
}

func TestDevice_Close(t *testing.T) {
	port := &loopPort{}
	d, err := New(Options{Name: "ir", Port: port, ReadTimeout: 10 * time.Millisecond, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if d.Status().Listener.Running {
		t.Error("listener still running after Close")
	}
	port.mu.Lock()
	defer port.mu.Unlock()
	if !port.closed {
		t.Error("port not closed")
	}
}

package device

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/effectnode/internal/config"
	"github.com/smazurov/effectnode/internal/effect"
	"github.com/smazurov/effectnode/internal/events"
	"github.com/smazurov/effectnode/internal/output"
	"github.com/smazurov/effectnode/internal/uart"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

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

// memoryFactory hands out memory drivers and keeps them for inspection.
type memoryFactory struct {
	mu      sync.Mutex
	drivers map[string]*output.Memory
	fail    string
}

func (f *memoryFactory) Driver(name string, _ output.DriverSpec, _ uint) (output.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == f.fail {
		return nil, errors.New("pin busy")
	}
	if f.drivers == nil {
		f.drivers = make(map[string]*output.Memory)
	}
	m := output.NewMemory()
	f.drivers[name] = m
	return m, nil
}

func (f *memoryFactory) driver(name string) *output.Memory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drivers[name]
}

// irPort is a serial port fed by the test.
type irPort struct {
	mu      sync.Mutex
	queue   []string
	sent    []string
	timeout time.Duration
}

func (p *irPort) feed(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, s)
}

func (p *irPort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

func (p *irPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.queue) > 0 {
		n := copy(b, p.queue[0])
		p.queue = p.queue[1:]
		p.mu.Unlock()
		return n, nil
	}
	timeout := p.timeout
	p.mu.Unlock()
	time.Sleep(timeout)
	return 0, nil
}

func (p *irPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, string(b))
	return len(b), nil
}

func (p *irPort) Close() error { return nil }

func testHardware() *config.Hardware {
	return &config.Hardware{
		Version: 1,
		Registers: map[string]config.RegisterConfig{
			"bar":   {Width: 8, Driver: output.DriverSpec{Kind: output.KindMemory}},
			"coils": {Width: 4, Driver: output.DriverSpec{Kind: output.KindMemory}},
			"led":   {Width: 1, Driver: output.DriverSpec{Kind: output.KindMemory}},
		},
		Effects: map[string]config.EffectConfig{
			"blink": {Register: "bar", Mask: 0x03, Descriptor: effect.Descriptor{
				Kind:  effect.KindSequence,
				Steps: []effect.Step{{Bits: 1, HoldMs: 5}, {Bits: 2, HoldMs: 5}},
			}},
			"glow": {Register: "bar", Mask: 0xF0, Descriptor: effect.Descriptor{
				Kind: effect.KindRamp, Step: 1, TickMs: 5,
			}},
			"status": {Register: "led", Descriptor: effect.Descriptor{
				Kind:  effect.KindSequence,
				Steps: []effect.Step{{Bits: 1, HoldMs: 5}, {Bits: 0, HoldMs: 5}},
			}},
		},
		Axes: map[string]config.AxisConfig{
			"tilt": {Register: "coils", StepsPerRevolution: 8, StepDelayMs: 1},
		},
		Infrared:  &config.InfraredConfig{Device: "/dev/ttyFAKE", ReadTimeoutMs: 10},
		Indicator: "status",
	}
}

type testBoard struct {
	*Board
	factory *memoryFactory
	port    *irPort
	bus     *events.Bus
}

func buildTestBoard(t *testing.T, hw *config.Hardware) *testBoard {
	t.Helper()
	tb := &testBoard{factory: &memoryFactory{}, port: &irPort{}, bus: events.New()}
	board, err := Build(hw, Options{
		Bus:         tb.bus,
		Factory:     tb.factory,
		OpenPort:    func(uart.Config) (uart.SerialPort, error) { return tb.port, nil },
		StopTimeout: 200 * time.Millisecond,
		SettleDelay: -1,
		Logger:      testLogger(),
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	tb.Board = board
	t.Cleanup(func() { _ = board.Close() })
	return tb
}

func TestBuild_Wiring(t *testing.T) {
	tb := buildTestBoard(t, testHardware())

	if got := tb.EffectNames(); !slices.Equal(got, []string{"blink", "glow", "status"}) {
		t.Errorf("EffectNames() = %v", got)
	}
	if got := tb.Effects().AxisNames(); !slices.Equal(got, []string{"tilt"}) {
		t.Errorf("AxisNames() = %v", got)
	}

	if _, err := tb.Controller("tilt"); !errors.Is(err, ErrUnknown) {
		t.Errorf("Controller(axis) error = %v, want ErrUnknown", err)
	}
	if _, err := tb.Controller("nope"); !errors.Is(err, ErrUnknown) {
		t.Errorf("Controller(nope) error = %v, want ErrUnknown", err)
	}

	regs := tb.Registers()
	if len(regs) != 3 || regs[0].Name != "bar" || regs[0].Width != 8 {
		t.Errorf("Registers() = %+v", regs)
	}
	if !tb.Infrared().Status().Initialized {
		t.Error("infrared not initialized")
	}
}

func TestBuild_Errors(t *testing.T) {
	hw := testHardware()
	hw.Effects["ghost"] = config.EffectConfig{Register: "missing"}
	if _, err := Build(hw, Options{Factory: &memoryFactory{}, Logger: testLogger()}); err == nil {
		t.Error("Build() accepted invalid hardware")
	}

	_, err := Build(testHardware(), Options{
		Factory:  &memoryFactory{fail: "coils"},
		OpenPort: func(uart.Config) (uart.SerialPort, error) { return &irPort{}, nil },
		Logger:   testLogger(),
	})
	if err == nil {
		t.Error("Build() ignored driver error")
	}
}

func TestBuild_WithoutInfraredPort(t *testing.T) {
	board, err := Build(testHardware(), Options{
		Factory:  &memoryFactory{},
		OpenPort: func(uart.Config) (uart.SerialPort, error) { return nil, errors.New("no such device") },
		Logger:   testLogger(),
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer board.Close()

	if err := board.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := board.Infrared().Send("A1"); !effect.IsCode(err, effect.ErrCodeNotInitialized) {
		t.Errorf("Send() error = %v, want NOT_INITIALIZED", err)
	}
}

func TestBoard_PublishesStateChanges(t *testing.T) {
	tb := buildTestBoard(t, testHardware())

	var mu sync.Mutex
	var seen []events.EffectStateChangedEvent
	unsub := tb.bus.Subscribe(func(e events.EffectStateChangedEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e)
	})
	defer unsub()

	ctrl, err := tb.Controller("blink")
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := ctrl.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	waitFor(t, "running and idle events", func() bool {
		mu.Lock()
		defer mu.Unlock()
		var running, idle bool
		for _, e := range seen {
			if e.Effect != "blink" {
				continue
			}
			running = running || e.NewState == "running"
			idle = idle || e.NewState == "idle"
		}
		return running && idle
	})
}

func TestBoard_SharedRegisterMasks(t *testing.T) {
	tb := buildTestBoard(t, testHardware())

	glow, _ := tb.Controller("glow")
	blink, _ := tb.Controller("blink")
	if err := glow.On(); err != nil {
		t.Fatalf("glow.On() error = %v", err)
	}
	if err := blink.On(); err != nil {
		t.Fatalf("blink.On() error = %v", err)
	}
	if got := tb.factory.driver("bar").Last(); got != 0xF3 {
		t.Errorf("bar = %#x, want 0xF3", got)
	}

	if err := glow.Off(); err != nil {
		t.Fatalf("glow.Off() error = %v", err)
	}
	if got := tb.factory.driver("bar").Last(); got != 0x03 {
		t.Errorf("bar after glow off = %#x, want 0x03", got)
	}
}

func TestBoard_Rotate(t *testing.T) {
	tb := buildTestBoard(t, testHardware())

	rotations := make(chan events.MotorRotationEvent, 1)
	unsub := tb.bus.Subscribe(func(e events.MotorRotationEvent) { rotations <- e })
	defer unsub()

	steps, err := tb.Rotate("tilt", -90)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if steps != 2 {
		t.Errorf("steps = %d, want 2", steps)
	}

	select {
	case e := <-rotations:
		if e.Axis != "tilt" || e.Degrees != -90 || e.Steps != 2 {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no rotation event")
	}

	ctrl, _ := tb.Effects().Get("tilt")
	waitFor(t, "rotation to finish", func() bool { return ctrl.Status().State == effect.StateIdle })
	if got := tb.factory.driver("coils").Last(); got != 0 {
		t.Errorf("coils left energised: %#x", got)
	}

	if _, err := tb.Rotate("roll", 10); !errors.Is(err, ErrUnknown) {
		t.Errorf("Rotate(roll) error = %v, want ErrUnknown", err)
	}
}

func TestBoard_InfraredEvents(t *testing.T) {
	tb := buildTestBoard(t, testHardware())

	received := make(chan events.InfraredReceivedEvent, 1)
	unsub := tb.bus.Subscribe(func(e events.InfraredReceivedEvent) { received <- e })
	defer unsub()

	if err := tb.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	tb.port.feed("FFA25D\r\n")

	select {
	case e := <-received:
		if e.Code != "FFA25D" {
			t.Errorf("code = %q", e.Code)
		}
	case <-time.After(time.Second):
		t.Fatal("no infrared event")
	}

	if code, ok := tb.Infrared().Latest(); !ok || code != "FFA25D" {
		t.Errorf("Latest() = %q, %v", code, ok)
	}

	if err := tb.Infrared().Send("20DF10EF"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	tb.port.mu.Lock()
	sent := slices.Clone(tb.port.sent)
	tb.port.mu.Unlock()
	if !slices.Equal(sent, []string{"20DF10EF"}) {
		t.Errorf("sent = %q", sent)
	}
}

func TestBoard_ApplyEffects(t *testing.T) {
	tb := buildTestBoard(t, testHardware())

	next := testHardware()
	blink := next.Effects["blink"]
	blink.Steps = []effect.Step{{Bits: 3, HoldMs: 5}}
	next.Effects["blink"] = blink

	moved := next.Effects["glow"]
	moved.Mask = 0x0C
	next.Effects["glow"] = moved

	applied := tb.ApplyEffects(next)
	if !slices.Equal(applied, []string{"blink", "status"}) {
		t.Errorf("ApplyEffects() = %v, want [blink status]", applied)
	}
	current := tb.Hardware()
	if got := current.Effects["blink"].Steps; !slices.Equal(got, blink.Steps) {
		t.Errorf("blink steps = %v, want %v", got, blink.Steps)
	}
	if got := current.Effects["glow"].Mask; got == moved.Mask {
		t.Error("glow kept the rejected mask change")
	}

	ctrl, _ := tb.Controller("blink")
	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "reloaded frame", func() bool { return tb.factory.driver("bar").Last()&0x03 == 0x03 })
}

func TestBoard_CloseLeavesOutputsOff(t *testing.T) {
	factory := &memoryFactory{}
	board, err := Build(testHardware(), Options{
		Factory:  factory,
		OpenPort: func(uart.Config) (uart.SerialPort, error) { return &irPort{}, nil },
		Logger:   testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	glow, _ := board.Controller("glow")
	if err := glow.Start(); err != nil {
		t.Fatal(err)
	}
	if err := board.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, name := range []string{"bar", "coils", "led"} {
		if got := factory.driver(name).Last(); got != 0 {
			t.Errorf("register %s = %#x after Close", name, got)
		}
	}
	if st := glow.Status(); st.State != effect.StateIdle {
		t.Errorf("glow state after Close = %s", st.State)
	}
}

func TestBoard_ResetDriver(t *testing.T) {
	tb := buildTestBoard(t, testHardware())

	glow, _ := tb.Controller("glow")
	if err := glow.On(); err != nil {
		t.Fatal(err)
	}
	if err := tb.ResetDriver("blink"); err != nil {
		t.Fatalf("ResetDriver() error = %v", err)
	}
	if got := tb.factory.driver("bar").Last(); got != 0 {
		t.Errorf("bar after reset = %#x, want 0", got)
	}
	if err := tb.ResetDriver("tilt"); !errors.Is(err, ErrUnknown) {
		t.Errorf("ResetDriver(axis) error = %v, want ErrUnknown", err)
	}
}

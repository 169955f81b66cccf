// Package device wires a board from its hardware descriptor: output
// registers, effect controllers, stepper axes, the IR transceiver and the
// status indicator. Everything is built explicitly and handed to callers;
// there are no package-level device instances.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/bits"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/effectnode/internal/config"
	"github.com/smazurov/effectnode/internal/effect"
	"github.com/smazurov/effectnode/internal/events"
	"github.com/smazurov/effectnode/internal/infrared"
	"github.com/smazurov/effectnode/internal/logging"
	"github.com/smazurov/effectnode/internal/metrics"
	"github.com/smazurov/effectnode/internal/output"
	"github.com/smazurov/effectnode/internal/uart"
)

// InfraredName names the IR device in events and metrics.
const InfraredName = "infrared"

// ErrUnknown is returned for an effect or axis name the board does not have.
var ErrUnknown = errors.New("unknown device")

// DriverFactory builds the driver behind a register.
type DriverFactory interface {
	Driver(name string, spec output.DriverSpec, width uint) (output.Driver, error)
}

// Options configures Build.
type Options struct {
	// Bus receives device events (optional).
	Bus *events.Bus

	// Factory builds register drivers (default output.NewFactory).
	Factory DriverFactory

	// OpenPort opens the IR serial port (default uart.Open).
	OpenPort func(cfg uart.Config) (uart.SerialPort, error)

	MaxTasks    int64
	StopTimeout time.Duration
	SettleDelay time.Duration

	Logger *slog.Logger
}

// RegisterStatus describes one output register.
type RegisterStatus struct {
	Name  string `json:"name"`
	Width uint   `json:"width"`
	Value uint32 `json:"value"`
}

// Board owns every device built from one hardware descriptor.
type Board struct {
	registers map[string]*output.Register
	manager   *effect.Manager
	infrared  *infrared.Device
	indicator *Indicator
	bus       *events.Bus
	logger    *slog.Logger

	mu sync.Mutex
	hw *config.Hardware
}

// Build constructs the board. Nothing is started.
func Build(hw *config.Hardware, opts Options) (*Board, error) {
	if err := hw.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hardware config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("device")
	}
	factory := opts.Factory
	if factory == nil {
		factory = output.NewFactory(nil)
	}
	openPort := opts.OpenPort
	if openPort == nil {
		openPort = uart.Open
	}

	b := &Board{
		registers: make(map[string]*output.Register),
		bus:       opts.Bus,
		logger:    logger,
		hw:        hw,
	}

	for _, name := range sortedKeys(hw.Registers) {
		rc := hw.Registers[name]
		drv, err := factory.Driver(name, rc.Driver, rc.Width)
		if err != nil {
			_ = b.closeRegisters()
			return nil, err
		}
		b.registers[name] = output.NewRegister(drv, output.RegisterOptions{
			Name:        name,
			Width:       rc.Width,
			LockTimeout: rc.LockTimeout(),
			OnDegraded:  b.onDegraded,
		})
		logger.Debug("Register created", "register", name, "kind", rc.Driver.Kind, "width", rc.Width)
	}

	b.manager = effect.NewManager(&effect.ManagerOptions{
		MaxTasks:      opts.MaxTasks,
		StopTimeout:   opts.StopTimeout,
		SettleDelay:   opts.SettleDelay,
		OnStateChange: b.onStateChange,
		OnForcedStop:  b.onForcedStop,
	})

	for _, name := range hw.EffectNames() {
		ec := hw.Effects[name]
		reg := b.registers[ec.Register]
		e, err := ec.Build(levelMax(reg, ec.Mask))
		if err != nil {
			_ = b.closeRegisters()
			return nil, fmt.Errorf("effect %q: %w", name, err)
		}
		if _, err := b.manager.Add(effect.ControllerSpec{
			Name:     name,
			Register: reg,
			Mask:     ec.Mask,
			OnLevel:  ec.OnLevel,
			Effect:   e,
		}); err != nil {
			_ = b.closeRegisters()
			return nil, err
		}
		metrics.SetEffectState(name, string(effect.StateIdle))
	}

	for _, name := range sortedKeys(hw.Axes) {
		ac := hw.Axes[name]
		if _, err := b.manager.AddAxis(name, b.registers[ac.Register], effect.AxisOptions{
			StepsPerRevolution: ac.StepsPerRevolution,
			StepDelay:          ac.StepDelay(),
		}); err != nil {
			_ = b.closeRegisters()
			return nil, err
		}
		metrics.SetEffectState(name, string(effect.StateIdle))
	}

	ir, err := b.buildInfrared(hw.Infrared, openPort)
	if err != nil {
		_ = b.closeRegisters()
		return nil, err
	}
	b.infrared = ir

	if hw.Indicator != "" && b.bus != nil {
		ctrl, _ := b.manager.Get(hw.Indicator)
		b.indicator = NewIndicator(ctrl, b.bus, logger)
	}

	logger.Info("Board built",
		"registers", len(b.registers),
		"effects", len(hw.Effects),
		"axes", len(hw.Axes),
		"infrared", ir.Status().Initialized)
	return b, nil
}

func (b *Board) buildInfrared(cfg *config.InfraredConfig, openPort func(uart.Config) (uart.SerialPort, error)) (*infrared.Device, error) {
	opts := infrared.Options{
		Name:       InfraredName,
		OnReceived: b.onInfrared,
		OnStopped:  b.onListenerStopped,
	}

	if cfg != nil && cfg.Device != "" {
		port, err := openPort(uart.Config{Device: cfg.Device, BaudRate: cfg.BaudRate})
		if err != nil {
			// The rest of the board is still useful without IR
			b.logger.Warn("Infrared port unavailable", "device", cfg.Device, "error", err)
		} else {
			opts.Port = port
		}
		opts.Capacity = cfg.Capacity
		opts.ReadTimeout = cfg.ReadTimeout()
		opts.BufferSize = cfg.BufferSize
	}

	return infrared.New(opts)
}

// Start starts the IR listener and the indicator.
func (b *Board) Start() error {
	if b.indicator != nil {
		b.indicator.Start()
	}
	if !b.infrared.Status().Initialized {
		return nil
	}
	if err := b.infrared.Start(); err != nil {
		return fmt.Errorf("failed to start infrared listener: %w", err)
	}
	metrics.SetListenerUp(InfraredName, true)
	return nil
}

// Close stops every effect, the IR listener and leaves all outputs off.
func (b *Board) Close() error {
	if b.indicator != nil {
		b.indicator.Stop()
	}
	b.manager.StopAll()

	var errs []error
	if err := b.infrared.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close infrared: %w", err))
	}
	metrics.SetListenerUp(InfraredName, false)
	errs = append(errs, b.closeRegisters())
	return errors.Join(errs...)
}

func (b *Board) closeRegisters() error {
	var errs []error
	for _, name := range sortedKeys(b.registers) {
		if err := b.registers[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("register %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Effects returns the controller manager.
func (b *Board) Effects() *effect.Manager {
	return b.manager
}

// Infrared returns the IR device. It is never nil; without a port every
// hardware operation reports NOT_INITIALIZED.
func (b *Board) Infrared() *infrared.Device {
	return b.infrared
}

// Controller returns an effect controller by name. Axes are excluded.
func (b *Board) Controller(name string) (*effect.Controller, error) {
	if _, isAxis := b.manager.Axis(name); isAxis {
		return nil, fmt.Errorf("%w: effect %q", ErrUnknown, name)
	}
	ctrl, ok := b.manager.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: effect %q", ErrUnknown, name)
	}
	return ctrl, nil
}

// EffectNames returns effect names, axes excluded.
func (b *Board) EffectNames() []string {
	return slices.DeleteFunc(b.manager.Names(), func(name string) bool {
		_, isAxis := b.manager.Axis(name)
		return isAxis
	})
}

// Rotate turns an axis by degrees, positive clockwise, and returns the
// number of steps scheduled.
func (b *Board) Rotate(axis string, degrees float64) (int, error) {
	a, ok := b.manager.Axis(axis)
	if !ok {
		return 0, fmt.Errorf("%w: axis %q", ErrUnknown, axis)
	}

	steps, err := a.Rotate(degrees)
	if err != nil {
		return 0, err
	}

	metrics.AddMotorSteps(axis, steps)
	b.publish(events.MotorRotationEvent{
		Axis:      axis,
		Degrees:   degrees,
		Steps:     steps,
		Timestamp: now(),
	})
	return steps, nil
}

// ResetDriver re-initialises the whole register behind an effect. Other
// effects sharing the register lose their current bits until their next
// tick.
func (b *Board) ResetDriver(effectName string) error {
	b.mu.Lock()
	ec, ok := b.hw.Effects[effectName]
	b.mu.Unlock()
	if _, built := b.manager.Get(effectName); !ok || !built {
		return fmt.Errorf("%w: effect %q", ErrUnknown, effectName)
	}

	reg, ok := b.registers[ec.Register]
	if !ok {
		return fmt.Errorf("%w: register %q", ErrUnknown, ec.Register)
	}
	if err := reg.ResetBits(reg.Max()); err != nil {
		return err
	}
	b.logger.Info("Register driver reset", "register", ec.Register, "effect", effectName)
	return nil
}

// RestartInfrared restarts a dead IR listener.
func (b *Board) RestartInfrared() error {
	if err := b.infrared.Restart(); err != nil {
		return err
	}
	metrics.SetListenerUp(InfraredName, true)
	if b.indicator != nil {
		b.indicator.ClearFault()
	}
	return nil
}

// Registers returns the state of every register, sorted by name.
func (b *Board) Registers() []RegisterStatus {
	out := make([]RegisterStatus, 0, len(b.registers))
	for _, name := range sortedKeys(b.registers) {
		reg := b.registers[name]
		out = append(out, RegisterStatus{Name: name, Width: reg.Width(), Value: reg.Get()})
	}
	return out
}

// Hardware returns the descriptor currently applied.
func (b *Board) Hardware() *config.Hardware {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hw
}

// ApplyEffects installs the effect timing of a reloaded descriptor. Changes
// take effect on the next Start of each controller. Effects that are new or
// moved to another register need a restart of the service and are skipped.
// It returns the names that were updated.
func (b *Board) ApplyEffects(hw *config.Hardware) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Effects whose layout changed keep their running descriptor.
	effects := maps.Clone(b.hw.Effects)
	var applied []string
	for _, name := range hw.EffectNames() {
		ec := hw.Effects[name]
		old, existed := b.hw.Effects[name]
		ctrl, ok := b.manager.Get(name)
		if !existed || !ok || old.Register != ec.Register || old.Mask != ec.Mask {
			b.logger.Warn("Effect layout changed, restart required", "effect", name)
			continue
		}
		e, err := ec.Build(levelMax(b.registers[ec.Register], ec.Mask))
		if err != nil {
			b.logger.Warn("Skipping invalid effect", "effect", name, "error", err)
			continue
		}
		ctrl.SetEffect(e)
		effects[name] = ec
		applied = append(applied, name)
	}

	next := *b.hw
	next.Effects = effects
	b.hw = &next
	b.logger.Info("Effect descriptors reloaded", "applied", applied)
	return applied
}

func (b *Board) onStateChange(name string, oldState, newState effect.State, err error) {
	metrics.SetEffectState(name, string(newState))

	ev := events.EffectStateChangedEvent{
		Effect:    name,
		OldState:  string(oldState),
		NewState:  string(newState),
		Timestamp: now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	b.publish(ev)
}

func (b *Board) onForcedStop(name string) {
	metrics.IncEffectForcedStops(name)
	b.publish(events.EffectForcedStopEvent{Effect: name, Timestamp: now()})
}

func (b *Board) onDegraded(register string) {
	metrics.IncRegisterDegraded(register)
	b.publish(events.RegisterDegradedEvent{Register: register, Timestamp: now()})
}

func (b *Board) onInfrared(code string, evicted bool) {
	metrics.ObserveMailboxPush(InfraredName, evicted)
	b.publish(events.InfraredReceivedEvent{Code: code, Evicted: evicted, Timestamp: now()})
}

func (b *Board) onListenerStopped(err error) {
	metrics.IncListenerErrors(InfraredName)

	port := InfraredName
	var streamErr *uart.StreamError
	if errors.As(err, &streamErr) {
		port = streamErr.Port
	}
	b.publish(events.ListenerStoppedEvent{Port: port, Error: err.Error(), Timestamp: now()})
}

func (b *Board) publish(ev events.Event) {
	if b.bus != nil {
		b.bus.Publish(ev)
	}
}

// levelMax is the top frame value for an effect owning mask on reg.
func levelMax(reg *output.Register, mask uint32) uint32 {
	if mask == 0 {
		return reg.Max()
	}
	return mask >> uint(bits.TrailingZeros32(mask))
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

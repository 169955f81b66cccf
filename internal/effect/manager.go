package effect

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/effectnode/internal/logging"
	"github.com/smazurov/effectnode/internal/output"
	"github.com/sourcegraph/conc"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxTasks bounds concurrently running effect tasks.
const DefaultMaxTasks = 8

// ManagerOptions configures a new Manager.
type ManagerOptions struct {
	// MaxTasks bounds concurrently running tasks (default DefaultMaxTasks).
	MaxTasks int64

	// StopTimeout and SettleDelay are passed to every controller.
	// A negative SettleDelay disables the ForceRestart settle sleep.
	StopTimeout time.Duration
	SettleDelay time.Duration

	// OnStateChange is called when any controller transitions (optional).
	// Used for domain-specific reactions (events, metrics, indicators).
	OnStateChange StateChangeCallback

	// OnForcedStop is called when any task had to be reaped (optional).
	OnForcedStop func(name string)

	// Logger for manager operations. If nil, uses the "effects" module logger.
	Logger *slog.Logger
}

// ControllerSpec describes one controller added to the manager.
type ControllerSpec struct {
	Name     string
	Register *output.Register
	Mask     uint32
	OnLevel  uint32
	Effect   Effect
}

// Manager holds the named controllers and stepper axes of one board and the
// task budget they share.
type Manager struct {
	opts        ManagerOptions
	budget      *semaphore.Weighted
	logger      *slog.Logger
	mu          sync.RWMutex
	controllers map[string]*Controller
	axes        map[string]*Axis
}

// NewManager creates an empty manager.
func NewManager(opts *ManagerOptions) *Manager {
	var o ManagerOptions
	if opts != nil {
		o = *opts
	}
	if o.MaxTasks <= 0 {
		o.MaxTasks = DefaultMaxTasks
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = DefaultSettleDelay
	}

	logger := o.Logger
	if logger == nil {
		logger = logging.GetLogger("effects")
	}

	return &Manager{
		opts:        o,
		budget:      semaphore.NewWeighted(o.MaxTasks),
		logger:      logger,
		controllers: make(map[string]*Controller),
		axes:        make(map[string]*Axis),
	}
}

// Add creates and registers a controller.
func (m *Manager) Add(spec ControllerSpec) (*Controller, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("effect name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.controllers[spec.Name]; exists {
		return nil, fmt.Errorf("effect %q already registered", spec.Name)
	}

	ctrl := NewController(Options{
		Name:          spec.Name,
		Register:      spec.Register,
		Mask:          spec.Mask,
		OnLevel:       spec.OnLevel,
		Effect:        spec.Effect,
		StopTimeout:   m.opts.StopTimeout,
		SettleDelay:   m.opts.SettleDelay,
		Budget:        m.budget,
		OnStateChange: m.opts.OnStateChange,
		OnForcedStop:  m.opts.OnForcedStop,
		Logger:        m.logger,
	})
	m.controllers[spec.Name] = ctrl

	m.logger.Debug("Effect registered", "effect", spec.Name, "mask", spec.Mask)
	return ctrl, nil
}

// AddAxis creates a controller on a coil register and wraps it in an Axis.
func (m *Manager) AddAxis(name string, register *output.Register, opts AxisOptions) (*Axis, error) {
	ctrl, err := m.Add(ControllerSpec{Name: name, Register: register})
	if err != nil {
		return nil, err
	}

	axis := NewAxis(ctrl, opts)
	m.mu.Lock()
	m.axes[name] = axis
	m.mu.Unlock()
	return axis, nil
}

// Get returns a controller by name.
func (m *Manager) Get(name string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctrl, ok := m.controllers[name]
	return ctrl, ok
}

// Axis returns a stepper axis by name.
func (m *Manager) Axis(name string) (*Axis, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	axis, ok := m.axes[name]
	return axis, ok
}

// Names returns controller names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.controllers))
	for name := range m.controllers {
		names = append(names, name)
	}
	m.mu.RUnlock()

	slices.Sort(names)
	return names
}

// AxisNames returns axis names in sorted order.
func (m *Manager) AxisNames() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.axes))
	for name := range m.axes {
		names = append(names, name)
	}
	m.mu.RUnlock()

	slices.Sort(names)
	return names
}

// List returns a snapshot of every controller, sorted by name.
func (m *Manager) List() []Snapshot {
	names := m.Names()
	out := make([]Snapshot, 0, len(names))
	for _, name := range names {
		if ctrl, ok := m.Get(name); ok {
			out = append(out, ctrl.Status())
		}
	}
	return out
}

// StopAll stops every controller in parallel and turns static outputs off.
func (m *Manager) StopAll() {
	m.logger.Info("Stopping all effects")

	m.mu.RLock()
	ctrls := make([]*Controller, 0, len(m.controllers))
	for _, ctrl := range m.controllers {
		ctrls = append(ctrls, ctrl)
	}
	m.mu.RUnlock()

	var wg conc.WaitGroup
	for _, ctrl := range ctrls {
		wg.Go(func() {
			if err := ctrl.Off(); err != nil {
				m.logger.Warn("Failed to stop effect", "effect", ctrl.Name(), "error", err)
			}
		})
	}
	wg.Wait()

	m.logger.Info("All effects stopped")
}

package effect

import (
	"context"
	"fmt"
	"log/slog"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/effectnode/internal/logging"
	"github.com/smazurov/effectnode/internal/output"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"
)

// Default timings.
const (
	DefaultStopTimeout  = 2 * time.Second
	DefaultSettleDelay  = 500 * time.Millisecond
	DefaultPollInterval = 50 * time.Millisecond
)

// Options configures a new Controller.
type Options struct {
	// Name identifies the effect in logs, events and the API (required).
	Name string

	// Register is the output the effect writes. A nil register makes every
	// operation fail with NOT_INITIALIZED.
	Register *output.Register

	// Mask selects the register bits this effect owns (default: all).
	// Frame bits are shifted up to the mask's lowest set bit.
	Mask uint32

	// Effect played by Start (optional until the first Start).
	Effect Effect

	// OnLevel is written by On, in frame space (default: every owned bit).
	OnLevel uint32

	// StopTimeout bounds the wait for a cancelled task to exit.
	StopTimeout time.Duration

	// SettleDelay is slept by ForceRestart after resetting the output
	// (default DefaultSettleDelay, negative disables).
	SettleDelay time.Duration

	// PollInterval is how often a paused task re-checks its flags.
	PollInterval time.Duration

	// Budget limits concurrently running tasks across controllers (optional).
	Budget *semaphore.Weighted

	// OnStateChange is called after every transition (optional).
	OnStateChange StateChangeCallback

	// OnForcedStop is called when a task had to be reaped (optional).
	OnForcedStop func(name string)

	// Logger for controller operations. If nil, uses the "effects" module logger.
	Logger *slog.Logger
}

// task is the handle of one running effect goroutine.
type task struct {
	cancel  context.CancelFunc
	done    chan struct{}
	paused  atomic.Bool
	revoked atomic.Bool
	ticks   atomic.Uint64
	release func()
}

// Controller runs one effect as a cancellable background task and owns its
// lifecycle: Start, Pause, Resume, Stop, ForceRestart.
//
// Several controllers may share one Register as long as their masks are
// disjoint; every tick re-reads and rewrites only the owned bits under the
// register lock.
type Controller struct {
	name         string
	register     *output.Register
	mask         uint32
	shift        uint
	onLevel      uint32
	stopTimeout  time.Duration
	settleDelay  time.Duration
	pollInterval time.Duration
	budget       *semaphore.Weighted
	onChange     StateChangeCallback
	onForced     func(string)
	logger       *slog.Logger

	mu        sync.Mutex
	effect    Effect
	state     State
	task      *task
	powered   bool
	startedAt time.Time
	forced    int
	lastError error
}

// NewController creates an idle controller.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("effects")
	}

	mask := opts.Mask
	if mask == 0 && opts.Register != nil {
		mask = opts.Register.Max()
	}
	shift := uint(0)
	if mask != 0 {
		shift = uint(bits.TrailingZeros32(mask))
	}

	onLevel := opts.OnLevel
	if onLevel == 0 {
		onLevel = mask >> shift
	}

	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	settleDelay := opts.SettleDelay
	switch {
	case settleDelay == 0:
		settleDelay = DefaultSettleDelay
	case settleDelay < 0:
		settleDelay = 0
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Controller{
		name:         opts.Name,
		register:     opts.Register,
		mask:         mask,
		shift:        shift,
		onLevel:      onLevel,
		stopTimeout:  stopTimeout,
		settleDelay:  settleDelay,
		pollInterval: pollInterval,
		budget:       opts.Budget,
		onChange:     opts.OnStateChange,
		onForced:     opts.OnForcedStop,
		logger:       logger.With("effect", opts.Name),
		effect:       opts.Effect,
		state:        StateIdle,
	}
}

// Name returns the effect name.
func (c *Controller) Name() string {
	return c.name
}

// Mask returns the owned register bits.
func (c *Controller) Mask() uint32 {
	return c.mask
}

// SetEffect replaces the effect played by the next Start.
// A task already running keeps its current effect.
func (c *Controller) SetEffect(e Effect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.effect = e
}

// Start spawns the effect task. Starting a running or paused controller is a
// no-op; starting one that is still stopping fails with ALREADY_ACTIVE.
func (c *Controller) Start() error {
	if c.register == nil {
		return NewError(ErrCodeNotInitialized, c.name, "no output register configured", nil)
	}

	c.mu.Lock()
	switch c.state {
	case StateRunning, StatePaused:
		c.mu.Unlock()
		return nil
	case StateStopping:
		c.mu.Unlock()
		return NewError(ErrCodeAlreadyActive, c.name, "previous task is still stopping", nil)
	}

	if c.effect == nil {
		c.mu.Unlock()
		return NewError(ErrCodeNotInitialized, c.name, "no effect configured", nil)
	}

	release := func() {}
	if c.budget != nil {
		if !c.budget.TryAcquire(1) {
			c.mu.Unlock()
			return NewError(ErrCodeSpawnFailed, c.name, "task budget exhausted", nil)
		}
		release = sync.OnceFunc(func() { c.budget.Release(1) })
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		cancel:  cancel,
		done:    make(chan struct{}),
		release: release,
	}
	frames := c.effect.Frames()

	c.task = t
	c.state = StateRunning
	c.powered = false
	c.startedAt = time.Now()
	c.lastError = nil
	c.mu.Unlock()

	c.logger.Info("Effect started")
	c.notify(StateIdle, StateRunning, nil)

	go c.run(ctx, t, frames)
	return nil
}

// Pause stops output writes while keeping the task alive.
func (c *Controller) Pause() error {
	return c.setPaused(true)
}

// Resume continues a paused task.
func (c *Controller) Resume() error {
	return c.setPaused(false)
}

func (c *Controller) setPaused(paused bool) error {
	if c.register == nil {
		return NewError(ErrCodeNotInitialized, c.name, "no output register configured", nil)
	}

	from, to := StateRunning, StatePaused
	if !paused {
		from, to = StatePaused, StateRunning
	}

	c.mu.Lock()
	switch c.state {
	case to:
		c.mu.Unlock()
		return nil
	case from:
	default:
		state := c.state
		c.mu.Unlock()
		return NewError(ErrCodeNotActive, c.name, fmt.Sprintf("cannot change pause state while %s", state), nil)
	}
	c.task.paused.Store(paused)
	c.state = to
	c.mu.Unlock()

	c.logger.Debug("Effect pause state changed", "paused", paused)
	c.notify(from, to, nil)
	return nil
}

// Stop cancels the task and waits up to the stop timeout for it to exit.
// A task that does not exit in time is reaped: its output access is revoked
// and the goroutine abandoned. Either way the owned bits end up zero and Stop
// reports success.
func (c *Controller) Stop() error {
	if c.register == nil {
		return NewError(ErrCodeNotInitialized, c.name, "no output register configured", nil)
	}

	c.mu.Lock()
	t := c.task
	if t == nil {
		powered := c.powered
		c.powered = false
		c.mu.Unlock()
		if powered {
			return c.zero()
		}
		return nil
	}

	old := c.state
	if old == StateStopping {
		// Another caller is already stopping this task
		c.mu.Unlock()
		select {
		case <-t.done:
		case <-time.After(c.stopTimeout):
		}
		return nil
	}
	c.state = StateStopping
	t.cancel()
	c.mu.Unlock()

	c.notify(old, StateStopping, nil)
	c.logger.Info("Stopping effect")

	forced := false
	select {
	case <-t.done:
	case <-time.After(c.stopTimeout):
		forced = true
	}

	if forced {
		c.revoke(t)
		c.logger.Warn("Effect task did not exit in time, forced stop",
			"timeout", c.stopTimeout)
		if c.onForced != nil {
			c.onForced(c.name)
		}
	}

	err := c.zero()

	c.mu.Lock()
	if c.task == t {
		c.task = nil
		c.state = StateIdle
		c.powered = false
		if forced {
			c.forced++
		}
	}
	c.mu.Unlock()

	c.notify(StateStopping, StateIdle, nil)
	if err != nil {
		// Task is gone regardless, the output write is best effort
		c.logger.Warn("Failed to zero effect output", "error", err)
	}
	return nil
}

// ForceRestart drops the task handle without waiting, resets the owned part
// of the output and sleeps the settle delay. Safe to call from any state.
func (c *Controller) ForceRestart() error {
	if c.register == nil {
		return NewError(ErrCodeNotInitialized, c.name, "no output register configured", nil)
	}

	c.mu.Lock()
	t := c.task
	old := c.state
	c.task = nil
	c.state = StateIdle
	c.powered = false
	c.mu.Unlock()

	if t != nil {
		t.cancel()
		c.revoke(t)
		c.notify(old, StateIdle, nil)
	}

	c.logger.Info("Force restarting effect output")
	err := c.register.ResetBits(c.mask)

	if c.settleDelay > 0 {
		time.Sleep(c.settleDelay)
	}

	if err != nil {
		return fmt.Errorf("failed to reset output for %s: %w", c.name, err)
	}
	return nil
}

// On stops any task and holds the owned bits at the on level.
func (c *Controller) On() error {
	if err := c.Stop(); err != nil {
		return err
	}
	if err := c.register.SetBits(c.mask, c.onLevel<<c.shift); err != nil {
		return fmt.Errorf("failed to turn on %s: %w", c.name, err)
	}

	c.mu.Lock()
	c.powered = true
	c.mu.Unlock()
	return nil
}

// Off stops any task and zeroes the owned bits.
func (c *Controller) Off() error {
	if err := c.Stop(); err != nil {
		return err
	}
	c.mu.Lock()
	c.powered = false
	c.mu.Unlock()
	return c.zero()
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Name:      c.name,
		State:     c.state,
		Powered:   c.powered || c.state == StateRunning || c.state == StatePaused,
		TaskAlive: c.task != nil,
		Forced:    c.forced,
	}
	if c.task != nil {
		s.StartedAt = c.startedAt
		s.Ticks = c.task.ticks.Load()
	}
	if c.lastError != nil {
		s.LastError = c.lastError.Error()
	}
	return s
}

// run is the task goroutine.
func (c *Controller) run(ctx context.Context, t *task, frames FrameFunc) {
	defer close(t.done)

	var catcher panics.Catcher
	catcher.Try(func() { c.play(ctx, t, frames) })
	t.release()

	var taskErr error
	if r := catcher.Recovered(); r != nil {
		taskErr = r.AsError()
		c.logger.Error("Effect task panicked", "error", taskErr)
	}

	if ctx.Err() != nil {
		// Stop or ForceRestart owns the transition
		return
	}

	// Finished on its own (finite sequence or panic)
	if !t.revoked.Load() {
		if err := c.zero(); err != nil {
			c.logger.Warn("Failed to zero effect output", "error", err)
		}
	}

	c.mu.Lock()
	if c.task != t || c.state == StateStopping {
		c.mu.Unlock()
		return
	}
	old := c.state
	c.task = nil
	c.state = StateIdle
	c.lastError = taskErr
	c.mu.Unlock()

	c.logger.Info("Effect finished", "ticks", t.ticks.Load())
	c.notify(old, StateIdle, taskErr)
}

// play writes frames until the run ends or ctx is cancelled.
func (c *Controller) play(ctx context.Context, t *task, frames FrameFunc) {
	for ctx.Err() == nil {
		if t.paused.Load() {
			if !wait(ctx, c.pollInterval) {
				return
			}
			continue
		}

		frame, ok := frames()
		if !ok {
			return
		}

		if t.revoked.Load() {
			return
		}
		if err := c.register.SetBits(c.mask, frame.Bits<<c.shift); err != nil {
			c.logger.Debug("Effect write failed", "error", err)
		}
		t.ticks.Add(1)

		if !wait(ctx, frame.Hold) {
			return
		}
	}
}

// revoke cuts a task off from the output and frees its budget slot.
// It never touches a lock the task might hold.
func (c *Controller) revoke(t *task) {
	t.revoked.Store(true)
	t.release()
}

func (c *Controller) zero() error {
	return c.register.SetBits(c.mask, 0)
}

func (c *Controller) notify(oldState, newState State, err error) {
	if c.onChange != nil {
		c.onChange(c.name, oldState, newState, err)
	}
}

// wait sleeps for d and reports whether ctx is still live.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

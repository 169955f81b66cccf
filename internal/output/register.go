package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/smazurov/effectnode/internal/logging"
	"golang.org/x/sync/semaphore"
)

// DefaultLockTimeout bounds how long a writer waits for the register lock
// before falling back to a direct driver write.
const DefaultLockTimeout = 200 * time.Millisecond

// RegisterOptions configures a new Register.
type RegisterOptions struct {
	// Name identifies the register in logs and metrics.
	Name string

	// Width is the number of significant bits (default 8).
	Width uint

	// LockTimeout bounds lock acquisition (default DefaultLockTimeout).
	LockTimeout time.Duration

	// OnDegraded is called after a write that bypassed the lock (optional).
	OnDegraded func(register string)

	// Logger for register operations. If nil, uses the "output" module logger.
	Logger *slog.Logger
}

// Register owns the last written value of one physical output channel:
// a shift-register byte, a PWM duty, a set of stepper coils.
// Every read-modify-write happens under a single lock so that effects
// multiplexing disjoint bits of the same register never lose each other's
// bits. Lock acquisition is bounded: when it times out the write goes
// straight to the driver and a degraded-mode warning is logged.
type Register struct {
	name        string
	width       uint
	driver      Driver
	sem         *semaphore.Weighted
	value       atomic.Uint32
	lockTimeout time.Duration
	onDegraded  func(string)
	logger      *slog.Logger
}

// NewRegister creates a register on top of driver.
func NewRegister(driver Driver, opts RegisterOptions) *Register {
	if driver == nil {
		panic("output: NewRegister requires a driver")
	}

	width := opts.Width
	if width == 0 {
		width = 8
	}
	if width > 32 {
		width = 32
	}

	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("output")
	}

	return &Register{
		name:        opts.Name,
		width:       width,
		driver:      driver,
		sem:         semaphore.NewWeighted(1),
		lockTimeout: timeout,
		onDegraded:  opts.OnDegraded,
		logger:      logger.With("register", opts.Name),
	}
}

// Name returns the register name.
func (r *Register) Name() string {
	return r.name
}

// Width returns the number of significant bits.
func (r *Register) Width() uint {
	return r.width
}

// Max returns the value with every significant bit set.
func (r *Register) Max() uint32 {
	if r.width >= 32 {
		return ^uint32(0)
	}
	return uint32(1)<<r.width - 1
}

// Set replaces the whole register value.
func (r *Register) Set(value uint32) error {
	return r.update(func(uint32) uint32 { return value })
}

// SetBit sets a single bit, preserving all others.
func (r *Register) SetBit(index uint, level bool) error {
	if index >= r.width {
		return fmt.Errorf("bit index %d out of range for %d-bit register %q", index, r.width, r.name)
	}
	mask := uint32(1) << index
	var bits uint32
	if level {
		bits = mask
	}
	return r.SetBits(mask, bits)
}

// SetBits replaces the bits selected by mask with the corresponding bits of
// bits, preserving everything outside the mask. The current value is read
// under the lock immediately before modifying it.
func (r *Register) SetBits(mask, bits uint32) error {
	return r.update(func(current uint32) uint32 {
		return current&^mask | bits&mask
	})
}

// Get returns the last written value. It is not a hardware read-back.
func (r *Register) Get() uint32 {
	ctx, cancel := context.WithTimeout(context.Background(), r.lockTimeout)
	defer cancel()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return r.value.Load()
	}
	defer r.sem.Release(1)
	return r.value.Load()
}

// ResetBits zeroes the bits selected by mask. When mask covers the whole
// register and the driver is a Resetter, the driver is re-initialised too.
func (r *Register) ResetBits(mask uint32) error {
	resetter, ok := r.driver.(Resetter)
	if !ok || mask&r.Max() != r.Max() {
		return r.SetBits(mask, 0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.lockTimeout)
	defer cancel()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.degraded(0)
		err = resetter.Reset()
		r.value.Store(0)
		return err
	}
	defer r.sem.Release(1)

	if err := resetter.Reset(); err != nil {
		return fmt.Errorf("failed to reset driver for register %q: %w", r.name, err)
	}
	r.value.Store(0)
	r.logger.Debug("Register driver reset")
	return nil
}

// Close leaves the hardware off and releases the driver.
func (r *Register) Close() error {
	err := r.Set(0)
	if closer, ok := r.driver.(io.Closer); ok {
		if closeErr := closer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// update runs one read-modify-write cycle under the register lock.
func (r *Register) update(modify func(current uint32) uint32) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.lockTimeout)
	defer cancel()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		// Lock is stuck: the physical action wins over consistency.
		next := modify(r.value.Load()) & r.Max()
		r.degraded(next)
		writeErr := r.driver.Write(next)
		r.value.Store(next)
		return writeErr
	}
	defer r.sem.Release(1)

	next := modify(r.value.Load()) & r.Max()
	if err := r.driver.Write(next); err != nil {
		return fmt.Errorf("failed to write register %q: %w", r.name, err)
	}
	r.value.Store(next)
	return nil
}

func (r *Register) degraded(value uint32) {
	r.logger.Warn("Register lock timeout, writing without lock",
		"value", value,
		"timeout", r.lockTimeout)
	if r.onDegraded != nil {
		r.onDegraded(r.name)
	}
}

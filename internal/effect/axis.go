package effect

import (
	"math"
	"sync"
	"time"
)

// Stepper defaults for a 28BYJ-48 style motor driven in half steps.
const (
	DefaultStepsPerRevolution = 512
	DefaultStepDelay          = 10 * time.Millisecond
)

// Half-step coil patterns, coils ordered A B C D from the high bit.
var (
	ClockwisePhases        = []uint32{0x08, 0x0C, 0x04, 0x06, 0x02, 0x03, 0x01, 0x09}
	CounterClockwisePhases = []uint32{0x09, 0x01, 0x03, 0x02, 0x06, 0x04, 0x0C, 0x08}
)

// AxisOptions configures a stepper axis.
type AxisOptions struct {
	StepsPerRevolution int
	StepDelay          time.Duration
}

// Axis rotates a stepper motor by running a finite phase sequence on a
// controller. Each step is one pass through the eight phases.
type Axis struct {
	ctrl      *Controller
	stepsRev  int
	stepDelay time.Duration
	mu        sync.Mutex
}

// NewAxis wraps ctrl, whose register drives the motor coils.
func NewAxis(ctrl *Controller, opts AxisOptions) *Axis {
	stepsRev := opts.StepsPerRevolution
	if stepsRev <= 0 {
		stepsRev = DefaultStepsPerRevolution
	}
	delay := opts.StepDelay
	if delay <= 0 {
		delay = DefaultStepDelay
	}
	return &Axis{ctrl: ctrl, stepsRev: stepsRev, stepDelay: delay}
}

// Name returns the axis name.
func (a *Axis) Name() string {
	return a.ctrl.Name()
}

// Controller returns the controller driving the axis.
func (a *Axis) Controller() *Controller {
	return a.ctrl
}

// Steps converts an angle in degrees into whole steps.
func (a *Axis) Steps(degrees float64) int {
	return int(math.Round(math.Abs(degrees) / 360 * float64(a.stepsRev)))
}

// Rotate starts a rotation by degrees (positive is clockwise) and returns the
// number of steps scheduled. A rotation already in progress is stopped first.
// The coils are de-energised when the rotation completes or is stopped.
func (a *Axis) Rotate(degrees float64) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ctrl.Stop(); err != nil {
		return 0, err
	}

	steps := a.Steps(degrees)
	if steps == 0 {
		return 0, nil
	}

	table := ClockwisePhases
	if degrees < 0 {
		table = CounterClockwisePhases
	}
	frames := make([]Frame, len(table))
	for i, phase := range table {
		frames[i] = Frame{Bits: phase, Hold: a.stepDelay}
	}

	a.ctrl.SetEffect(Sequence{Steps: frames, Cycles: steps})
	if err := a.ctrl.Start(); err != nil {
		return 0, err
	}
	a.ctrl.logger.Info("Rotating", "degrees", degrees, "steps", steps)
	return steps, nil
}

// Halt stops any rotation and de-energises the coils.
func (a *Axis) Halt() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctrl.Off()
}

package effect

import (
	"fmt"
	"time"
)

// Frame is one output step: bits to write into the owned range, then how
// long to hold them before the next frame.
type Frame struct {
	Bits uint32
	Hold time.Duration
}

// FrameFunc yields successive frames. ok=false ends the run.
type FrameFunc func() (frame Frame, ok bool)

// Effect is a reusable actuation routine. Every Start plays a fresh run.
type Effect interface {
	Frames() FrameFunc
}

// Ramp is a triangle wave: the level climbs from 0 by Step each tick,
// reverses at Max, falls back to 0 and repeats. Used for breathing lights.
type Ramp struct {
	Max  uint32
	Step uint32
	Tick time.Duration
}

// Frames implements Effect.
func (r Ramp) Frames() FrameFunc {
	level := uint32(0)
	rising := true
	step := max(r.Step, 1)

	return func() (Frame, bool) {
		f := Frame{Bits: level, Hold: r.Tick}

		if rising {
			if r.Max-level <= step {
				level = r.Max
				rising = false
			} else {
				level += step
			}
		} else {
			if level <= step {
				level = 0
				rising = true
			} else {
				level -= step
			}
		}
		return f, true
	}
}

// Sequence replays Steps in order. Cycles bounds the number of full passes
// (0 runs until stopped).
type Sequence struct {
	Steps  []Frame
	Cycles int
}

// Frames implements Effect.
func (s Sequence) Frames() FrameFunc {
	steps := s.Steps
	i, cycle := 0, 0

	return func() (Frame, bool) {
		if len(steps) == 0 || (s.Cycles > 0 && cycle >= s.Cycles) {
			return Frame{}, false
		}
		f := steps[i]
		i++
		if i == len(steps) {
			i = 0
			cycle++
		}
		return f, true
	}
}

// Kinds accepted in Descriptor.Kind.
const (
	KindRamp     = "ramp"
	KindSequence = "sequence"
)

// Step is the descriptor form of a Frame.
type Step struct {
	Bits   uint32 `toml:"bits" json:"bits"`
	HoldMs int    `toml:"hold_ms" json:"hold_ms"`
}

// Descriptor is the configuration form of an effect.
type Descriptor struct {
	Kind   string `toml:"kind" json:"kind"`
	Max    uint32 `toml:"max" json:"max,omitempty"`
	Step   uint32 `toml:"step" json:"step,omitempty"`
	TickMs int    `toml:"tick_ms" json:"tick_ms,omitempty"`
	Steps  []Step `toml:"steps" json:"steps,omitempty"`
	Cycles int    `toml:"cycles" json:"cycles,omitempty"`
}

// Build turns a descriptor into an Effect. maxLevel is used when a ramp
// leaves Max unset.
func (d Descriptor) Build(maxLevel uint32) (Effect, error) {
	switch d.Kind {
	case KindRamp:
		if d.TickMs <= 0 {
			return nil, fmt.Errorf("ramp needs a positive tick_ms, got %d", d.TickMs)
		}
		top := d.Max
		if top == 0 {
			top = maxLevel
		}
		return Ramp{Max: top, Step: d.Step, Tick: time.Duration(d.TickMs) * time.Millisecond}, nil
	case KindSequence:
		if len(d.Steps) == 0 {
			return nil, fmt.Errorf("sequence needs at least one step")
		}
		frames := make([]Frame, len(d.Steps))
		for i, s := range d.Steps {
			if s.HoldMs <= 0 {
				return nil, fmt.Errorf("step %d needs a positive hold_ms", i)
			}
			frames[i] = Frame{Bits: s.Bits, Hold: time.Duration(s.HoldMs) * time.Millisecond}
		}
		return Sequence{Steps: frames, Cycles: d.Cycles}, nil
	default:
		return nil, fmt.Errorf("unknown effect kind %q", d.Kind)
	}
}

// Breathing is the default breathing light: a 13-bit duty ramp in steps of
// 100 every 50ms.
func Breathing() Ramp {
	return Ramp{Max: 8191, Step: 100, Tick: 50 * time.Millisecond}
}

// Flow is the default five-light flow pattern.
func Flow() Sequence {
	return Sequence{Steps: []Frame{
		{Bits: 0b10001, Hold: 110 * time.Millisecond},
		{Bits: 0b01010, Hold: 100 * time.Millisecond},
		{Bits: 0b00110, Hold: 90 * time.Millisecond},
		{Bits: 0b10110, Hold: 100 * time.Millisecond},
		{Bits: 0b10001, Hold: 130 * time.Millisecond},
	}}
}

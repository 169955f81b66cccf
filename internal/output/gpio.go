package output

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// ShiftRegister drives daisy-chained 74HC595 chips by bit-banging the serial
// data (SER), storage latch (RCK) and shift clock (SCK) lines.
// The value is shifted MSB first and latched once all bits are in.
type ShiftRegister struct {
	mu   sync.Mutex
	ser  gpio.PinOut
	rck  gpio.PinOut
	sck  gpio.PinOut
	bits uint
}

// NewShiftRegister creates a driver for bits outputs (8 per chip).
func NewShiftRegister(ser, rck, sck gpio.PinOut, bits uint) *ShiftRegister {
	if bits == 0 {
		bits = 8
	}
	return &ShiftRegister{ser: ser, rck: rck, sck: sck, bits: bits}
}

// Write shifts value out and latches it onto the outputs.
func (s *ShiftRegister) Write(value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := int(s.bits) - 1; i >= 0; i-- {
		if err := s.ser.Out(gpio.Level(value&(1<<uint(i)) != 0)); err != nil {
			return fmt.Errorf("shift data: %w", err)
		}
		if err := pulse(s.sck); err != nil {
			return fmt.Errorf("shift clock: %w", err)
		}
	}
	if err := pulse(s.rck); err != nil {
		return fmt.Errorf("latch: %w", err)
	}
	return nil
}

// Reset drives all control lines low and clears every output.
func (s *ShiftRegister) Reset() error {
	s.mu.Lock()
	err := errors.Join(s.ser.Out(gpio.Low), s.rck.Out(gpio.Low), s.sck.Out(gpio.Low))
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Write(0)
}

// pulse produces a rising edge on pin.
func pulse(pin gpio.PinOut) error {
	if err := pin.Out(gpio.Low); err != nil {
		return err
	}
	return pin.Out(gpio.High)
}

// Phases drives one GPIO per bit, e.g. the four coils of a unipolar stepper.
// pins[0] receives the most significant bit, so for a 4-bit value pins are
// ordered A, B, C, D.
type Phases struct {
	mu   sync.Mutex
	pins []gpio.PinOut
}

// NewPhases creates a driver over pins.
func NewPhases(pins ...gpio.PinOut) *Phases {
	return &Phases{pins: pins}
}

// Write sets every pin to its bit of value.
func (p *Phases) Write(value uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.pins)
	var errs []error
	for i, pin := range p.pins {
		bit := uint(n - 1 - i)
		if err := pin.Out(gpio.Level(value&(1<<bit) != 0)); err != nil {
			errs = append(errs, fmt.Errorf("pin %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// DefaultPWMFrequency is the carrier frequency used when none is configured.
const DefaultPWMFrequency = 5 * physic.KiloHertz

// PWM drives a single PWM-capable pin. Register values in [0, max] are
// scaled to the full periph duty range.
type PWM struct {
	pin  gpio.PinOut
	freq physic.Frequency
	max  uint32
}

// NewPWM creates a PWM driver. max is the register value meaning 100% duty.
func NewPWM(pin gpio.PinOut, freq physic.Frequency, max uint32) *PWM {
	if freq == 0 {
		freq = DefaultPWMFrequency
	}
	if max == 0 {
		max = 1
	}
	return &PWM{pin: pin, freq: freq, max: max}
}

// Write sets the duty cycle.
func (p *PWM) Write(value uint32) error {
	if value > p.max {
		value = p.max
	}
	return p.pin.PWM(p.Duty(value), p.freq)
}

// Duty converts a register value into a periph duty cycle.
func (p *PWM) Duty(value uint32) gpio.Duty {
	return gpio.Duty(uint64(value) * uint64(gpio.DutyMax) / uint64(p.max))
}

// Close drives the pin low.
func (p *PWM) Close() error {
	return p.pin.Out(gpio.Low)
}

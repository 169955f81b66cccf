package output

// Driver is the raw write primitive behind a Register.
// Implementations push a full value to the hardware (shift register byte,
// PWM duty, stepper coil levels). A Register serialises calls under its lock,
// but on lock timeout it writes directly, so drivers must tolerate concurrent
// Write calls without corrupting their own state.
type Driver interface {
	Write(value uint32) error
}

// Resetter is implemented by drivers whose hardware state can be re-initialised
// (e.g. re-driving the clock and latch lines of a 74HC595).
type Resetter interface {
	Reset() error
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(value uint32) error

// Write calls f(value).
func (f DriverFunc) Write(value uint32) error {
	return f(value)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/effectnode/internal/effect"
	"github.com/smazurov/effectnode/internal/output"
)

// RegisterConfig describes one output register.
type RegisterConfig struct {
	Width         uint              `toml:"width" json:"width"`
	LockTimeoutMs int               `toml:"lock_timeout_ms,omitempty" json:"lock_timeout_ms,omitempty"`
	Driver        output.DriverSpec `toml:"driver" json:"driver"`
}

// LockTimeout returns the configured lock timeout, zero meaning default.
func (r RegisterConfig) LockTimeout() time.Duration {
	return time.Duration(r.LockTimeoutMs) * time.Millisecond
}

// EffectConfig binds an effect to a bit range of a register.
type EffectConfig struct {
	Register string `toml:"register" json:"register"`

	// Mask selects the owned bits. Zero means the whole register.
	Mask uint32 `toml:"mask,omitempty" json:"mask,omitempty"`

	// OnLevel is written by a static turn-on. Zero means every owned bit.
	OnLevel uint32 `toml:"on_level,omitempty" json:"on_level,omitempty"`

	effect.Descriptor
}

// AxisConfig describes a stepper motor axis.
type AxisConfig struct {
	Register           string `toml:"register" json:"register"`
	StepsPerRevolution int    `toml:"steps_per_revolution,omitempty" json:"steps_per_revolution,omitempty"`
	StepDelayMs        int    `toml:"step_delay_ms,omitempty" json:"step_delay_ms,omitempty"`
}

// StepDelay returns the configured delay between steps, zero meaning default.
func (a AxisConfig) StepDelay() time.Duration {
	return time.Duration(a.StepDelayMs) * time.Millisecond
}

// InfraredConfig describes the IR transceiver's serial port.
type InfraredConfig struct {
	Device        string `toml:"device" json:"device"`
	BaudRate      int    `toml:"baud_rate,omitempty" json:"baud_rate,omitempty"`
	Capacity      int    `toml:"capacity,omitempty" json:"capacity,omitempty"`
	ReadTimeoutMs int    `toml:"read_timeout_ms,omitempty" json:"read_timeout_ms,omitempty"`
	BufferSize    int    `toml:"buffer_size,omitempty" json:"buffer_size,omitempty"`
}

// ReadTimeout returns the configured read timeout, zero meaning default.
func (i InfraredConfig) ReadTimeout() time.Duration {
	return time.Duration(i.ReadTimeoutMs) * time.Millisecond
}

// Hardware is the board descriptor file: which registers exist, which
// effects and motor axes run on them, and where the IR module is attached.
type Hardware struct {
	Version   int                       `toml:"version" json:"version"`
	Registers map[string]RegisterConfig `toml:"registers" json:"registers"`
	Effects   map[string]EffectConfig   `toml:"effects" json:"effects"`
	Axes      map[string]AxisConfig     `toml:"axes" json:"axes"`
	Infrared  *InfraredConfig           `toml:"infrared,omitempty" json:"infrared,omitempty"`

	// Indicator names the effect that shows overall device state.
	Indicator string `toml:"indicator,omitempty" json:"indicator,omitempty"`
}

// DefaultHardware is the reference board: a 74HC595 shared by the flow
// bar, a PWM eye lamp, two 28BYJ-48 axes and an IR module on ttyS2.
// Pins are periph.io names.
func DefaultHardware() *Hardware {
	return &Hardware{
		Version: 1,
		Registers: map[string]RegisterConfig{
			"shift": {Width: 8, Driver: output.DriverSpec{
				Kind: output.KindShiftRegister,
				Pins: []string{"GPIO17", "GPIO27", "GPIO22"},
			}},
			"eye": {Width: 13, Driver: output.DriverSpec{
				Kind:        output.KindPWM,
				Pins:        []string{"GPIO18"},
				FrequencyHz: 5000,
			}},
			"pitch": {Width: 4, Driver: output.DriverSpec{
				Kind: output.KindPhases,
				Pins: []string{"GPIO5", "GPIO6", "GPIO13", "GPIO19"},
			}},
			"yaw": {Width: 4, Driver: output.DriverSpec{
				Kind: output.KindPhases,
				Pins: []string{"GPIO12", "GPIO16", "GPIO20", "GPIO21"},
			}},
		},
		Effects: map[string]EffectConfig{
			"lamp_eye": {
				Register:   "eye",
				Descriptor: effect.Descriptor{Kind: effect.KindRamp, Max: 8191, Step: 100, TickMs: 50},
			},
			"lamp_bar": {
				Register: "shift",
				Mask:     0x1F,
				Descriptor: effect.Descriptor{Kind: effect.KindSequence, Steps: []effect.Step{
					{Bits: 0b10001, HoldMs: 110},
					{Bits: 0b01010, HoldMs: 100},
					{Bits: 0b00110, HoldMs: 90},
					{Bits: 0b10110, HoldMs: 100},
					{Bits: 0b10001, HoldMs: 130},
				}},
			},
		},
		Axes: map[string]AxisConfig{
			"pitch": {Register: "pitch"},
			"yaw":   {Register: "yaw"},
		},
		Infrared: &InfraredConfig{Device: "/dev/ttyS2", BaudRate: 9600, Capacity: 1},
	}
}

// LoadHardware reads a descriptor file. A missing file yields
// DefaultHardware.
func LoadHardware(path string) (*Hardware, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultHardware(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read hardware config: %w", err)
	}

	hw := &Hardware{}
	if err := toml.Unmarshal(data, hw); err != nil {
		return nil, fmt.Errorf("failed to parse hardware config: %w", err)
	}
	if hw.Version == 0 {
		hw.Version = 1
	}
	if err := hw.Validate(); err != nil {
		return nil, err
	}
	return hw, nil
}

// SaveHardware writes hw to path, creating the directory if needed.
func SaveHardware(path string, hw *Hardware) error {
	if err := hw.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(hw)
	if err != nil {
		return fmt.Errorf("failed to marshal hardware config: %w", err)
	}

	// Write then rename so a watcher never loads a half-written file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write hardware config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace hardware config: %w", err)
	}
	return nil
}

// Validate checks cross references and builds every effect once.
func (h *Hardware) Validate() error {
	var errs []error

	for _, name := range sortedKeys(h.Effects) {
		ec := h.Effects[name]
		reg, ok := h.Registers[ec.Register]
		if !ok {
			errs = append(errs, fmt.Errorf("effect %q: unknown register %q", name, ec.Register))
			continue
		}
		if _, err := ec.Build(maxLevel(reg.Width)); err != nil {
			errs = append(errs, fmt.Errorf("effect %q: %w", name, err))
		}
	}

	for _, name := range sortedKeys(h.Axes) {
		ac := h.Axes[name]
		if _, ok := h.Registers[ac.Register]; !ok {
			errs = append(errs, fmt.Errorf("axis %q: unknown register %q", name, ac.Register))
		}
		if _, clash := h.Effects[name]; clash {
			errs = append(errs, fmt.Errorf("axis %q: name already used by an effect", name))
		}
	}

	if h.Indicator != "" {
		if _, ok := h.Effects[h.Indicator]; !ok {
			errs = append(errs, fmt.Errorf("indicator: unknown effect %q", h.Indicator))
		}
	}

	for _, name := range sortedKeys(h.Registers) {
		if w := h.Registers[name].Width; w > 32 {
			errs = append(errs, fmt.Errorf("register %q: width %d exceeds 32 bits", name, w))
		}
	}

	return errors.Join(errs...)
}

// EffectNames returns the effect names in sorted order.
func (h *Hardware) EffectNames() []string {
	return sortedKeys(h.Effects)
}

func maxLevel(width uint) uint32 {
	if width == 0 {
		width = 8
	}
	if width >= 32 {
		return ^uint32(0)
	}
	return uint32(1)<<width - 1
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

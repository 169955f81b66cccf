package output

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/smazurov/effectnode/internal/logging"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// Driver kinds accepted in DriverSpec.Kind.
const (
	KindShiftRegister = "shift_register"
	KindPWM           = "pwm"
	KindPhases        = "phases"
	KindSysfs         = "sysfs"
	KindMemory        = "memory"
	KindNoop          = "noop"
)

// DriverSpec describes the hardware behind one register.
type DriverSpec struct {
	Kind        string   `toml:"kind"`
	Pins        []string `toml:"pins"`
	FrequencyHz int64    `toml:"frequency_hz"`
	LED         string   `toml:"led"`
}

// Factory builds drivers for the detected board.
// GPIO-backed kinds fall back to in-memory drivers when the host has no
// usable GPIO (desktop builds, containers).
type Factory struct {
	board     string
	gpioReady bool
	lookup    func(name string) gpio.PinIO
	sysfsRoot string
	logger    *slog.Logger
}

// NewFactory detects the board and initialises periph.io host drivers.
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = logging.GetLogger("output")
	}

	board := detectBoard()
	logger.Info("Detecting board for output control", "board_model", board)

	gpioReady := true
	if _, err := host.Init(); err != nil {
		logger.Warn("periph host init failed, using memory drivers", "error", err)
		gpioReady = false
	}

	return &Factory{
		board:     board,
		gpioReady: gpioReady,
		lookup:    gpioreg.ByName,
		sysfsRoot: sysfsLEDPath,
		logger:    logger,
	}
}

// Board returns the detected board model.
func (f *Factory) Board() string {
	return f.board
}

// Driver builds the driver for spec. width is the register width in bits.
func (f *Factory) Driver(name string, spec DriverSpec, width uint) (Driver, error) {
	kind := strings.ToLower(spec.Kind)

	switch kind {
	case KindMemory:
		return NewMemory(), nil
	case KindNoop, "":
		return newNoop(name, f.logger), nil
	case KindSysfs:
		drv, err := newSysfs(f.sysfsRoot, spec.LED)
		if err != nil {
			return nil, fmt.Errorf("register %q: %w", name, err)
		}
		return drv, nil
	case KindShiftRegister, KindPWM, KindPhases:
	default:
		return nil, fmt.Errorf("unknown driver kind %q for register %q", spec.Kind, name)
	}

	if !f.gpioReady {
		f.logger.Info("No GPIO available, using memory driver", "register", name, "kind", kind)
		return NewMemory(), nil
	}

	pins, err := f.pins(spec.Pins)
	if err != nil {
		return nil, fmt.Errorf("register %q: %w", name, err)
	}

	switch kind {
	case KindShiftRegister:
		if len(pins) != 3 {
			return nil, fmt.Errorf("register %q: shift register needs 3 pins (ser, rck, sck), got %d", name, len(pins))
		}
		return NewShiftRegister(pins[0], pins[1], pins[2], width), nil
	case KindPWM:
		if len(pins) != 1 {
			return nil, fmt.Errorf("register %q: pwm needs 1 pin, got %d", name, len(pins))
		}
		freq := physic.Frequency(spec.FrequencyHz) * physic.Hertz
		return NewPWM(pins[0], freq, maxForWidth(width)), nil
	default:
		if len(pins) == 0 {
			return nil, fmt.Errorf("register %q: phases need at least 1 pin", name)
		}
		return NewPhases(pins...), nil
	}
}

// pins resolves pin names through the periph registry.
func (f *Factory) pins(names []string) ([]gpio.PinOut, error) {
	out := make([]gpio.PinOut, 0, len(names))
	for _, name := range names {
		p := f.lookup(name)
		if p == nil {
			return nil, fmt.Errorf("pin %q not found", name)
		}
		out = append(out, p)
	}
	return out, nil
}

func maxForWidth(width uint) uint32 {
	if width == 0 || width >= 32 {
		return ^uint32(0)
	}
	return uint32(1)<<width - 1
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}

	// Device tree model contains null bytes, trim them
	return strings.TrimRight(string(data), "\x00")
}

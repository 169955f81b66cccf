package device

import (
	"log/slog"
	"sync"

	"github.com/smazurov/effectnode/internal/events"
)

// Target is the output an Indicator drives. An effect controller whose
// effect is a blink pattern fits.
type Target interface {
	Name() string
	On() error
	Off() error
	Start() error
}

type indicatorMode int

const (
	modeUnset indicatorMode = iota
	modeOff
	modeOn
	modeFault
)

func (m indicatorMode) String() string {
	switch m {
	case modeOff:
		return "off"
	case modeOn:
		return "on"
	case modeFault:
		return "fault"
	default:
		return "unset"
	}
}

// Indicator subscribes to device events and shows aggregate state on one
// output: on while any effect is active, the target's own pattern while the
// IR receiver is down, off otherwise.
type Indicator struct {
	target      Target
	bus         *events.Bus
	logger      *slog.Logger
	unsubscribe []func()

	mu     sync.Mutex
	active map[string]bool
	fault  bool
	mode   indicatorMode
}

// NewIndicator creates an indicator for target.
func NewIndicator(target Target, bus *events.Bus, logger *slog.Logger) *Indicator {
	return &Indicator{
		target: target,
		bus:    bus,
		logger: logger.With("indicator", target.Name()),
		active: make(map[string]bool),
	}
}

// Start begins listening for events and sets the initial output.
func (i *Indicator) Start() {
	i.unsubscribe = append(i.unsubscribe,
		i.bus.Subscribe(func(e events.EffectStateChangedEvent) {
			i.handleEffect(e)
		}),
		i.bus.Subscribe(func(events.ListenerStoppedEvent) {
			i.setFault(true)
		}),
		i.bus.Subscribe(func(events.InfraredReceivedEvent) {
			i.setFault(false)
		}),
	)

	i.mu.Lock()
	i.apply()
	i.mu.Unlock()
	i.logger.Info("Indicator started")
}

// Stop unsubscribes and turns the output off.
func (i *Indicator) Stop() {
	for _, unsub := range i.unsubscribe {
		unsub()
	}
	i.unsubscribe = nil

	if err := i.target.Off(); err != nil {
		i.logger.Warn("Failed to turn indicator off", "error", err)
	}
	i.logger.Info("Indicator stopped")
}

// ClearFault drops the fault display, e.g. after the IR listener restarted.
func (i *Indicator) ClearFault() {
	i.setFault(false)
}

func (i *Indicator) handleEffect(e events.EffectStateChangedEvent) {
	if e.GetEffect() == i.target.Name() {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if e.IsActive() {
		i.active[e.GetEffect()] = true
	} else {
		delete(i.active, e.GetEffect())
	}
	i.logger.Debug("Effect state changed", "effect", e.Effect, "active", e.IsActive())
	i.apply()
}

func (i *Indicator) setFault(fault bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.fault == fault {
		return
	}
	i.fault = fault
	i.apply()
}

// apply drives the target for the current aggregate state. Callers hold mu.
func (i *Indicator) apply() {
	mode := modeOff
	switch {
	case i.fault:
		mode = modeFault
	case len(i.active) > 0:
		mode = modeOn
	}
	if mode == i.mode {
		return
	}

	var err error
	switch mode {
	case modeFault:
		err = i.target.Start()
	case modeOn:
		err = i.target.On()
	default:
		err = i.target.Off()
	}
	if err != nil {
		i.logger.Warn("Failed to update indicator", "mode", mode.String(), "error", err)
		return
	}
	i.mode = mode
	i.logger.Debug("Indicator updated", "mode", mode.String())
}

// Package metrics provides Prometheus metrics for effects, registers and
// the UART receive path.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "effectnode"

// EffectStates lists every controller state exported as a label value.
var EffectStates = []string{"idle", "running", "paused", "stopping"}

var (
	effectState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "effect",
		Name:      "state",
		Help:      "Current effect controller state (1 for the active state)",
	}, []string{"effect", "state"})

	effectTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "effect",
		Name:      "transitions_total",
		Help:      "Effect controller state transitions",
	}, []string{"effect", "to"})

	effectForcedStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "effect",
		Name:      "forced_stops_total",
		Help:      "Effect tasks reaped after missing the stop deadline",
	}, []string{"effect"})

	effectTicks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "effect",
		Name:      "ticks",
		Help:      "Frames written by the current effect task",
	}, []string{"effect"})

	motorSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "motor",
		Name:      "steps_total",
		Help:      "Stepper steps scheduled per axis",
	}, []string{"axis"})

	// Local cache for API access.
	effectCache   = make(map[string]*EffectMetrics)
	effectCacheMu sync.RWMutex
)

// EffectMetrics holds current metric values for an effect.
type EffectMetrics struct {
	State       string  `json:"state"`
	Transitions float64 `json:"transitions"`
	ForcedStops float64 `json:"forced_stops"`
}

// SetEffectState marks state as the current state of an effect.
func SetEffectState(name, state string) {
	for _, s := range EffectStates {
		v := 0.0
		if s == state {
			v = 1
		}
		effectState.WithLabelValues(name, s).Set(v)
	}
	effectTransitions.WithLabelValues(name, state).Inc()
	updateCache(name, func(m *EffectMetrics) {
		m.State = state
		m.Transitions++
	})
}

// IncEffectForcedStops counts a forced reap.
func IncEffectForcedStops(name string) {
	effectForcedStops.WithLabelValues(name).Inc()
	updateCache(name, func(m *EffectMetrics) { m.ForcedStops++ })
}

// SetEffectTicks sets the frame count of the current task.
func SetEffectTicks(name string, ticks uint64) {
	effectTicks.WithLabelValues(name).Set(float64(ticks))
}

// AddMotorSteps counts scheduled stepper steps.
func AddMotorSteps(axis string, steps int) {
	if steps > 0 {
		motorSteps.WithLabelValues(axis).Add(float64(steps))
	}
}

// DeleteEffectMetrics removes all metrics for an effect.
func DeleteEffectMetrics(name string) {
	for _, s := range EffectStates {
		effectState.DeleteLabelValues(name, s)
		effectTransitions.DeleteLabelValues(name, s)
	}
	effectForcedStops.DeleteLabelValues(name)
	effectTicks.DeleteLabelValues(name)

	effectCacheMu.Lock()
	delete(effectCache, name)
	effectCacheMu.Unlock()
}

// GetEffectMetrics returns current metric values for an effect.
func GetEffectMetrics(name string) *EffectMetrics {
	effectCacheMu.RLock()
	defer effectCacheMu.RUnlock()
	if m, ok := effectCache[name]; ok {
		dup := *m
		return &dup
	}
	return nil
}

func updateCache(name string, update func(*EffectMetrics)) {
	effectCacheMu.Lock()
	defer effectCacheMu.Unlock()
	m, ok := effectCache[name]
	if !ok {
		m = &EffectMetrics{}
		effectCache[name] = m
	}
	update(m)
}

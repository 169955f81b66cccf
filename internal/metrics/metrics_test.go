package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEffectStateGauge(t *testing.T) {
	name := "test-lamp"
	DeleteEffectMetrics(name)
	defer DeleteEffectMetrics(name)

	SetEffectState(name, "running")
	SetEffectState(name, "paused")

	for _, s := range EffectStates {
		want := 0.0
		if s == "paused" {
			want = 1
		}
		if got := testutil.ToFloat64(effectState.WithLabelValues(name, s)); got != want {
			t.Errorf("state %s = %v, want %v", s, got, want)
		}
	}

	if got := testutil.ToFloat64(effectTransitions.WithLabelValues(name, "running")); got != 1 {
		t.Errorf("transitions to running = %v, want 1", got)
	}
}

func TestEffectMetricsCache(t *testing.T) {
	name := "test-cache"
	DeleteEffectMetrics(name)

	if m := GetEffectMetrics(name); m != nil {
		t.Error("expected nil for unknown effect")
	}

	SetEffectState(name, "running")
	SetEffectState(name, "stopping")
	IncEffectForcedStops(name)

	m := GetEffectMetrics(name)
	if m == nil {
		t.Fatal("expected cached metrics")
	}
	if m.State != "stopping" || m.Transitions != 2 || m.ForcedStops != 1 {
		t.Errorf("cached = %+v", m)
	}

	// Returned value is a copy
	m.ForcedStops = 99
	if again := GetEffectMetrics(name); again.ForcedStops != 1 {
		t.Errorf("cache modified through copy: %+v", again)
	}

	DeleteEffectMetrics(name)
	if GetEffectMetrics(name) != nil {
		t.Error("expected nil after delete")
	}
}

func TestEffectMetricsConcurrent(_ *testing.T) {
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				SetEffectState("test-concurrent", EffectStates[i%len(EffectStates)])
				IncEffectForcedStops("test-concurrent")
				_ = GetEffectMetrics("test-concurrent")
			}
		}()
	}
	wg.Wait()
	DeleteEffectMetrics("test-concurrent")
}

func TestIOMetrics(t *testing.T) {
	IncRegisterDegraded("test-shift")
	IncRegisterDegraded("test-shift")
	if got := testutil.ToFloat64(registerDegradedWrites.WithLabelValues("test-shift")); got != 2 {
		t.Errorf("degraded writes = %v, want 2", got)
	}

	ObserveMailboxPush("test-ir", false)
	ObserveMailboxPush("test-ir", true)
	if got := testutil.ToFloat64(mailboxPushes.WithLabelValues("test-ir")); got != 2 {
		t.Errorf("pushes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(mailboxEvictions.WithLabelValues("test-ir")); got != 1 {
		t.Errorf("evictions = %v, want 1", got)
	}

	SetListenerUp("test-tty", true)
	IncListenerErrors("test-tty")
	if got := testutil.ToFloat64(listenerUp.WithLabelValues("test-tty")); got != 0 {
		t.Errorf("listener up after error = %v, want 0", got)
	}
	if got := testutil.ToFloat64(listenerErrors.WithLabelValues("test-tty")); got != 1 {
		t.Errorf("listener errors = %v, want 1", got)
	}

	AddMotorSteps("test-yaw", 128)
	AddMotorSteps("test-yaw", 0)
	if got := testutil.ToFloat64(motorSteps.WithLabelValues("test-yaw")); got != 128 {
		t.Errorf("motor steps = %v, want 128", got)
	}
}

package effect

import (
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/effectnode/internal/output"
)

func TestManagerAddAndList(t *testing.T) {
	m := NewManager(&ManagerOptions{Logger: testLogger()})
	reg := newTestRegister(output.NewMemory())

	for _, name := range []string{"lamp_eye", "lamp_bar"} {
		if _, err := m.Add(ControllerSpec{Name: name, Register: reg}); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}
	if _, err := m.Add(ControllerSpec{Name: "lamp_bar", Register: reg}); err == nil {
		t.Error("duplicate Add should fail")
	}
	if _, err := m.Add(ControllerSpec{}); err == nil {
		t.Error("Add without a name should fail")
	}

	if got := m.Names(); !slices.Equal(got, []string{"lamp_bar", "lamp_eye"}) {
		t.Errorf("Names() = %v", got)
	}
	list := m.List()
	if len(list) != 2 || list[0].Name != "lamp_bar" || list[0].State != StateIdle {
		t.Errorf("List() = %+v", list)
	}

	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) should report false")
	}
}

func TestManagerTaskBudget(t *testing.T) {
	m := NewManager(&ManagerOptions{MaxTasks: 1, Logger: testLogger()})
	reg := newTestRegister(output.NewMemory())

	a, _ := m.Add(ControllerSpec{Name: "a", Register: reg, Mask: 0x0F, Effect: fastSequence(1)})
	b, _ := m.Add(ControllerSpec{Name: "b", Register: reg, Mask: 0xF0, Effect: fastSequence(1)})

	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(); !IsCode(err, ErrCodeSpawnFailed) {
		t.Errorf("b.Start() = %v, want %s", err, ErrCodeSpawnFailed)
	}

	_ = a.Stop()
	if err := b.Start(); err != nil {
		t.Errorf("b.Start() after a stopped = %v", err)
	}
	m.StopAll()
}

func TestManagerStopAll(t *testing.T) {
	var changes atomic.Int32
	m := NewManager(&ManagerOptions{
		StopTimeout:   100 * time.Millisecond,
		OnStateChange: func(string, State, State, error) { changes.Add(1) },
		Logger:        testLogger(),
	})
	reg := newTestRegister(output.NewMemory())

	bar, _ := m.Add(ControllerSpec{Name: "bar", Register: reg, Mask: 0x1F, Effect: fastSequence(0x11, 0x0A)})
	eye, _ := m.Add(ControllerSpec{Name: "eye", Register: reg, Mask: 0xE0})
	axis, err := m.AddAxis("pitch", newTestRegister(output.NewMemory()), AxisOptions{StepDelay: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	if err := bar.Start(); err != nil {
		t.Fatal(err)
	}
	if err := eye.On(); err != nil {
		t.Fatal(err)
	}
	if _, err := axis.Rotate(720); err != nil {
		t.Fatal(err)
	}

	m.StopAll()

	for _, s := range m.List() {
		if s.State != StateIdle || s.Powered {
			t.Errorf("%s: status = %+v, want idle and unpowered", s.Name, s)
		}
	}
	if got := reg.Get(); got != 0 {
		t.Errorf("shared register = %#x, want 0", got)
	}
	if changes.Load() == 0 {
		t.Error("OnStateChange was never called")
	}
	if got, ok := m.Axis("pitch"); !ok || got != axis {
		t.Error("Axis(pitch) lookup failed")
	}
	if got := m.AxisNames(); !slices.Equal(got, []string{"pitch"}) {
		t.Errorf("AxisNames() = %v", got)
	}
}

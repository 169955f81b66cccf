package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption[*Hardware]) *Watcher[*Hardware] {
	t.Helper()
	opts = append([]WatcherOption[*Hardware]{WithDebounce[*Hardware](50 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, LoadHardware, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	// Let the watch goroutine settle
	time.Sleep(50 * time.Millisecond)
	return w
}

func saveWithTick(t *testing.T, path string, tickMs int) {
	t.Helper()
	hw := DefaultHardware()
	eye := hw.Effects["lamp_eye"]
	eye.TickMs = tickMs
	hw.Effects["lamp_eye"] = eye
	if err := SaveHardware(path, hw); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_ReloadsOnAtomicReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effects.toml")
	saveWithTick(t, path, 50)

	w := startWatcher(t, path)
	received := make(chan *Hardware, 1)
	w.OnReload(func(hw *Hardware) { received <- hw })

	saveWithTick(t, path, 20)

	select {
	case hw := <-received:
		if got := hw.Effects["lamp_eye"].TickMs; got != 20 {
			t.Errorf("tick_ms = %d, want 20", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "effects.toml")
	saveWithTick(t, path, 50)

	w := startWatcher(t, path)
	var count atomic.Int32
	w.OnReload(func(*Hardware) { count.Add(1) })

	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("reloads for sibling write = %d, want 0", got)
	}
}

func TestWatcher_ErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effects.toml")
	saveWithTick(t, path, 50)

	errs := make(chan error, 1)
	w := startWatcher(t, path, WithErrorHandler[*Hardware](func(err error) { errs <- err }))
	reloaded := make(chan *Hardware, 1)
	w.OnReload(func(hw *Hardware) { reloaded <- hw })

	if err := os.WriteFile(path, []byte("[effects.lamp_eye]\nregister = \"gone\"\nkind = \"ramp\"\ntick_ms = 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errs:
	case <-reloaded:
		t.Fatal("handler called for invalid hardware")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effects.toml")
	saveWithTick(t, path, 50)

	w := startWatcher(t, path, WithDebounce[*Hardware](200*time.Millisecond))
	var count, last atomic.Int32
	w.OnReload(func(hw *Hardware) {
		count.Add(1)
		last.Store(int32(hw.Effects["lamp_eye"].TickMs))
	})

	for tick := 1; tick <= 5; tick++ {
		saveWithTick(t, path, tick)
		time.Sleep(30 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced reload, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("final tick_ms = %d, want 5", got)
	}
}

func TestWatcher_Unsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effects.toml")
	saveWithTick(t, path, 50)

	w := startWatcher(t, path)
	var kept, dropped atomic.Int32
	w.OnReload(func(*Hardware) { kept.Add(1) })
	unsub := w.OnReload(func(*Hardware) { dropped.Add(1) })
	unsub()

	saveWithTick(t, path, 10)
	time.Sleep(300 * time.Millisecond)

	if kept.Load() != 1 || dropped.Load() != 0 {
		t.Errorf("kept=%d dropped=%d, want 1 and 0", kept.Load(), dropped.Load())
	}
}

func TestWatcher_StopHaltsReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effects.toml")
	saveWithTick(t, path, 50)

	w := NewConfigWatcher(path, LoadHardware, newTestLogger(), WithDebounce[*Hardware](20*time.Millisecond))
	var count atomic.Int32
	w.OnReload(func(*Hardware) { count.Add(1) })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}

	saveWithTick(t, path, 10)
	time.Sleep(100 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Errorf("reloads after stop = %d", got)
	}
}

package systemd

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestNotify_WithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	sent, err := Ready()
	if err != nil || sent {
		t.Errorf("Ready() = %v, %v, want false, nil", sent, err)
	}
	sent, err = Stopping()
	if err != nil || sent {
		t.Errorf("Stopping() = %v, %v, want false, nil", sent, err)
	}
}

func TestRunWatchdog_DisabledReturns(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	t.Setenv("WATCHDOG_PID", "")

	done := make(chan struct{})
	go func() {
		RunWatchdog(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunWatchdog did not return without a watchdog interval")
	}
}

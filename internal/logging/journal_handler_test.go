package logging

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

type sentEntry struct {
	message  string
	priority journal.Priority
	fields   map[string]string
}

func captureJournal(level slog.Level) (*JournalHandler, *[]sentEntry) {
	var sent []sentEntry
	h := NewJournalHandler("", level)
	h.send = func(message string, priority journal.Priority, fields map[string]string) error {
		sent = append(sent, sentEntry{message, priority, fields})
		return nil
	}
	return h, &sent
}

func TestJournalHandler_Fields(t *testing.T) {
	h, sent := captureJournal(slog.LevelDebug)
	logger := slog.New(h).With("module", "effects").WithGroup("task")

	logger.Warn("Effect reaped", "effect", "lamp_bar", "mask", uint64(0x1F), "timeout", 2*time.Second)

	if len(*sent) != 1 {
		t.Fatalf("sent %d entries, want 1", len(*sent))
	}
	got := (*sent)[0]
	if got.message != "Effect reaped" || got.priority != journal.PriWarning {
		t.Errorf("message/priority = %q/%d", got.message, got.priority)
	}

	want := map[string]string{
		"SYSLOG_IDENTIFIER": DefaultJournalIdentifier,
		"PRIORITY":          "4",
		"MODULE":            "effects",
		"TASK_EFFECT":       "lamp_bar",
		"TASK_MASK":         "31",
		"TASK_TIMEOUT":      "2s",
	}
	for k, v := range want {
		if got.fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, got.fields[k], v)
		}
	}
}

func TestJournalHandler_Level(t *testing.T) {
	h, sent := captureJournal(slog.LevelInfo)
	logger := slog.New(h)

	logger.Debug("hidden")
	logger.Info("shown")

	if len(*sent) != 1 || (*sent)[0].message != "shown" {
		t.Errorf("sent = %+v", *sent)
	}
}

func TestJournalHandler_SendError(t *testing.T) {
	h := NewJournalHandler("effectnode", slog.LevelInfo)
	h.send = func(string, journal.Priority, map[string]string) error {
		return errors.New("socket gone")
	}

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)
	if err := h.Handle(context.Background(), r); err == nil {
		t.Error("expected error from Handle")
	}
}

func TestJournalKey(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"effect"}, "EFFECT"},
		{[]string{"http", "remote_addr"}, "HTTP_REMOTE_ADDR"},
		{[]string{"ir.code"}, "IR_CODE"},
		{[]string{"_private"}, "PRIVATE"},
		{[]string{"9lives"}, "LIVES"},
		{[]string{"-"}, ""},
	}
	for _, tt := range tests {
		if got := journalKey(tt.parts); got != tt.want {
			t.Errorf("journalKey(%v) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

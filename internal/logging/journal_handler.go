package logging

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// DefaultJournalIdentifier is the SYSLOG_IDENTIFIER written with every entry.
const DefaultJournalIdentifier = "effectnode"

// JournalHandler is a slog.Handler that sends logs to systemd journal.
// Attributes become journal fields, so `journalctl EFFECT=lamp_bar` selects
// the log lines of one effect.
type JournalHandler struct {
	identifier string
	level      slog.Leveler
	preset     map[string]string // attributes from WithAttrs, already flattened
	groups     []string
	send       func(message string, priority journal.Priority, fields map[string]string) error
}

// NewJournalHandler creates a new journal handler.
func NewJournalHandler(identifier string, level slog.Leveler) *JournalHandler {
	if identifier == "" {
		identifier = DefaultJournalIdentifier
	}
	return &JournalHandler{
		identifier: identifier,
		level:      level,
		send:       journal.Send,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the log record to systemd journal.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := mapLevelToPriority(r.Level)

	fields := map[string]string{
		"PRIORITY":          strconv.Itoa(int(priority)),
		"SYSLOG_IDENTIFIER": h.identifier,
	}
	for k, v := range h.preset {
		fields[k] = v
	}
	r.Attrs(func(attr slog.Attr) bool {
		addAttrToFields(fields, attr, h.groups)
		return true
	})

	if err := h.send(r.Message, priority, fields); err != nil {
		return fmt.Errorf("journal send: %w", err)
	}
	return nil
}

// WithAttrs returns a new handler with additional attributes.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = maps.Clone(h.preset)
	if clone.preset == nil {
		clone.preset = make(map[string]string, len(attrs))
	}
	for _, attr := range attrs {
		addAttrToFields(clone.preset, attr, h.groups)
	}
	return &clone
}

// WithGroup returns a new handler with a group prefix.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clip(h.groups), name)
	return &clone
}

func mapLevelToPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// addAttrToFields flattens attr into journal fields, prefixing group names.
func addAttrToFields(fields map[string]string, attr slog.Attr, groups []string) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	key := journalKey(append(slices.Clip(groups), attr.Key))
	if key == "" {
		return
	}

	switch attr.Value.Kind() {
	case slog.KindGroup:
		nested := append(slices.Clip(groups), attr.Key)
		for _, a := range attr.Value.Group() {
			addAttrToFields(fields, a, nested)
		}
	case slog.KindTime:
		fields[key] = attr.Value.Time().Format(time.RFC3339Nano)
	default:
		fields[key] = attr.Value.String()
	}
}

// journalKey builds a field name the journal accepts: upper-case letters,
// digits and underscores, not starting with an underscore or a digit.
func journalKey(parts []string) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteByte('_')
		}
		for _, r := range strings.ToUpper(part) {
			switch {
			case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				b.WriteRune(r)
			default:
				b.WriteByte('_')
			}
		}
	}
	return strings.TrimLeft(b.String(), "_0123456789")
}

// IsJournalAvailable checks if systemd journal is available.
func IsJournalAvailable() bool {
	return journal.Enabled()
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/effectnode/internal/api/models"
	"github.com/smazurov/effectnode/internal/events"
	"github.com/smazurov/effectnode/internal/logging"
)

// registerLogRoutes registers the log snapshot, level and streaming endpoints.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Snapshot of the in-memory log buffer, oldest first",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		var entries []logging.LogEntry
		if buffer := logging.GetBuffer(); buffer != nil {
			entries = buffer.ReadAll()
		}

		if input.Module != "" {
			filtered := entries[:0:0]
			for _, e := range entries {
				if e.Module == input.Module {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}
		if input.Limit > 0 && input.Limit < len(entries) {
			entries = entries[len(entries)-input.Limit:]
		}
		if entries == nil {
			entries = []logging.LogEntry{}
		}

		return &models.LogsResponse{
			Body: models.LogsData{Entries: entries, Count: len(entries)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-log-levels",
		Method:      http.MethodGet,
		Path:        "/api/logs/levels",
		Summary:     "Log Levels",
		Description: "Current level of every module logger",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.LogLevelsResponse, error) {
		resp := &models.LogLevelsResponse{}
		resp.Body.Levels = logging.ModuleLevels()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logs/levels/{module}",
		Summary:     "Set Log Level",
		Description: "Change a module's log level until the next restart",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(_ context.Context, input *models.SetLogLevelRequest) (*models.LogLevelsResponse, error) {
		if !logging.SetModuleLevel(input.Module, input.Body.Level) {
			return nil, huma.Error400BadRequest(fmt.Sprintf("Unknown level %q", input.Body.Level))
		}
		s.logger.Info("Log level changed", "target_module", input.Module, "level", input.Body.Level)

		resp := &models.LogLevelsResponse{}
		resp.Body.Levels = logging.ModuleLevels()
		return resp, nil
	})

	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends historical logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if buffer := logging.GetBuffer(); buffer != nil {
			for _, entry := range buffer.ReadAll() {
				if err := send.Data(LogEvent(entry)); err != nil {
					return
				}
			}
		}

		eventCh := make(chan any, 100) // Larger buffer for logs
		defer events.Forward(s.eventBus, eventCh, events.Of[events.LogEntryEvent]())()

		pump(ctx, eventCh, send)
	})
}

// LogEvent converts a buffered entry into its bus form.
func LogEvent(entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}

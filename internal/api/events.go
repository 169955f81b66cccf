package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/effectnode/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of effect state changes, motor rotations, received IR codes and device faults",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"effect-state-changed": events.EffectStateChangedEvent{},
		"effect-forced-stop":   events.EffectForcedStopEvent{},
		"register-degraded":    events.RegisterDegradedEvent{},
		"motor-rotation":       events.MotorRotationEvent{},
		"ir-received":          events.InfraredReceivedEvent{},
		"listener-stopped":     events.ListenerStoppedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)
		defer events.Forward(s.eventBus, eventCh,
			events.Of[events.EffectStateChangedEvent](),
			events.Of[events.EffectForcedStopEvent](),
			events.Of[events.RegisterDegradedEvent](),
			events.Of[events.MotorRotationEvent](),
			events.Of[events.InfraredReceivedEvent](),
			events.Of[events.ListenerStoppedEvent](),
		)()

		pump(ctx, eventCh, send)
	})
}

// pump relays events to an SSE client until the request ends or a write fails.
func pump(ctx context.Context, ch <-chan any, send sse.Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := send.Data(ev); err != nil {
				return
			}
		}
	}
}

package events

// Event type constants for kelindar/event.
const (
	TypeEffectStateChanged uint32 = iota + 1
	TypeEffectForcedStop
	TypeRegisterDegraded
	TypeMotorRotation
	TypeInfraredReceived
	TypeListenerStopped
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// EffectStateChangedEvent is published on every effect controller transition.
// Used for indicator control and SSE clients.
type EffectStateChangedEvent struct {
	Effect    string `json:"effect" example:"lamp_bar" doc:"Effect name"`
	OldState  string `json:"old_state" example:"idle" doc:"State before the transition"`
	NewState  string `json:"new_state" example:"running" doc:"State after the transition"`
	Error     string `json:"error,omitempty" doc:"Reason for an unexpected transition"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EffectStateChangedEvent.
func (e EffectStateChangedEvent) Type() uint32 { return TypeEffectStateChanged }

// GetEffect implements the EffectStateEvent interface for the indicator.
func (e EffectStateChangedEvent) GetEffect() string {
	return e.Effect
}

// IsActive implements the EffectStateEvent interface for the indicator.
func (e EffectStateChangedEvent) IsActive() bool {
	return e.NewState == "running" || e.NewState == "paused"
}

// EffectForcedStopEvent is published when an effect task had to be reaped.
type EffectForcedStopEvent struct {
	Effect    string `json:"effect" example:"lamp_bar" doc:"Effect name"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EffectForcedStopEvent.
func (e EffectForcedStopEvent) Type() uint32 { return TypeEffectForcedStop }

// RegisterDegradedEvent is published when a register write bypassed its lock.
type RegisterDegradedEvent struct {
	Register  string `json:"register" example:"shift" doc:"Register name"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RegisterDegradedEvent.
func (e RegisterDegradedEvent) Type() uint32 { return TypeRegisterDegraded }

// MotorRotationEvent is published when a stepper rotation is scheduled.
type MotorRotationEvent struct {
	Axis      string  `json:"axis" example:"pitch" doc:"Axis name"`
	Degrees   float64 `json:"degrees" example:"90" doc:"Requested angle, positive is clockwise"`
	Steps     int     `json:"steps" example:"128" doc:"Scheduled steps"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for MotorRotationEvent.
func (e MotorRotationEvent) Type() uint32 { return TypeMotorRotation }

// InfraredReceivedEvent is published when the IR receiver delivers a code.
type InfraredReceivedEvent struct {
	Code      string `json:"code" example:"A1B2C3" doc:"Received IR code"`
	Evicted   bool   `json:"evicted" doc:"Whether an unread code was replaced"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for InfraredReceivedEvent.
func (e InfraredReceivedEvent) Type() uint32 { return TypeInfraredReceived }

// ListenerStoppedEvent is published when a UART listener dies on a read error.
type ListenerStoppedEvent struct {
	Port      string `json:"port" example:"/dev/ttyS2" doc:"Serial port"`
	Error     string `json:"error" doc:"Read error that ended the listener"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ListenerStoppedEvent.
func (e ListenerStoppedEvent) Type() uint32 { return TypeListenerStopped }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"effects" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

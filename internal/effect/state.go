package effect

import "time"

// State represents the lifecycle state of an effect controller.
type State string

// Controller states.
const (
	StateIdle     State = "idle"     // No task, owned bits zeroed
	StateRunning  State = "running"  // Task alive and writing
	StatePaused   State = "paused"   // Task alive, polling without writing
	StateStopping State = "stopping" // Cancelled, waiting for the task to exit
)

// Active reports whether a task is alive in this state.
func (s State) Active() bool {
	return s == StateRunning || s == StatePaused || s == StateStopping
}

// Snapshot is a point-in-time view of a controller.
type Snapshot struct {
	Name      string    `json:"name"`
	State     State     `json:"state"`
	Powered   bool      `json:"powered"`
	TaskAlive bool      `json:"task_alive"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Ticks     uint64    `json:"ticks"`
	Forced    int       `json:"forced_stops"`
	LastError string    `json:"last_error,omitempty"`
}

// StateChangeCallback is called after every state transition, outside any
// controller lock. err carries the reason for unexpected transitions (a task
// panic), nil otherwise.
type StateChangeCallback func(name string, oldState, newState State, err error)

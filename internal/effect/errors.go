package effect

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	ErrCodeNotInitialized = "NOT_INITIALIZED"
	ErrCodeAlreadyActive  = "ALREADY_ACTIVE"
	ErrCodeNotActive      = "NOT_ACTIVE"
	ErrCodeSpawnFailed    = "SPAWN_FAILED"
	ErrCodeTimeout        = "TIMEOUT"
)

// Error is returned by controller operations that cannot be carried out in
// the controller's current state.
type Error struct {
	Code    string
	Effect  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Effect, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Effect, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new effect error.
func NewError(code, effect, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Effect:  effect,
		Message: message,
		Cause:   cause,
	}
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

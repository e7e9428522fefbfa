package engine

import (
	"errors"
	"fmt"
)

// ConfigError reports a trigger or program that the engine refuses to run.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string

	// Event is the event type involved, if any.
	Event string

	// Thread is the thread involved, if any.
	Thread string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeNotPublic indicates an event rejected by a public or restricted
	// trigger.
	ErrCodeNotPublic ConfigErrorCode = "NOT_PUBLIC"

	// ErrCodeSyncPointConflict indicates a thread that requests and blocks
	// the same event at one sync point, under strict checking.
	ErrCodeSyncPointConflict ConfigErrorCode = "SYNC_POINT_CONFLICT"

	// ErrCodeEmptyEvent indicates a trigger with an empty event name.
	ErrCodeEmptyEvent ConfigErrorCode = "EMPTY_EVENT"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Thread != "" {
		return fmt.Sprintf("%s: %s (thread=%s)", e.Code, e.Message, e.Thread)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// EffectError wraps an error returned by an effect handler.
type EffectError struct {
	Event Event
	Err   error
}

// Error implements the error interface.
func (e *EffectError) Error() string {
	return fmt.Sprintf("effect %q failed: %v", e.Event.Name, e.Err)
}

// Unwrap returns the handler's error.
func (e *EffectError) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if the error is a ConfigError of any code.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsNotPublicError returns true if a trigger was rejected because its
// event is not allowed through the trigger used.
func IsNotPublicError(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeNotPublic
	}
	return false
}

// IsConflictError returns true if the error reports a request/block
// conflict inside one sync point.
func IsConflictError(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeSyncPointConflict
	}
	return false
}

// IsEffectError returns true if the error came from an effect handler.
func IsEffectError(err error) bool {
	var ee *EffectError
	return errors.As(err, &ee)
}

// ErrSnapshotAlreadySet is returned by UseSnapshot when a listener is
// already installed.
var ErrSnapshotAlreadySet = errors.New("snapshot listener already set")

func newNotPublicError(name string, message string) *ConfigError {
	return &ConfigError{Code: ErrCodeNotPublic, Message: message, Event: name}
}

func newConflictError(thread string, names []string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeSyncPointConflict,
		Message: fmt.Sprintf("sync point requests and blocks %v", names),
		Thread:  thread,
	}
}

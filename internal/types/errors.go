package types

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a request that violates an invariant before any
// state was changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// ConcurrencyConflictError reports a lost optimistic-concurrency race on a
// task update. Callers retry on fresh state.
type ConcurrencyConflictError struct {
	TaskID string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("task %s: concurrent update conflict", e.TaskID)
}

// ModelProviderError wraps a failure from the model provider. Retryable
// distinguishes transient faults (rate limits, connectivity) from
// permanent ones (bad credentials, context overflow).
type ModelProviderError struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *ModelProviderError) Error() string {
	return fmt.Sprintf("model provider %s: %v", e.Provider, e.Err)
}

func (e *ModelProviderError) Unwrap() error { return e.Err }

// SelfReflectionInconclusiveError is returned when the reflection turn
// produced no recognized verdict after all retries.
type SelfReflectionInconclusiveError struct {
	TaskID   string
	Attempts int
}

func (e *SelfReflectionInconclusiveError) Error() string {
	return fmt.Sprintf("task %s: self-reflection inconclusive after %d attempts", e.TaskID, e.Attempts)
}

// CancellationRequestedError signals that a task was cancelled while an
// execution turn was in flight.
type CancellationRequestedError struct {
	TaskID string
}

func (e *CancellationRequestedError) Error() string {
	return fmt.Sprintf("task %s: cancellation requested", e.TaskID)
}

// InvalidTransitionError reports a status change the state machine forbids.
type InvalidTransitionError struct {
	TaskID string
	From   TaskStatus
	To     TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: invalid transition %s -> %s", e.TaskID, e.From, e.To)
}

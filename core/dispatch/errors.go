package dispatch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrRepositoryNil is returned when the dispatcher is built without a repository.
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrBrokerNil is returned when the dispatcher is built without a broker.
	ErrBrokerNil = errors.New("broker cannot be nil")

	// ErrAlreadyStarted is returned when starting a running dispatcher.
	ErrAlreadyStarted = errors.New("dispatcher already started")

	// ErrNotStarted is returned when stopping a dispatcher that is not running.
	ErrNotStarted = errors.New("dispatcher not started")

	// ErrHealthcheckFailed wraps dispatcher health failures.
	ErrHealthcheckFailed = errors.New("dispatcher healthcheck failed")

	// ErrDispatcherNotRunning is joined into health errors when workers are down.
	ErrDispatcherNotRunning = errors.New("dispatcher is not running")
)

// HandlerError reports a failed side-effect handler. Delivery still proceeds,
// but the attempt counts toward the retry budget.
type HandlerError struct {
	EventType string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %q: %v", e.EventType, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// RetryExhaustedError is the terminal failure carried by operator alerts.
type RetryExhaustedError struct {
	EventID  uuid.UUID
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("event %s failed after %d attempts: %v", e.EventID, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

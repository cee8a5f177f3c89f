package eventlog

import "errors"

var (
	// ErrNotFound is returned when no event exists for an ID.
	ErrNotFound = errors.New("event not found")

	// ErrNilEvent is returned when a nil event is appended.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrEventExists is returned when appending an event whose ID is already stored.
	ErrEventExists = errors.New("event already exists")

	// ErrNotProcessing is returned when completing or failing an event that is not claimed.
	ErrNotProcessing = errors.New("event is not in processing state")

	// ErrLockLost is returned when settling an event whose lock now belongs to another worker.
	ErrLockLost = errors.New("event is locked by another worker")

	// ErrNotReplayable is returned when replaying an event that has not failed.
	ErrNotReplayable = errors.New("only failed events can be replayed")

	// ErrEmptyType is returned when publishing without an event type.
	ErrEmptyType = errors.New("event type is required")

	// ErrInvalidPayload is returned when the payload is not valid JSON.
	ErrInvalidPayload = errors.New("payload must be valid JSON")

	// ErrRepositoryNil is returned when a component is built without a repository.
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrAlreadyStarted is returned when starting a running reaper.
	ErrAlreadyStarted = errors.New("lock reaper already started")

	// ErrNotStarted is returned when stopping a reaper that is not running.
	ErrNotStarted = errors.New("lock reaper not started")

	// ErrHealthcheckFailed wraps health failures of event log components.
	ErrHealthcheckFailed = errors.New("event log healthcheck failed")

	// ErrReaperNotRunning is joined into health errors when the lock reaper is down.
	ErrReaperNotRunning = errors.New("lock reaper is not running")
)

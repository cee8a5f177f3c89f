package eventlog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PublisherRepository appends new events.
type PublisherRepository interface {
	// Append stores a pending event and assigns its Sequence.
	Append(ctx context.Context, ev *Event) error
}

// DispatcherRepository drives events through dispatch.
type DispatcherRepository interface {
	// Claim atomically moves up to limit eligible pending events to processing.
	// An event is eligible when it is available and none of its channels has an
	// event in processing. Claimed events are returned in delivery order.
	Claim(ctx context.Context, workerID uuid.UUID, limit int, lockFor time.Duration) ([]*Event, error)

	// Complete marks a processing event held by workerID as completed.
	Complete(ctx context.Context, id, workerID uuid.UUID) error

	// Fail records a failed attempt by workerID. The event returns to pending
	// after backoff while retries remain, otherwise it becomes failed.
	// Returns the new status.
	Fail(ctx context.Context, id, workerID uuid.UUID, errMsg string, backoff time.Duration) (Status, error)
}

// ReaderRepository serves audit lookups.
type ReaderRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*Event, error)
	List(ctx context.Context, filter Filter) ([]*Event, error)
}

// OperatorRepository exposes operator overrides.
type OperatorRepository interface {
	// Replay resets a failed event to pending with a fresh retry budget.
	Replay(ctx context.Context, id uuid.UUID) error
}

// LockReleaser returns events held past their lock back to pending.
type LockReleaser interface {
	ReleaseExpired(ctx context.Context) (int, error)
}

// Store is the full event log contract.
type Store interface {
	PublisherRepository
	DispatcherRepository
	ReaderRepository
	OperatorRepository
	LockReleaser
}

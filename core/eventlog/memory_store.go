package eventlog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MemoryStoreStats provides observability for the in-memory store.
type MemoryStoreStats struct {
	Pending           int
	Processing        int
	Completed         int
	Failed            int
	ExpiredLocksFreed int64
}

// MemoryStore implements Store for tests and local development.
// All state transitions happen under a single mutex, which makes Claim the
// atomic pending -> processing step.
type MemoryStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*Event

	// pending and processing hold ids in arrival order
	pending    []uuid.UUID
	processing []uuid.UUID

	// busy counts processing events per channel
	busy map[string]int
	seq  int64
	now  func() time.Time

	expiredLocksFreed atomic.Int64
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithMemoryStoreClock overrides the time source.
func WithMemoryStoreClock(now func() time.Time) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStore creates an empty in-memory event log.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		events: make(map[uuid.UUID]*Event),
		busy:   make(map[string]int),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// Append stores a new pending event.
func (ms *MemoryStore) Append(_ context.Context, ev *Event) error {
	if ev == nil {
		return ErrNilEvent
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.events[ev.ID]; exists {
		return fmt.Errorf("%w: %s", ErrEventExists, ev.ID)
	}

	ms.seq++
	stored := ev.Clone()
	stored.Sequence = ms.seq
	stored.Status = StatusPending
	if stored.AvailableAt.IsZero() {
		stored.AvailableAt = stored.CreatedAt
	}
	ms.events[stored.ID] = stored
	ms.pending = append(ms.pending, stored.ID)

	ev.Sequence = stored.Sequence
	ev.Status = stored.Status
	ev.AvailableAt = stored.AvailableAt
	return nil
}

// Claim moves up to limit eligible events to processing for workerID.
func (ms *MemoryStore) Claim(_ context.Context, workerID uuid.UUID, limit int, lockFor time.Duration) ([]*Event, error) {
	if limit <= 0 {
		limit = 1
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	candidates := make([]*Event, 0, len(ms.pending))
	for _, id := range ms.pending {
		ev := ms.events[id]
		if ev.AvailableAt.After(now) {
			continue
		}
		candidates = append(candidates, ev)
	}
	slices.SortFunc(candidates, func(a, b *Event) int {
		if c := a.AvailableAt.Compare(b.AvailableAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Sequence, b.Sequence)
	})

	// channels held by other workers, plus channels of earlier events that
	// could not be claimed; later events on them must wait
	blocked := make(map[string]struct{}, len(ms.busy))
	for ch := range ms.busy {
		blocked[ch] = struct{}{}
	}
	var claimed []*Event
	lockUntil := now.Add(lockFor)

	for _, ev := range candidates {
		if len(claimed) == limit {
			break
		}
		if anyBlocked(ev.Channels, blocked) {
			for _, ch := range ev.Channels {
				blocked[ch] = struct{}{}
			}
			continue
		}

		until := lockUntil
		worker := workerID
		ev.Status = StatusProcessing
		ev.LockedUntil = &until
		ev.LockedBy = &worker
		for _, ch := range ev.Channels {
			ms.busy[ch]++
		}
		ms.pending = removeID(ms.pending, ev.ID)
		ms.processing = append(ms.processing, ev.ID)
		claimed = append(claimed, ev)
	}

	out := make([]*Event, len(claimed))
	for i, ev := range claimed {
		out[i] = ev.Clone()
	}
	return out, nil
}

// anyBlocked ignores events claimed earlier in the same batch; the batch is
// processed in order by one worker.
func anyBlocked(channels []string, blocked map[string]struct{}) bool {
	for _, ch := range channels {
		if _, ok := blocked[ch]; ok {
			return true
		}
	}
	return false
}

// Complete marks a processing event held by workerID as completed.
func (ms *MemoryStore) Complete(_ context.Context, id, workerID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ev, err := ms.processingEvent(id, workerID)
	if err != nil {
		return err
	}

	now := ms.now()
	ms.release(ev)
	ev.Status = StatusCompleted
	ev.ProcessedAt = &now
	return nil
}

// Fail records a failed attempt and schedules a retry or marks the event failed.
func (ms *MemoryStore) Fail(_ context.Context, id, workerID uuid.UUID, errMsg string, backoff time.Duration) (Status, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ev, err := ms.processingEvent(id, workerID)
	if err != nil {
		return "", err
	}

	ms.release(ev)
	ev.LastError = errMsg

	if ev.RetryCount >= ev.MaxRetries {
		now := ms.now()
		ev.Status = StatusFailed
		ev.ProcessedAt = &now
		return ev.Status, nil
	}

	ev.RetryCount++
	ev.Status = StatusPending
	ev.AvailableAt = ms.now().Add(backoff)
	ms.pending = append(ms.pending, ev.ID)
	return ev.Status, nil
}

// Replay resets a failed event to pending with a fresh retry budget.
func (ms *MemoryStore) Replay(_ context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ev, ok := ms.events[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if ev.Status != StatusFailed {
		return fmt.Errorf("%w: %s is %s", ErrNotReplayable, id, ev.Status)
	}

	ev.Status = StatusPending
	ev.RetryCount = 0
	ev.AvailableAt = ms.now()
	ev.ProcessedAt = nil
	ms.pending = append(ms.pending, ev.ID)
	return nil
}

// ReleaseExpired returns events whose lock has expired to pending.
func (ms *MemoryStore) ReleaseExpired(_ context.Context) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	var expired []*Event
	for _, id := range ms.processing {
		ev := ms.events[id]
		if ev.LockedUntil != nil && ev.LockedUntil.Before(now) {
			expired = append(expired, ev)
		}
	}
	for _, ev := range expired {
		ms.release(ev)
		ev.Status = StatusPending
		ms.pending = append(ms.pending, ev.ID)
	}

	if len(expired) > 0 {
		ms.expiredLocksFreed.Add(int64(len(expired)))
	}
	return len(expired), nil
}

// Get returns a copy of the event.
func (ms *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Event, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ev, ok := ms.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ev.Clone(), nil
}

// List returns events matching filter ordered by sequence.
func (ms *MemoryStore) List(_ context.Context, filter Filter) ([]*Event, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]*Event, 0)
	for _, ev := range ms.events {
		if filter.Match(ev) {
			out = append(out, ev)
		}
	}
	slices.SortFunc(out, func(a, b *Event) int { return cmp.Compare(a.Sequence, b.Sequence) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	for i, ev := range out {
		out[i] = ev.Clone()
	}
	return out, nil
}

// Stats returns counts by status.
func (ms *MemoryStore) Stats() MemoryStoreStats {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	stats := MemoryStoreStats{ExpiredLocksFreed: ms.expiredLocksFreed.Load()}
	for _, ev := range ms.events {
		switch ev.Status {
		case StatusPending:
			stats.Pending++
		case StatusProcessing:
			stats.Processing++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		}
	}
	return stats
}

func (ms *MemoryStore) processingEvent(id, workerID uuid.UUID) (*Event, error) {
	ev, ok := ms.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if ev.Status != StatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrNotProcessing, id)
	}
	if ev.LockedBy == nil || *ev.LockedBy != workerID {
		return nil, fmt.Errorf("%w: %s", ErrLockLost, id)
	}
	return ev, nil
}

// release drops the lock and channel reservations of a processing event.
func (ms *MemoryStore) release(ev *Event) {
	for _, ch := range ev.Channels {
		if ms.busy[ch] <= 1 {
			delete(ms.busy, ch)
		} else {
			ms.busy[ch]--
		}
	}
	ev.LockedUntil = nil
	ev.LockedBy = nil
	ms.processing = removeID(ms.processing, ev.ID)
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	return slices.DeleteFunc(ids, func(v uuid.UUID) bool { return v == id })
}

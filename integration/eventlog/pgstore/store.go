package pgstore

import (
	"cmp"
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/eventgateway/core/eventlog"
	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/integration/database/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the event log schema for pg.Migrate.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// claimLockKey serializes claimers so channel reservations are decided one batch at a time.
const claimLockKey int64 = 0x67617465776179

const columns = `id, sequence, type, source_service, payload, routing_key, channels, correlation_id,
	status, retry_count, max_retries, available_at, locked_until, locked_by, last_error, created_at, processed_at`

var _ eventlog.Store = (*Store)(nil)

// Store is the PostgreSQL implementation of eventlog.Store.
type Store struct {
	pool      *pgxpool.Pool
	now       func() time.Time
	scanLimit int
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for availability and lock expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithScanLimit bounds how many pending events one Claim inspects.
func WithScanLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.scanLimit = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a store over pool. The schema must already be migrated.
func New(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, eventlog.ErrRepositoryNil
	}
	s := &Store{
		pool:      pool,
		now:       time.Now,
		scanLimit: 256,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Append inserts a pending event. It joins a transaction carried by ctx.
func (s *Store) Append(ctx context.Context, ev *eventlog.Event) error {
	if ev == nil {
		return eventlog.ErrNilEvent
	}

	availableAt := ev.AvailableAt
	if availableAt.IsZero() {
		availableAt = ev.CreatedAt
	}
	payload := []byte(ev.Payload)
	if len(payload) == 0 {
		payload = []byte("null")
	}
	channels := ev.Channels
	if channels == nil {
		channels = []string{}
	}

	q := pg.QuerierFromContext(ctx, s.pool)
	err := q.QueryRow(ctx, `
		INSERT INTO gateway_events (id, type, source_service, payload, routing_key, channels,
			correlation_id, status, retry_count, max_retries, available_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, $9, $10, $11)
		RETURNING sequence`,
		ev.ID, ev.Type, ev.SourceService, payload, ev.RoutingKey, channels,
		ev.CorrelationID, ev.RetryCount, ev.MaxRetries, availableAt, ev.CreatedAt,
	).Scan(&ev.Sequence)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", eventlog.ErrEventExists, ev.ID)
		}
		return fmt.Errorf("insert event: %w", err)
	}

	ev.Status = eventlog.StatusPending
	ev.AvailableAt = availableAt
	return nil
}

type candidate struct {
	id       uuid.UUID
	channels []string
}

// Claim moves up to limit eligible pending events to processing.
// Claimers are serialized with a transaction-scoped advisory lock; within it,
// an event is skipped when any of its channels is held by a processing event
// or by an earlier skipped event.
func (s *Store) Claim(ctx context.Context, workerID uuid.UUID, limit int, lockFor time.Duration) ([]*eventlog.Event, error) {
	if limit <= 0 {
		limit = 1
	}
	now := s.now()

	var claimed []*eventlog.Event
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, claimLockKey); err != nil {
			return fmt.Errorf("acquire claim lock: %w", err)
		}

		rows, err := tx.Query(ctx,
			`SELECT DISTINCT unnest(channels) FROM gateway_events WHERE status = 'processing'`)
		if err != nil {
			return fmt.Errorf("load busy channels: %w", err)
		}
		busy, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("load busy channels: %w", err)
		}

		rows, err = tx.Query(ctx, `
			SELECT id, channels FROM gateway_events
			WHERE status = 'pending' AND available_at <= $1
			ORDER BY available_at, sequence
			LIMIT $2`, now, max(s.scanLimit, limit))
		if err != nil {
			return fmt.Errorf("load candidates: %w", err)
		}
		candidates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (candidate, error) {
			var c candidate
			err := row.Scan(&c.id, &c.channels)
			return c, err
		})
		if err != nil {
			return fmt.Errorf("load candidates: %w", err)
		}

		ids := selectClaimable(candidates, busy, limit)
		if len(ids) == 0 {
			return nil
		}

		rows, err = tx.Query(ctx, `
			UPDATE gateway_events
			SET status = 'processing', locked_until = $2, locked_by = $3
			WHERE id = ANY($1) AND status = 'pending'
			RETURNING `+columns, ids, now.Add(lockFor), workerID)
		if err != nil {
			return fmt.Errorf("claim events: %w", err)
		}
		claimed, err = pgx.CollectRows(rows, scanEvent)
		return err
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(claimed, func(a, b *eventlog.Event) int {
		if c := a.AvailableAt.Compare(b.AvailableAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return claimed, nil
}

// selectClaimable applies the per-channel ordering rule to candidates sorted
// in delivery order.
func selectClaimable(candidates []candidate, busy []string, limit int) []uuid.UUID {
	blocked := make(map[string]struct{}, len(busy))
	for _, ch := range busy {
		blocked[ch] = struct{}{}
	}

	ids := make([]uuid.UUID, 0, limit)
	for _, c := range candidates {
		if len(ids) == limit {
			break
		}
		if slices.ContainsFunc(c.channels, func(ch string) bool { _, ok := blocked[ch]; return ok }) {
			for _, ch := range c.channels {
				blocked[ch] = struct{}{}
			}
			continue
		}
		ids = append(ids, c.id)
	}
	return ids
}

// Complete marks a processing event held by workerID as completed.
func (s *Store) Complete(ctx context.Context, id, workerID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE gateway_events
		SET status = 'completed', processed_at = $2, locked_until = NULL, locked_by = NULL
		WHERE id = $1 AND status = 'processing' AND locked_by = $3`, id, s.now(), workerID)
	if err != nil {
		return fmt.Errorf("complete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.settleError(ctx, id)
	}
	return nil
}

// Fail records a failed attempt. The retry decision is made in the same
// statement so concurrent reapers cannot interleave.
func (s *Store) Fail(ctx context.Context, id, workerID uuid.UUID, errMsg string, backoff time.Duration) (eventlog.Status, error) {
	now := s.now()
	var status string
	err := s.pool.QueryRow(ctx, `
		UPDATE gateway_events SET
			last_error   = $2,
			locked_until = NULL,
			locked_by    = NULL,
			status       = CASE WHEN retry_count >= max_retries THEN 'failed' ELSE 'pending' END,
			processed_at = CASE WHEN retry_count >= max_retries THEN $3 ELSE processed_at END,
			available_at = CASE WHEN retry_count >= max_retries THEN available_at ELSE $4 END,
			retry_count  = CASE WHEN retry_count >= max_retries THEN retry_count ELSE retry_count + 1 END
		WHERE id = $1 AND status = 'processing' AND locked_by = $5
		RETURNING status`, id, errMsg, now, now.Add(backoff), workerID).Scan(&status)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return "", s.settleError(ctx, id)
		}
		return "", fmt.Errorf("fail event: %w", err)
	}
	return eventlog.Status(status), nil
}

// Replay resets a failed event to pending with a fresh retry budget.
func (s *Store) Replay(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE gateway_events
		SET status = 'pending', retry_count = 0, available_at = $2, processed_at = NULL
		WHERE id = $1 AND status = 'failed'`, id, s.now())
	if err != nil {
		return fmt.Errorf("replay event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id, eventlog.ErrNotReplayable)
	}
	s.logger.InfoContext(ctx, "event replayed", logger.EventID(id))
	return nil
}

// ReleaseExpired returns events whose lock has expired to pending.
func (s *Store) ReleaseExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE gateway_events
		SET status = 'pending', locked_until = NULL, locked_by = NULL
		WHERE status = 'processing' AND locked_until < $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("release expired locks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Get returns the event with id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*eventlog.Event, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+columns+` FROM gateway_events WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	ev, err := pgx.CollectExactlyOneRow(rows, scanEvent)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", eventlog.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// List returns events matching filter ordered by sequence.
func (s *Store) List(ctx context.Context, filter eventlog.Filter) ([]*eventlog.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+columns+` FROM gateway_events
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR type = $2)
		  AND ($3 = '' OR correlation_id = $3)
		ORDER BY sequence
		LIMIT NULLIF($4, 0)`,
		string(filter.Status), filter.Type, filter.CorrelationID, max(filter.Limit, 0))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// settleError explains why a settle update matched no row: the event is gone,
// no longer processing, or claimed by another worker.
func (s *Store) settleError(ctx context.Context, id uuid.UUID) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM gateway_events WHERE id = $1`, id).Scan(&status)
	switch {
	case pg.IsNotFoundError(err):
		return fmt.Errorf("%w: %s", eventlog.ErrNotFound, id)
	case err != nil:
		return fmt.Errorf("lookup event: %w", err)
	case status == string(eventlog.StatusProcessing):
		return fmt.Errorf("%w: %s", eventlog.ErrLockLost, id)
	default:
		return fmt.Errorf("%w: %s is %s", eventlog.ErrNotProcessing, id, status)
	}
}

// transitionError distinguishes a missing event from one in the wrong state.
func (s *Store) transitionError(ctx context.Context, id uuid.UUID, wrongState error) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM gateway_events WHERE id = $1`, id).Scan(&status)
	switch {
	case pg.IsNotFoundError(err):
		return fmt.Errorf("%w: %s", eventlog.ErrNotFound, id)
	case err != nil:
		return fmt.Errorf("lookup event: %w", err)
	default:
		return fmt.Errorf("%w: %s is %s", wrongState, id, status)
	}
}

func scanEvent(row pgx.CollectableRow) (*eventlog.Event, error) {
	var (
		ev      eventlog.Event
		status  string
		payload []byte
	)
	err := row.Scan(
		&ev.ID, &ev.Sequence, &ev.Type, &ev.SourceService, &payload, &ev.RoutingKey, &ev.Channels,
		&ev.CorrelationID, &status, &ev.RetryCount, &ev.MaxRetries, &ev.AvailableAt,
		&ev.LockedUntil, &ev.LockedBy, &ev.LastError, &ev.CreatedAt, &ev.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	ev.Status = eventlog.Status(status)
	ev.Payload = payload
	return &ev, nil
}

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/eventgateway/core/eventlog"
	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/core/realtime"
)

// Stats provides observability for the dispatcher.
type Stats struct {
	Processed      int64
	Completed      int64
	Retried        int64
	Failed         int64
	HandlerErrors  int64
	Delivered      int64
	ActiveEvents   int32
	IsRunning      bool
	LastActivityAt time.Time
}

// Dispatcher claims pending events, runs side-effect handlers and multicasts
// each event to its channels. A fixed pool of workers polls the store; every
// claimed batch is processed in order by the worker that claimed it.
type Dispatcher struct {
	repo     eventlog.DispatcherRepository
	broker   Multicaster
	handlers map[string][]Handler
	alerter  Alerter
	backoff  Backoff

	workers         int
	batchSize       int
	pollInterval    time.Duration
	lockTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	mu      sync.RWMutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	wake    chan struct{}
	running atomic.Bool

	processed      atomic.Int64
	completed      atomic.Int64
	retried        atomic.Int64
	failed         atomic.Int64
	handlerErrors  atomic.Int64
	delivered      atomic.Int64
	activeEvents   atomic.Int32
	lastActivityAt atomic.Int64
}

// New creates a dispatcher. Handlers may be registered until Start.
func New(repo eventlog.DispatcherRepository, broker Multicaster, opts ...Option) (*Dispatcher, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if broker == nil {
		return nil, ErrBrokerNil
	}

	cfg := DefaultConfig()
	d := &Dispatcher{
		repo:            repo,
		broker:          broker,
		handlers:        make(map[string][]Handler),
		backoff:         ExponentialBackoff(cfg.BackoffBase, cfg.BackoffMax),
		workers:         cfg.Workers,
		batchSize:       cfg.BatchSize,
		pollInterval:    cfg.PollInterval,
		lockTimeout:     cfg.LockTimeout,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		wake:            make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.alerter == nil {
		d.alerter = NewLogAlerter(d.logger)
	}
	return d, nil
}

// NewFromConfig creates a dispatcher from configuration.
// Additional options override config values.
func NewFromConfig(cfg Config, repo eventlog.DispatcherRepository, broker Multicaster, opts ...Option) (*Dispatcher, error) {
	allOpts := append([]Option{
		WithWorkers(cfg.Workers),
		WithBatchSize(cfg.BatchSize),
		WithPollInterval(cfg.PollInterval),
		WithLockTimeout(cfg.LockTimeout),
		WithShutdownTimeout(cfg.ShutdownTimeout),
	}, opts...)
	if cfg.BackoffBase > 0 {
		allOpts = append([]Option{WithBackoff(ExponentialBackoff(cfg.BackoffBase, cfg.BackoffMax))}, allOpts...)
	}
	return New(repo, broker, allOpts...)
}

// RegisterHandlers adds side-effect handlers. Several handlers may share a type.
func (d *Dispatcher) RegisterHandlers(handlers ...Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range handlers {
		d.register(h)
	}
}

func (d *Dispatcher) register(h Handler) {
	if h == nil {
		return
	}
	d.handlers[h.EventType()] = append(d.handlers[h.EventType()], h)
}

// Notify wakes an idle worker without waiting for the next poll tick.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Start runs the worker pool until ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	for range d.workers {
		d.wg.Add(1)
		go d.loop(runCtx, uuid.New())
	}
	d.mu.Unlock()

	d.running.Store(true)
	defer d.running.Store(false)

	d.logger.InfoContext(runCtx, "dispatcher started",
		slog.Int("workers", d.workers),
		slog.Int("batch_size", d.batchSize),
		slog.Duration("poll_interval", d.pollInterval))

	<-runCtx.Done()
	return runCtx.Err()
}

// Stop cancels the workers and waits for in-flight batches.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.cancel == nil {
		d.mu.Unlock()
		return ErrNotStarted
	}
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	cancel()

	d.logger.Info("dispatcher stopping, waiting for active events",
		slog.Duration("timeout", d.shutdownTimeout))

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped cleanly")
		return nil
	case <-time.After(d.shutdownTimeout):
		d.logger.Warn("dispatcher shutdown timeout exceeded, claimed events will be released by lock expiry",
			slog.Duration("timeout", d.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", d.shutdownTimeout)
	}
}

// Run provides errgroup compatibility.
func (d *Dispatcher) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- d.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = d.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// DrainOnce claims and processes events until none are eligible, then returns
// the number processed.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	return d.drain(ctx, uuid.New())
}

// Stats returns dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	var last time.Time
	if ns := d.lastActivityAt.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Processed:      d.processed.Load(),
		Completed:      d.completed.Load(),
		Retried:        d.retried.Load(),
		Failed:         d.failed.Load(),
		HandlerErrors:  d.handlerErrors.Load(),
		Delivered:      d.delivered.Load(),
		ActiveEvents:   d.activeEvents.Load(),
		IsRunning:      d.running.Load(),
		LastActivityAt: last,
	}
}

// Healthcheck reports whether the worker pool is running.
func (d *Dispatcher) Healthcheck(_ context.Context) error {
	if !d.running.Load() {
		return errors.Join(ErrHealthcheckFailed, ErrDispatcherNotRunning)
	}
	return nil
}

func (d *Dispatcher) loop(ctx context.Context, workerID uuid.UUID) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := d.drain(ctx, workerID); err != nil && ctx.Err() == nil {
			d.logger.ErrorContext(ctx, "dispatch pass failed",
				logger.WorkerID(workerID),
				logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// drain stops claiming once ctx is done but always finishes a claimed batch.
func (d *Dispatcher) drain(ctx context.Context, workerID uuid.UUID) (int, error) {
	total := 0
	for ctx.Err() == nil {
		batch, err := d.repo.Claim(ctx, workerID, d.batchSize, d.lockTimeout)
		if err != nil {
			return total, fmt.Errorf("claim events: %w", err)
		}
		if len(batch) == 0 {
			return total, nil
		}
		for _, ev := range batch {
			err := d.process(ev, workerID)
			switch {
			case err == nil:
			case errors.Is(err, eventlog.ErrLockLost):
				d.logger.Warn("event lock expired before settle, left to its new owner",
					logger.WorkerID(workerID),
					logger.EventID(ev.ID))
			default:
				d.logger.Error("failed to settle event",
					logger.WorkerID(workerID),
					logger.EventID(ev.ID),
					logger.Error(err))
			}
			total++
		}
	}
	return total, ctx.Err()
}

// process runs one event to a settled state. It uses its own context so that
// shutdown does not interrupt an event halfway through its channels.
func (d *Dispatcher) process(ev *eventlog.Event, workerID uuid.UUID) error {
	start := time.Now()
	d.activeEvents.Add(1)
	defer d.activeEvents.Add(-1)
	defer func() { d.lastActivityAt.Store(time.Now().UnixNano()) }()
	d.processed.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), d.lockTimeout)
	defer cancel()

	var errs []error

	d.mu.RLock()
	handlers := d.handlers[ev.Type]
	d.mu.RUnlock()
	for _, h := range handlers {
		if err := d.runHandler(ctx, h, ev); err != nil {
			d.handlerErrors.Add(1)
			errs = append(errs, err)
		}
	}

	frame := realtime.Frame{
		Type:      ev.Type,
		EventID:   ev.ID.String(),
		Payload:   ev.Payload,
		Timestamp: ev.CreatedAt,
	}
	delivered := 0
	for _, ch := range ev.Channels {
		n, err := d.broker.Multicast(ctx, ch, frame)
		delivered += n
		if err != nil {
			errs = append(errs, fmt.Errorf("multicast to %q: %w", ch, err))
		}
	}
	d.delivered.Add(int64(delivered))

	if len(errs) == 0 {
		if err := d.repo.Complete(ctx, ev.ID, workerID); err != nil {
			return fmt.Errorf("complete event %s: %w", ev.ID, err)
		}
		d.completed.Add(1)
		d.logger.Debug("event dispatched",
			logger.EventID(ev.ID),
			logger.EventType(ev.Type),
			logger.Count("delivered", delivered),
			logger.Elapsed(start))
		return nil
	}

	return d.handleFailure(ctx, ev, workerID, errors.Join(errs...))
}

func (d *Dispatcher) handleFailure(ctx context.Context, ev *eventlog.Event, workerID uuid.UUID, cause error) error {
	attempt := ev.RetryCount + 1
	status, err := d.repo.Fail(ctx, ev.ID, workerID, cause.Error(), d.backoff(attempt))
	if err != nil {
		return fmt.Errorf("fail event %s: %w", ev.ID, err)
	}

	if status != eventlog.StatusFailed {
		d.retried.Add(1)
		d.logger.Warn("event attempt failed, retrying",
			logger.EventID(ev.ID),
			logger.EventType(ev.Type),
			logger.RetryCount(attempt),
			slog.Int("max_retries", ev.MaxRetries),
			logger.Error(cause))
		return nil
	}

	d.failed.Add(1)
	alert := Alert{
		EventID:       ev.ID,
		EventType:     ev.Type,
		CorrelationID: ev.CorrelationID,
		Attempts:      attempt,
		Err:           &RetryExhaustedError{EventID: ev.ID, Attempts: attempt, Err: cause},
		At:            time.Now(),
	}
	if err := d.alerter.Alert(ctx, alert); err != nil {
		d.logger.Error("operator alert failed",
			logger.EventID(ev.ID),
			logger.Error(err),
			logger.Key("alert_cause", alert.Err.Error()))
	}
	return nil
}

func (d *Dispatcher) runHandler(ctx context.Context, h Handler, ev *eventlog.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{EventType: ev.Type, Err: fmt.Errorf("panic: %v", r)}
			d.logger.Error("handler panicked",
				logger.EventID(ev.ID),
				logger.EventType(ev.Type),
				slog.Any("panic", r))
		}
	}()

	if herr := h.Handle(ctx, ev); herr != nil {
		return &HandlerError{EventType: ev.Type, Err: herr}
	}
	return nil
}

package eventlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/eventgateway/core/logger"
)

// ReaperStats provides observability for the lock reaper.
type ReaperStats struct {
	Released  int64
	IsRunning bool
}

// Reaper periodically returns events stuck in processing (crashed or hung
// workers) back to pending.
type Reaper struct {
	repo            LockReleaser
	interval        time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	released atomic.Int64
}

// ReaperOption configures a Reaper.
type ReaperOption func(*Reaper)

// WithReaperInterval sets how often expired locks are released.
func WithReaperInterval(d time.Duration) ReaperOption {
	return func(r *Reaper) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithReaperShutdownTimeout sets the graceful shutdown timeout.
func WithReaperShutdownTimeout(d time.Duration) ReaperOption {
	return func(r *Reaper) {
		if d > 0 {
			r.shutdownTimeout = d
		}
	}
}

// WithReaperLogger sets the logger.
func WithReaperLogger(l *slog.Logger) ReaperOption {
	return func(r *Reaper) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReaper creates a lock reaper over repo.
func NewReaper(repo LockReleaser, opts ...ReaperOption) (*Reaper, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	r := &Reaper{
		repo:            repo,
		interval:        10 * time.Second,
		shutdownTimeout: 30 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewReaperFromConfig creates a reaper from configuration.
func NewReaperFromConfig(cfg Config, repo LockReleaser, opts ...ReaperOption) (*Reaper, error) {
	allOpts := append([]ReaperOption{
		WithReaperInterval(cfg.LockCheckInterval),
		WithReaperShutdownTimeout(cfg.ShutdownTimeout),
	}, opts...)
	return NewReaper(repo, allOpts...)
}

// Start runs the release loop until ctx is cancelled or Stop is called.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	runCtx := r.ctx
	r.mu.Unlock()

	r.running.Store(true)
	defer r.running.Store(false)

	r.logger.InfoContext(runCtx, "lock reaper started", slog.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		case <-ticker.C:
			r.sweep(runCtx)
		}
	}
}

// Stop cancels the loop and waits for an in-flight sweep.
func (r *Reaper) Stop() error {
	r.mu.Lock()
	if r.cancel == nil {
		r.mu.Unlock()
		return ErrNotStarted
	}
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("lock reaper stopped")
		return nil
	case <-time.After(r.shutdownTimeout):
		return fmt.Errorf("lock reaper shutdown timeout exceeded after %s", r.shutdownTimeout)
	}
}

// Run provides errgroup compatibility.
func (r *Reaper) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- r.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = r.Stop()
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

// ReleaseOnce performs a single release pass.
func (r *Reaper) ReleaseOnce(ctx context.Context) (int, error) {
	n, err := r.repo.ReleaseExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("release expired locks: %w", err)
	}
	if n > 0 {
		r.released.Add(int64(n))
		r.logger.WarnContext(ctx, "released expired event locks", logger.Count("released", n))
	}
	return n, nil
}

// Stats returns reaper counters.
func (r *Reaper) Stats() ReaperStats {
	return ReaperStats{
		Released:  r.released.Load(),
		IsRunning: r.running.Load(),
	}
}

// Healthcheck reports whether the release loop is running.
func (r *Reaper) Healthcheck(_ context.Context) error {
	if !r.running.Load() {
		return errors.Join(ErrHealthcheckFailed, ErrReaperNotRunning)
	}
	return nil
}

func (r *Reaper) sweep(ctx context.Context) {
	r.mu.Lock()
	if r.cancel == nil {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	if _, err := r.ReleaseOnce(ctx); err != nil && ctx.Err() == nil {
		r.logger.ErrorContext(ctx, "lock reaper sweep failed", logger.Error(err))
	}
}

// Package worker contains the fulfillment pipeline that turns a paid order
// into a delivered license: render the invoice PDF, persist the invoice
// record, email the key. It is decoupled from the HTTP layer: the api package
// holds a worker.Enqueuer interface and calls Enqueue; it never imports the
// concrete Runner or Job types.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ─── ENQUEUER INTERFACE ───────────────────────────────────────────────────────

// Enqueuer is the narrow interface the api package uses to hand off a paid
// order. Keeping it here (not in api/) means api/ does not need to import
// worker/ internals.
//
// The concrete implementation is *Runner. In tests, any struct with an
// Enqueue method satisfies the interface.
type Enqueuer interface {
	Enqueue(ctx context.Context, orderID uuid.UUID) error
}

// ─── STORAGE DEPENDENCY ──────────────────────────────────────────────────────

// OrderQueue is the slice of the store the Runner needs: the recovery poller
// and the terminal-failure write. *store.Store satisfies it.
type OrderQueue interface {
	ListPendingFulfillments(ctx context.Context) ([]uuid.UUID, error)
	MarkOrderFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. All fields have
// sensible defaults if zero-valued; call DefaultRunnerConfig() to get them.
type RunnerConfig struct {
	// Workers is the number of concurrent fulfillment goroutines. Default: 3.
	Workers int

	// PollInterval is how often the fallback poller checks for paid orders
	// that were missed by the in-process channel (e.g. after a crash or
	// restart). Default: 30s.
	PollInterval time.Duration

	// JobTimeout is the per-job context deadline. Rendering is fast; most of
	// the allowance is for the SMTP round trip. Default: 2 minutes.
	JobTimeout time.Duration

	// MaxRetries is the number of times a job is retried before the order is
	// marked as permanently failed. Default: 3.
	MaxRetries int
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:      3,
		PollInterval: 30 * time.Second,
		JobTimeout:   2 * time.Minute,
		MaxRetries:   3,
	}
}

// Runner manages a pool of worker goroutines. It accepts orders via an
// in-process channel (fast path, used right after payment confirmation) and
// also polls the database periodically to pick up any paid orders that were
// in flight when the process last restarted (recovery path).
type Runner struct {
	job    *Job
	orders OrderQueue
	cfg    RunnerConfig
	logger *slog.Logger

	queue chan uuid.UUID
	wg    sync.WaitGroup
}

// NewRunner constructs a Runner. Call Start() to begin processing.
func NewRunner(job *Job, orders OrderQueue, cfg RunnerConfig, logger *slog.Logger) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}

	return &Runner{
		job:    job,
		orders: orders,
		cfg:    cfg,
		logger: logger,
		// Buffer = Workers*2 so Enqueue never blocks under normal load.
		queue: make(chan uuid.UUID, cfg.Workers*2),
	}
}

// Enqueue pushes an orderID onto the in-process channel. It satisfies the
// Enqueuer interface. If the channel is full (very unlikely given the buffer
// sizing) it returns an error rather than blocking the HTTP response.
func (r *Runner) Enqueue(_ context.Context, orderID uuid.UUID) error {
	select {
	case r.queue <- orderID:
		r.logger.Info("worker: enqueued order", "order_id", orderID)
		return nil
	default:
		return errors.New("worker: queue is full, order will be picked up by poller")
	}
}

// Start launches the worker pool and the fallback poller. It blocks until ctx
// is cancelled. Call it in a goroutine from main:
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "poll_interval", r.cfg.PollInterval)

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Add(1)
	go r.poll(ctx)

	r.wg.Wait()
	r.logger.Info("worker: stopped")
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)
	log.Info("worker: goroutine started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker: goroutine stopping")
			return
		case orderID := <-r.queue:
			r.runWithRetry(ctx, orderID, log)
		}
	}
}

// poll queries the database on PollInterval for paid orders that were not
// delivered via the channel (e.g. orders from before a restart).
func (r *Runner) poll(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	// Run once immediately on startup to pick up anything from before restart.
	r.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context) {
	ids, err := r.orders.ListPendingFulfillments(ctx)
	if err != nil {
		r.logger.Error("worker: poll failed", "error", err)
		return
	}
	for _, id := range ids {
		select {
		case r.queue <- id:
			r.logger.Debug("worker: poller enqueued order", "order_id", id)
		default:
			// Queue full, will be picked up next poll cycle.
		}
	}
}

// runWithRetry executes the job up to MaxRetries times. After exhausting
// retries it calls MarkOrderFailed so the order is not picked up again.
func (r *Runner) runWithRetry(ctx context.Context, orderID uuid.UUID, log *slog.Logger) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		lastErr = r.job.Run(jobCtx, orderID)
		cancel()

		if lastErr == nil {
			log.Info("worker: fulfillment completed", "order_id", orderID, "attempt", attempt)
			return
		}

		log.Warn("worker: fulfillment attempt failed",
			"order_id", orderID,
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", lastErr,
		)

		if attempt < r.cfg.MaxRetries {
			// Exponential back-off: 2s, 4s, 8s …
			backoff := time.Duration(1<<attempt) * time.Second
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}

	// All retries exhausted, mark the order permanently failed.
	log.Error("worker: fulfillment permanently failed", "order_id", orderID, "error", lastErr)
	failCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.orders.MarkOrderFailed(failCtx, orderID, lastErr.Error()); err != nil {
		log.Error("worker: failed to mark order as failed", "order_id", orderID, "error", err)
	}
}

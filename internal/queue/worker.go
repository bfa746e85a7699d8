package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fillScope/internal/model"
)

// WorkerOptions configure a Worker.
type WorkerOptions struct {
	Concurrency int
	// RateLimit jobs per RateWindow across all processes serving the queue. Zero disables it.
	RateLimit  int
	RateWindow time.Duration
	// MaxAttempts bounds retries of transient failures.
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles each time up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// PollTimeout is how long a consumer blocks waiting for a job.
	PollTimeout time.Duration
	// PromoteInterval is how often delayed jobs and expired leases are checked.
	PromoteInterval time.Duration
	// LeaseTimeout is how long a claimed job may go without a heartbeat before another
	// worker takes it over.
	LeaseTimeout time.Duration
	// Terminal reports errors that must not be retried. Defaults to model.IsTerminal.
	Terminal func(error) bool
}

func (o WorkerOptions) withDefaults() WorkerOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.RateWindow <= 0 {
		o.RateWindow = time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 25
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = time.Hour
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 2 * time.Second
	}
	if o.PromoteInterval <= 0 {
		o.PromoteInterval = 500 * time.Millisecond
	}
	if o.LeaseTimeout <= 0 {
		o.LeaseTimeout = 30 * time.Second
	}
	if o.Terminal == nil {
		o.Terminal = model.IsTerminal
	}
	return o
}

// Worker consumes one queue, dispatching jobs to handlers by name.
type Worker struct {
	broker   *Broker
	queue    string
	opts     WorkerOptions
	handlers map[string]Handler
	limiter  *rateLimiter
	logger   *zap.Logger
}

// NewWorker builds a Worker for queue.
func (b *Broker) NewWorker(queue string, opts WorkerOptions, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()

	w := &Worker{
		broker:   b,
		queue:    queue,
		opts:     opts,
		handlers: make(map[string]Handler),
		logger:   logger.With(zap.String("queue", queue)),
	}
	if opts.RateLimit > 0 {
		w.limiter = b.newRateLimiter(queue, opts.RateLimit, opts.RateWindow)
	}
	return w
}

// Handle registers h for jobs named name.
func (w *Worker) Handle(name string, h Handler) {
	w.handlers[name] = h
}

// Run consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.promoteLoop(ctx)
	})
	for i := 0; i < w.opts.Concurrency; i++ {
		g.Go(func() error {
			return w.consumeLoop(ctx)
		})
	}

	w.logger.Info("worker started", zap.Int("concurrency", w.opts.Concurrency), zap.Int("handlers", len(w.handlers)))
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) promoteLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.PromoteInterval)
	defer ticker.Stop()

	for {
		if _, err := w.broker.promoteDue(ctx, w.queue, 1000); err != nil && ctx.Err() == nil {
			w.logger.Warn("promote delayed jobs failed", zap.Error(err))
		}
		w.reap(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Worker) reap(ctx context.Context) {
	requeued, parked, err := w.broker.reapExpired(ctx, w.queue, 1000, w.opts.MaxAttempts, w.opts.LeaseTimeout)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("reap stalled jobs failed", zap.Error(err))
		}
		return
	}
	if requeued > 0 || parked > 0 {
		w.logger.Warn("reaped stalled jobs", zap.Int("requeued", requeued), zap.Int("failed", parked))
	}
}

func (w *Worker) consumeLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if w.limiter != nil {
			if err := w.limiter.wait(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Warn("rate limiter failed", zap.Error(err))
				sleep(ctx, w.opts.Backoff)
				continue
			}
		}

		job, err := w.broker.claim(ctx, w.queue, w.opts.PollTimeout, w.opts.LeaseTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("claim job failed", zap.Error(err))
			sleep(ctx, w.opts.Backoff)
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, job)
	}
}

// process runs the handler and settles the job on a detached context.
func (w *Worker) process(ctx context.Context, job *Job) {
	logger := w.logger.With(zap.String("job_id", job.ID), zap.String("job", job.Name), zap.Int("attempt", job.Attempts+1))

	stop := w.keepLease(ctx, job, logger)
	handleErr := w.dispatch(ctx, job)
	stop()

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var err error
	switch {
	case handleErr == nil:
		err = w.broker.complete(settleCtx, job)
	case w.isTerminal(handleErr):
		logger.Error("job failed permanently", zap.Error(handleErr))
		err = w.broker.fail(settleCtx, job, handleErr)
	case job.Attempts+1 >= w.opts.MaxAttempts:
		logger.Error("job exhausted attempts", zap.Error(handleErr))
		err = w.broker.fail(settleCtx, job, fmt.Errorf("exhausted %d attempts: %w", w.opts.MaxAttempts, handleErr))
	default:
		delay := Backoff(w.opts.Backoff, w.opts.MaxBackoff, job.Attempts)
		logger.Warn("job failed, retrying", zap.Error(handleErr), zap.Duration("delay", delay))
		err = w.broker.retry(settleCtx, job, delay)
	}
	switch {
	case errors.Is(err, errLeaseLost):
		logger.Warn("lease lost before settling, job was handed to another worker", zap.Error(err))
	case err != nil:
		logger.Error("settle job failed", zap.Error(err))
	}
}

// keepLease renews the job's lease in the background until the returned func is called.
func (w *Worker) keepLease(ctx context.Context, job *Job, logger *zap.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(max(w.opts.LeaseTimeout/3, time.Millisecond))
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			held, err := w.broker.renew(ctx, job, w.opts.LeaseTimeout)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("renew lease failed", zap.Error(err))
				}
				continue
			}
			if !held {
				logger.Warn("lease lost while handling job")
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (w *Worker) dispatch(ctx context.Context, job *Job) (err error) {
	handler, ok := w.handlers[job.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, job.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, *job)
}

func (w *Worker) isTerminal(err error) bool {
	return errors.Is(err, ErrUnknownJob) || w.opts.Terminal(err)
}

// Backoff returns the delay before the retry following the given number of failed attempts.
func Backoff(base, ceiling time.Duration, attempts int) time.Duration {
	delay := base
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= ceiling || delay <= 0 {
			return ceiling
		}
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

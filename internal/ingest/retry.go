package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const maxRetryDelay = 30 * time.Second

// retryPolicy retries failed RPC-backed steps with a doubling delay capped at maxRetryDelay.
// ErrUndecodable is returned at once: re-reading the same log cannot fix its layout.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func newRetryPolicy(maxRetries int, baseDelay time.Duration, logger *zap.Logger) retryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	return retryPolicy{maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

func (p retryPolicy) do(ctx context.Context, op string, fields []zap.Field, fn func(context.Context) error) error {
	delay := p.baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || errors.Is(err, ErrUndecodable) {
			return err
		}
		p.logger.Warn(op+" failed", append(fields, zap.Int("attempt", attempt+1), zap.Error(err))...)
		if attempt >= p.maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

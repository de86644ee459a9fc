package mcs

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultRetryBaseDelay = 200 * time.Millisecond
	maxRetryDelay         = 5 * time.Second
)

// RetryPolicy bounds every backend and record-store call: each attempt gets
// Timeout, and transient failures are retried up to MaxRetries times with
// exponential backoff starting at BaseDelay.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Timeout    time.Duration
}

// Do runs fn under the policy. The error of the last attempt is returned once
// retries are exhausted; non-transient errors are returned immediately.
func (p RetryPolicy) Do(ctx context.Context, logger Logger, op string, fn func(ctx context.Context) error) error {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}

	b := retry.NewExponential(base)
	b = retry.WithCappedDuration(maxRetryDelay, b)
	b = retry.WithMaxRetries(uint64(retries), b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++

		err := p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsTransient(err) {
			return err
		}

		logger.Debug("retrying after transient error", "op", op, "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
}

func (p RetryPolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(ctx)
}

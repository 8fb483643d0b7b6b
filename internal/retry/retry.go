// Package retry implements bounded retry with capped exponential backoff and
// full jitter for upstream calls.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/quantedge/quotegate/config"
	"github.com/quantedge/quotegate/errs"
	"github.com/quantedge/quotegate/internal/observability"
)

// Policy governs how an operation is retried. MaxAttempts counts the first
// attempt, so MaxAttempts=1 disables retries. Sleep and Jitter exist for
// deterministic tests; both have production defaults.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	Sleep       func(ctx context.Context, d time.Duration) error
	Jitter      func(max time.Duration) time.Duration
}

// FromConfig builds a policy from retry settings.
func FromConfig(cfg config.RetrySettings) Policy {
	return Policy{
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		MaxAttempts: cfg.MaxAttempts,
	}
}

// Do runs op until it succeeds, fails with a non-retryable error, the context
// is cancelled, or attempts are exhausted. The delay before attempt n is
// drawn uniformly from [0, min(base*2^(n-1), cap)], so concurrent callers
// hitting the same outage spread out instead of retrying in lockstep.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = fullJitter
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.Multiplier = 2
	bo.MaxInterval = p.MaxDelay
	bo.RandomizationFactor = 0
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errs.New(errs.KindTimeout,
				errs.WithMessage("retry aborted"),
				errs.WithCause(err),
			)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		kind, retryable := errs.Classify(lastErr)
		if !retryable || attempt == attempts {
			return lastErr
		}

		delay := jitter(bo.NextBackOff())
		observability.Log().Warn("retrying after transient failure",
			observability.F("attempt", attempt),
			observability.F("max_attempts", attempts),
			observability.F("kind", string(kind)),
			observability.F("delay", delay.String()),
			observability.F("error", lastErr.Error()),
		)
		observability.Stats().UpstreamRetry()

		if err := sleep(ctx, delay); err != nil {
			return errs.New(errs.KindTimeout,
				errs.WithMessage("retry aborted"),
				errs.WithCause(err),
			)
		}
	}
	return lastErr
}

func fullJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

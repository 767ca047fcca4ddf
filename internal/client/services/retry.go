package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/client/client"
	"github.com/dmitrijs2005/manylla-sync/internal/logging"
	"github.com/sethvargo/go-retry"
)

// withRetry runs f until it succeeds, fails with a non-transient error, or
// the policy gives up. A rate-limit answer stretches the next wait to the
// server's Retry-After.
func withRetry[T any](ctx context.Context, p RetryPolicy, logger logging.Logger, op string, f func(context.Context) (T, error)) (T, error) {
	var retryAfter time.Duration

	b := retry.NewExponential(p.Base)
	b = retry.WithCappedDuration(p.Max, b)
	if p.JitterPct > 0 {
		b = retry.WithJitterPercent(p.JitterPct, b)
	}
	b = retry.WithMaxRetries(p.MaxRetries, b)
	b = honorRetryAfter(&retryAfter, b)

	attempt := 0
	return retry.DoValue(ctx, b, func(ctx context.Context) (T, error) {
		attempt++
		v, err := f(ctx)
		if err == nil {
			return v, nil
		}
		if !client.IsRetryable(err) {
			return v, err
		}

		var rl *client.RateLimitError
		if errors.As(err, &rl) {
			retryAfter = rl.RetryAfter
		}
		logger.Warn(ctx, "transient failure, will retry", "op", op, "attempt", attempt, "error", err)
		return v, retry.RetryableError(err)
	})
}

func honorRetryAfter(wait *time.Duration, next retry.Backoff) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := next.Next()
		if stop {
			return 0, true
		}
		if *wait > d {
			d = *wait
		}
		*wait = 0
		return d, false
	})
}

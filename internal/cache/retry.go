package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/cenkalti/backoff/v5"
)

// fetchWithRetry runs fetcher with exponential backoff. Only transient
// failures are retried; anything else stops at the first attempt.
func (s *Store) fetchWithRetry(key domain.CacheKey, fetcher Fetcher) (any, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.RetryInitial
	policy.MaxInterval = s.opts.RetryMax
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	op := func() (any, error) {
		ctx := s.baseCtx
		if s.opts.FetchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.FetchTimeout)
			defer cancel()
		}

		value, err := fetcher(ctx)
		if err != nil && !domain.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return value, err
	}

	value, err := backoff.Retry(s.baseCtx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(s.opts.RetryAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Debug("fetch attempt failed, retrying", "key", key.String(), "next", next, "error", err)
		}),
	)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return value, err
}

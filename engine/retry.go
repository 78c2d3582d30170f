package engine

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/use-agent/shopcsv/models"
)

// Retrier wraps an Engine and repeats failed fetches immediately, up to
// retries extra attempts. Only *models.FetchError is retried; any other
// error (a cancelled context, for one) ends the loop at once.
//
// When every attempt fails the error of the last attempt is returned
// unchanged.
type Retrier struct {
	engine  Engine
	retries int
	log     zerolog.Logger
}

// NewRetrier creates a Retrier. A negative retries is treated as zero.
func NewRetrier(e Engine, retries int, log zerolog.Logger) *Retrier {
	if retries < 0 {
		retries = 0
	}
	return &Retrier{engine: e, retries: retries, log: log}
}

func (r *Retrier) Name() string { return r.engine.Name() }

// Fetch satisfies Engine.
func (r *Retrier) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	var (
		result  *FetchResult
		attempt int
	)

	op := func() error {
		attempt++
		res, err := r.engine.Fetch(ctx, req)
		if err != nil {
			var fe *models.FetchError
			if !errors.As(err, &fe) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}

	notify := func(err error, _ time.Duration) {
		r.log.Warn().
			Err(err).
			Str("url", req.URL).
			Int("attempt", attempt).
			Int("max_attempts", r.retries+1).
			Msg("fetch failed, retrying")
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(r.retries)),
		ctx,
	)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}

	if attempt > 1 {
		r.log.Info().Str("url", req.URL).Int("attempt", attempt).Msg("fetch succeeded after retry")
	}
	return result, nil
}

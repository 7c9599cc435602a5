// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package retry runs a task until it succeeds, reports a permanent failure or
// runs out of attempts, sleeping an exponentially growing interval between
// attempts.
package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cartertinney/envmonitor/internal/log"
	"github.com/cartertinney/envmonitor/internal/wallclock"
)

const (
	DefaultBase = 250 * time.Millisecond
	DefaultCap  = 15 * time.Second
)

type (
	// Task is a single attempt. It reports whether a failure is worth
	// retrying.
	Task = func(context.Context) (retryable bool, err error)

	// Backoff doubles the wait after every failed attempt, from Base up to
	// Cap. The zero value retries forever with the default bounds.
	Backoff struct {
		// Attempts bounds the number of calls to the task. Zero is unbounded.
		Attempts uint64

		Base time.Duration
		Cap  time.Duration

		// Budget bounds the total time spent, including waits.
		Budget time.Duration

		// Spread is the relative jitter applied to each wait, e.g. 0.1 for
		// ±10%. Zero disables jitter.
		Spread float64

		Logger *slog.Logger
	}
)

// Run calls the task until it succeeds or the backoff gives up, returning the
// last error. Context cancellation during a wait returns the context's cause.
func (b *Backoff) Run(ctx context.Context, name string, task Task) error {
	if b.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = wallclock.Instance.WithTimeoutCause(
			ctx,
			b.Budget,
			context.DeadlineExceeded,
		)
		defer cancel()
	}

	l := log.Wrap(b.Logger)
	for attempt := uint64(1); ; attempt++ {
		retryable, err := task(ctx)
		if err == nil {
			if attempt > 1 {
				l.Info(ctx, "retry succeeded",
					slog.String("task", name),
					slog.Uint64("attempt", attempt),
				)
			}
			return nil
		}

		wait := b.wait(ctx, attempt, retryable)
		if wait == 0 {
			l.Warn(ctx, "retry abandoned",
				slog.String("task", name),
				slog.Uint64("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return err
		}

		l.Debug(ctx, "retrying",
			slog.String("task", name),
			slog.Uint64("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
		select {
		case <-wallclock.Instance.After(wait):
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}

// Wait returns the interval before the next attempt, or zero to stop.
func (b *Backoff) wait(
	ctx context.Context,
	attempt uint64,
	retryable bool,
) time.Duration {
	if !retryable || attempt == b.Attempts || ctx.Err() != nil {
		return 0
	}

	base := b.Base
	if base <= 0 {
		base = DefaultBase
	}
	ceiling := b.Cap
	if ceiling <= 0 {
		ceiling = DefaultCap
	}
	if ceiling < base {
		ceiling = base
	}

	d := min(math.Pow(2, float64(attempt-1))*float64(base), float64(ceiling))
	if b.Spread > 0 {
		// #nosec G404
		d *= 1 + b.Spread*(2*rand.Float64()-1)
	}
	return max(time.Duration(d), time.Millisecond)
}

// Package retry polls a predicate under an explicit attempt/interval policy.
package retry

import (
	"context"
	"errors"
	"time"
)

var ErrExhausted = errors.New("retry attempts exhausted")

type Policy struct {
	Attempts int
	Interval time.Duration
	// Backoff multiplies the interval after every attempt. Zero or one keeps
	// the interval fixed.
	Backoff float64
	// Sleep replaces the context-aware wait between attempts.
	Sleep func(ctx context.Context, d time.Duration) error
}

func Fixed(attempts int, interval time.Duration) Policy {
	return Policy{Attempts: attempts, Interval: interval}
}

func Exponential(attempts int, interval time.Duration) Policy {
	return Policy{Attempts: attempts, Interval: interval, Backoff: 2}
}

// Poll calls fn until it reports done, returns an error, or the policy runs
// out. fn is called at most Attempts times and the policy only sleeps between
// calls, never after the last one.
func Poll(ctx context.Context, p Policy, fn func(attempt int) (bool, error)) error {
	interval := p.Interval
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		done, err := fn(attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == p.Attempts {
			break
		}
		if err := p.sleep(ctx, interval); err != nil {
			return err
		}
		if p.Backoff > 1 {
			interval = time.Duration(float64(interval) * p.Backoff)
		}
	}
	return ErrExhausted
}

// Do retries fn until it succeeds. The last error is returned when the
// attempts run out.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	var last error
	err := Poll(ctx, p, func(attempt int) (bool, error) {
		last = fn(attempt)
		return last == nil, nil
	})
	if errors.Is(err, ErrExhausted) && last != nil {
		return last
	}
	return err
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
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

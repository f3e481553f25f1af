package assistant

import (
	"context"
	"math/rand"
	"time"

	"moodvox/internal/fault"
)

// RetryPolicy applies to ServiceUnavailable outcomes only. Zero Attempts
// means a single call.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

func retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	initial := p.Initial
	if initial <= 0 {
		initial = 250 * time.Millisecond
	}

	var (
		v   T
		err error
	)
	for attempt := 0; ; attempt++ {
		v, err = fn(ctx)
		if err == nil || fault.KindOf(err) != fault.ServiceUnavailable || attempt >= p.Attempts {
			return v, err
		}
		if !sleepWithContext(ctx, withJitter(expBackoff(attempt, initial, p.Max))) {
			return v, err
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func expBackoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt <= 0 {
		return initial
	}
	d := initial << attempt
	if d <= 0 {
		return max
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	// +/-20%
	j := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(d) * j)
}

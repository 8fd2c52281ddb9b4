package service

import (
	"context"
	"math"
	"math/rand"
	"time"
)

const maxShift = 62

// exponential returns base * 2^attempt, capped at max
func exponential(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}

	multiplier := int64(1) << attempt
	delay := time.Duration(math.MaxInt64)
	if int64(base) <= math.MaxInt64/multiplier {
		delay = time.Duration(int64(base) * multiplier)
	}
	if max > 0 && delay > max {
		delay = max
	}
	return delay
}

// fullJitter returns a random duration in [0, delay)
func fullJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(delay)))
}

// sleepWithContext sleeps for d unless ctx is done first
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package backoff computes jittered exponential retry delays.
package backoff

import (
	"context"
	"math"
	prand "math/rand"
	"time"
)

// Policy describes a jittered exponential backoff. The first delay falls
// between 50% and 150% of Initial and each further attempt doubles it, up to
// Max.
type Policy struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns the wait before retry number attempt, counting from zero.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Initial <= 0 {
		return 0
	}

	halfDelay := p.Initial / 2
	randDelay := prand.Int63n(int64(p.Initial)) //nolint:gosec

	// 50% plus 0%-100% gives us the range of 50%-150%.
	delay := halfDelay + time.Duration(randDelay)
	if delay < 0 {
		delay = maxDelay
	}
	if attempt == 0 {
		return p.capped(delay)
	}

	// Doubling n times is a 2^n factor. The power is limited to 32 and
	// the product saturates instead of wrapping.
	factor := time.Duration(math.Pow(2, math.Min(float64(attempt), 32)))
	if delay > maxDelay/factor {
		return p.capped(maxDelay)
	}

	//nolint:durationcheck
	return p.capped(delay * factor)
}

// maxDelay is where an uncapped delay saturates.
const maxDelay = time.Duration(math.MaxInt64)

func (p Policy) capped(d time.Duration) time.Duration {
	if p.Max > 0 && d > p.Max {
		return p.Max
	}

	return d
}

// Wait blocks for the delay of attempt or until ctx is done, whichever is
// first. It returns ctx.Err() when the context ended the wait.
func (p Policy) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package schedule provides the jittered delays used by the posting loops.
package schedule

import (
	"context"
	"math/rand/v2"
	"time"
)

// Rand draws random durations. *rand.Rand satisfies it.
type Rand interface {
	Int64N(n int64) int64
}

type globalRand struct{}

func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }

// Jitter is a closed range of delays.
type Jitter struct {
	Min time.Duration
	Max time.Duration
	// Rand defaults to the global source.
	Rand Rand
}

// Next draws a delay uniformly from [Min, Max]. A degenerate range returns
// Min.
func (j Jitter) Next() time.Duration {
	if j.Max <= j.Min {
		return max(j.Min, 0)
	}
	r := j.Rand
	if r == nil {
		r = globalRand{}
	}
	return j.Min + time.Duration(r.Int64N(int64(j.Max-j.Min)+1))
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
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

// SleepFunc matches Sleep; tests substitute it.
type SleepFunc func(ctx context.Context, d time.Duration) error

package backoff

import (
	"context"
	"fmt"
	"math"
	mrand "math/rand/v2"
	"time"
)

const (
	// pFactor shapes the tanh ramp of the first few delays.
	pFactor = 4.0

	// rpScalingFactor scales the formula so that the median first delay
	// lands on the configured median.
	rpScalingFactor = 1 / 1.4

	// maxDurationFloat is the first float64 that no longer fits in a time.Duration.
	maxDurationFloat = float64(math.MaxInt64)
)

// Source supplies uniformly distributed values in [0, 1).
type Source interface {
	Float64() float64
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() float64

// Float64 returns f().
func (f SourceFunc) Float64() float64 {
	return f()
}

// globalSource draws from math/rand/v2's top-level generator, which is safe
// for concurrent use.
type globalSource struct{}

func (globalSource) Float64() float64 {
	return mrand.Float64() // #nosec G404 -- jitter does not need crypto randomness
}

// Scheduler produces decorrelated-jitter schedules from a random Source.
// A Scheduler holds no per-request state and may be shared across goroutines
// as long as its Source is safe for concurrent use.
type Scheduler struct {
	source Source
}

// NewScheduler creates a Scheduler. A nil source uses math/rand/v2.
func NewScheduler(source Source) *Scheduler {
	if source == nil {
		source = globalSource{}
	}
	return &Scheduler{source: source}
}

var defaultScheduler = NewScheduler(nil)

// DecorrelatedJitter returns retryCount jittered delays using the default random source.
func DecorrelatedJitter(medianFirstRetryDelay time.Duration, retryCount int) []time.Duration {
	return defaultScheduler.Schedule(medianFirstRetryDelay, retryCount)
}

// Schedule returns exactly retryCount non-negative delays, index 0 being the
// delay before the first retry. Negative inputs are treated as zero.
//
// Each step draws t in [i, i+1) and evaluates 2^t * tanh(sqrt(pFactor*t)).
// The delay is the growth of that curve since the previous step, scaled so
// that the first delay has a median of medianFirstRetryDelay.
func (s *Scheduler) Schedule(medianFirstRetryDelay time.Duration, retryCount int) []time.Duration {
	if retryCount <= 0 {
		return []time.Duration{}
	}
	if medianFirstRetryDelay < 0 {
		medianFirstRetryDelay = 0
	}

	target := float64(medianFirstRetryDelay)
	delays := make([]time.Duration, retryCount)

	prev := 0.0
	for i := range retryCount {
		t := float64(i) + s.draw()
		next := math.Pow(2, t) * math.Tanh(math.Sqrt(pFactor*t))
		delays[i] = clampDuration((next - prev) * rpScalingFactor * target)
		prev = next
	}

	return delays
}

// draw pulls a value from the source and pins it into [0, 1).
func (s *Scheduler) draw() float64 {
	u := s.source.Float64()
	if math.IsNaN(u) || u < 0 {
		return 0
	}
	if u >= 1 {
		return math.Nextafter(1, 0)
	}
	return u
}

func clampDuration(v float64) time.Duration {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= maxDurationFloat {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(v)
}

// Sleep waits for d or until ctx is done. Cancellation is reported even for
// zero or negative durations so that a cancelled caller never proceeds to
// another attempt. The returned error wraps ctx.Err().
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context done: %w", err)
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}

package scheduler

import (
	"context"

	"golang.org/x/time/rate"
)

// Governor caps global emission at a records-per-second rate measured over
// a sub-second window. Tokens release continuously; a batch of n records
// consumes n tokens, blocking the dispatcher until they are available.
// Tokens are never dropped silently.
type Governor struct {
	limiter *rate.Limiter
}

// NewGovernor creates a governor for the given records-per-second cap.
// rps <= 0 means unlimited. The burst is capped at a tenth of a second
// worth of records: large enough to grant batches without stalling, small
// enough that the startup burst stays inside the 5% overshoot tolerance.
func NewGovernor(rps float64, batchSize int) *Governor {
	if rps <= 0 {
		return &Governor{}
	}
	burst := int(rps / 10)
	if burst < 1 {
		burst = 1
	}
	if batchSize >= 1 && burst > batchSize {
		burst = batchSize
	}
	return &Governor{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// WaitN blocks until n tokens are available or the context is cancelled.
// Grants larger than the burst are split so the limiter never rejects
// them outright.
func (g *Governor) WaitN(ctx context.Context, n int) error {
	if g.limiter == nil || n <= 0 {
		return nil
	}

	burst := g.limiter.Burst()
	for n > 0 {
		step := n
		if step > burst {
			step = burst
		}
		if err := g.limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// Limit reports the configured records-per-second cap, 0 for unlimited.
func (g *Governor) Limit() float64 {
	if g.limiter == nil {
		return 0
	}
	return float64(g.limiter.Limit())
}

package bridge

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer picks how long to wait before sending, so replies do not look instant.
type Pacer interface {
	DelayBeforeSend(min, max time.Duration) time.Duration
}

// RandomPacer draws uniformly from [min, max].
type RandomPacer struct{}

func (RandomPacer) DelayBeforeSend(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}

// NoDelay never waits.
type NoDelay struct{}

func (NoDelay) DelayBeforeSend(_, _ time.Duration) time.Duration { return 0 }

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

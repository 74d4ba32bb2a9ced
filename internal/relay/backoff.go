package relay

import (
	"context"
	"math/rand/v2"
	"time"
)

const jitter = 250 * time.Millisecond

// backoff doubles from base up to ceiling after each failed batch.
type backoff struct {
	base, ceiling, current time.Duration
}

func newBackoff(base, ceiling time.Duration) *backoff {
	return &backoff{base: base, ceiling: ceiling}
}

func (b *backoff) next() time.Duration {
	if b.current == 0 {
		b.current = b.base
	}
	b.current = min(b.current*2, b.ceiling)
	return b.current + rand.N(jitter)
}

func (b *backoff) idle() time.Duration {
	return b.base + rand.N(jitter)
}

func (b *backoff) reset() {
	b.current = 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package provider

import (
	"context"
	"time"
)

const defaultMaxInterval = 10 * time.Second

// Backoff 第 k 次重试（从 0 开始）前等待 min(2^k * Base, Max)
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) Delay(attempt int) time.Duration {
	ceiling := b.Max
	if ceiling <= 0 {
		ceiling = defaultMaxInterval
	}
	d := b.Base
	if d >= ceiling {
		return ceiling
	}
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

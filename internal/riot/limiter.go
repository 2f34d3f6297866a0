package riot

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates requests behind the Riot dual rate limit (a short burst cap
// and a long sustained cap). Callers wait for a slot on both buckets rather
// than being rejected. Each client owns its own instance so tests can build
// isolated limiters with tiny windows.
type Limiter struct {
	short *rate.Limiter
	long  *rate.Limiter
}

func NewLimiter(shortCount int, shortWindow time.Duration, longCount int, longWindow time.Duration) *Limiter {
	return &Limiter{
		short: rate.NewLimiter(rate.Every(shortWindow/time.Duration(shortCount)), shortCount),
		long:  rate.NewLimiter(rate.Every(longWindow/time.Duration(longCount)), longCount),
	}
}

// Wait blocks until a request slot is available on both windows or the
// context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.long.Wait(ctx); err != nil {
		return err
	}
	return l.short.Wait(ctx)
}

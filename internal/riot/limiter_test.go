package riot

import (
	"context"
	"testing"
	"time"
)

func TestLimiterAllowsBurst(t *testing.T) {
	l := NewLimiter(5, time.Second, 100, time.Minute)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("burst of 5 took %v, want immediate", elapsed)
	}
}

func TestLimiterThrottlesPastBurst(t *testing.T) {
	l := NewLimiter(2, 200*time.Millisecond, 100, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}

	start := time.Now()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("throttled wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("third request granted after %v, want a throttle delay", elapsed)
	}
}

func TestLimiterRespectsContextCancel(t *testing.T) {
	// long window makes the next slot far away
	l := NewLimiter(1, time.Hour, 100, time.Hour)
	ctx := context.Background()

	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(cancelled); err == nil {
		t.Fatal("wait must fail when the context expires before a slot opens")
	}
}

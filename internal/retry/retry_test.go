package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFirstSuccessStops(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestTransientErrorsAreRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestLastErrorReturnedWhenExhausted(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestPermanentShortCircuits(t *testing.T) {
	boom := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return Permanent(boom)
	})
	if calls != 1 {
		t.Fatalf("permanent error was retried, %d calls", calls)
	}
	// Do unwraps: callers see the original error, not the marker.
	if err != boom {
		t.Fatalf("got %v, want the bare inner error", err)
	}
}

func TestCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, 10, 500*time.Millisecond, func() error {
		calls++
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the cancel to land in the first backoff, calls=%d", calls)
	}
}

func TestAttemptFloor(t *testing.T) {
	calls := 0
	if err := Do(context.Background(), 0, time.Millisecond, func() error {
		calls++
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("maxAttempts 0 should still run once, calls=%d", calls)
	}
}

func TestWithJitterBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 200; i++ {
		d := withJitter(base)
		if d < 75*time.Millisecond || d > 125*time.Millisecond {
			t.Fatalf("jittered delay %v outside +-25%% of %v", d, base)
		}
	}
	// Delays too small to jitter pass through unchanged.
	if withJitter(2) != 2 {
		t.Error("tiny delay should be returned as is")
	}
}

package almanac

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryCallReturnsFirstSuccess(t *testing.T) {
	calls := 0
	got, err := retryCall(context.Background(), 3, time.Millisecond, "op", nopLogger, func() (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 1 {
		t.Errorf("got %d after %d calls", got, calls)
	}
}

func TestRetryCallRetriesTransient(t *testing.T) {
	calls := 0
	got, err := retryCall(context.Background(), 3, time.Millisecond, "op", nopLogger, func() (string, error) {
		calls++
		if calls < 3 {
			return "", &ErrRemote{Op: "op", Status: 503}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestRetryCallStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := &ErrRemote{Op: "op", Status: 404}
	_, err := retryCall(context.Background(), 5, time.Millisecond, "op", nopLogger, func() (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent error retried: %d calls", calls)
	}
}

func TestRetryCallExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := retryCall(context.Background(), 3, time.Millisecond, "op", nopLogger, func() (int, error) {
		calls++
		return 0, &ErrNetwork{Op: "op", Err: errors.New("connection refused")}
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	var netErr *ErrNetwork
	if !errors.As(err, &netErr) {
		t.Errorf("last error not preserved: %v", err)
	}
}

func TestRetryCallHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retryCall(ctx, 10, time.Hour, "op", nopLogger, func() (int, error) {
		calls++
		cancel()
		return 0, &ErrRemote{Op: "op", Status: 500}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestRetryBackoffGrows(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 4; i++ {
		d := retryBackoff(base, i)
		lo := base * (1 << i)
		hi := lo + lo/2
		if d < lo || d > hi {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", i, d, lo, hi)
		}
	}
}

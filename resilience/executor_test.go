package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecutor_NoPatterns(t *testing.T) {
	called := false
	err := NewExecutor().Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("Execute() = %v, called = %v", err, called)
	}
}

func TestExecutor_TimeoutPerAttempt(t *testing.T) {
	var attempts atomic.Int32
	e := NewExecutor(
		WithRetry(NewRetry(RetryConfig{
			MaxAttempts: 3,
			Delay:       time.Millisecond,
			RetryIf:     func(err error) bool { return errors.Is(err, ErrTimeout) },
		})),
		WithTimeout(20*time.Millisecond),
	)

	err := e.Execute(context.Background(), func(ctx context.Context) error {
		if attempts.Add(1) == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestExecutor_BulkheadReleasedBetweenRetries(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	e := NewExecutor(
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 2, Delay: 20 * time.Millisecond})),
		WithBulkhead(b),
	)

	var sawFree bool
	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- e.Execute(context.Background(), func(context.Context) error {
			attempts++
			if attempts == 1 {
				return errors.New("reset")
			}
			return nil
		})
	}()

	time.Sleep(10 * time.Millisecond)
	if b.Stats().Active == 0 {
		sawFree = true
	}
	if err := <-done; err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !sawFree {
		t.Error("slot held while waiting to retry")
	}
}

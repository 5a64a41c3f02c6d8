package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeout_Default(t *testing.T) {
	if got := NewTimeout(TimeoutConfig{}).Config().Timeout; got != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", got)
	}
}

func TestTimeout_CompletesInTime(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: time.Second})
	if err := to.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("Execute() error = %v", err)
	}
}

func TestTimeout_Expires(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: 10 * time.Millisecond})

	err := to.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestTimeout_ParentCancellationPassesThrough(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	err := to.Execute(ctx, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestTimeout_ReturnsAfterOp(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: 5 * time.Millisecond})

	var finished bool
	err := to.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished = true
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
	if !finished {
		t.Error("Execute returned before op finished")
	}
}

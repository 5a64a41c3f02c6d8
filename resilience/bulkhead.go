package resilience

import (
	"context"
	"sync"
	"time"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent caps requests in flight at once.
	// Default: 10
	MaxConcurrent int

	// MaxWait is how long a request may queue for a slot.
	// Default: 0, wait until ctx ends.
	MaxWait time.Duration
}

// Bulkhead caps the number of concurrent outbound requests.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}

	mu        sync.Mutex
	active    int
	maxActive int
	rejected  int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire takes a slot, queueing up to MaxWait.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	var expired <-chan time.Time
	if b.config.MaxWait > 0 {
		timer := time.NewTimer(b.config.MaxWait)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case b.sem <- struct{}{}:
		b.mu.Lock()
		b.active++
		b.maxActive = max(b.maxActive, b.active)
		b.mu.Unlock()
		return nil
	case <-expired:
		b.mu.Lock()
		b.rejected++
		b.mu.Unlock()
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release gives a slot back.
func (b *Bulkhead) Release() {
	select {
	case <-b.sem:
		b.mu.Lock()
		b.active--
		b.mu.Unlock()
	default:
	}
}

// Execute runs op while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// Stats returns current bulkhead usage.
func (b *Bulkhead) Stats() BulkheadStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BulkheadStats{
		Active:        b.active,
		MaxActive:     b.maxActive,
		MaxConcurrent: b.config.MaxConcurrent,
		Rejected:      b.rejected,
	}
}

// BulkheadStats contains bulkhead usage counters.
type BulkheadStats struct {
	Active        int
	MaxActive     int
	MaxConcurrent int
	Rejected      int64
}

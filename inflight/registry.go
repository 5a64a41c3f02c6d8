package inflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// ErrEmptyKey is returned when Do is called without a key.
var ErrEmptyKey = errors.New("inflight: key is empty")

// Func performs the shared work for a key. The context it receives is
// detached from the caller's cancellation but keeps its values.
type Func func(ctx context.Context) (any, error)

// Registry tracks pending requests by key.
//
// Contract:
// - Concurrency: safe for concurrent use; the zero value is not usable, use New.
// - Context: a caller whose context ends stops waiting and gets ctx.Err();
//   the shared work keeps running for the remaining callers.
type Registry struct {
	group singleflight.Group

	mu      sync.Mutex
	waiters map[string]int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{waiters: make(map[string]int)}
}

// Do runs fn once per key among concurrent callers. shared reports whether
// this caller joined work started by another caller.
func (r *Registry) Do(ctx context.Context, key string, fn Func) (v any, shared bool, err error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	var led atomic.Bool
	work := context.WithoutCancel(ctx)

	r.mu.Lock()
	r.waiters[key]++
	ch := r.group.DoChan(key, func() (any, error) {
		led.Store(true)
		return fn(work)
	})
	r.mu.Unlock()

	defer r.release(key)

	select {
	case res := <-ch:
		return res.Val, !led.Load(), res.Err
	case <-ctx.Done():
		return nil, !led.Load(), ctx.Err()
	}
}

func (r *Registry) release(key string) {
	r.mu.Lock()
	if n := r.waiters[key]; n <= 1 {
		delete(r.waiters, key)
	} else {
		r.waiters[key] = n - 1
	}
	r.mu.Unlock()
}

// Pending reports whether any caller is waiting on key.
func (r *Registry) Pending(key string) bool {
	return r.Waiters(key) > 0
}

// Waiters returns the number of callers currently waiting on key.
func (r *Registry) Waiters(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiters[key]
}

// Len returns the number of keys with waiting callers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}

// Forget detaches key from its running work, so the next caller starts a
// new request instead of joining.
func (r *Registry) Forget(key string) {
	r.group.Forget(key)
}

// Package inflight collapses concurrent identical API requests into one.
//
// The first caller for a key starts the work; every caller that arrives with
// the same key before the work completes receives the same value and error.
// The registry clears its entry on success and failure alike.
package inflight

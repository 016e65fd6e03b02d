// Package guard implements a single-flight guard for user actions.
//
// A Flight stands in for a UI control that disables itself while its action
// runs: the first activation acquires the flight, activations arriving while
// it is held are dropped instead of queued.
package guard

import (
	"context"
	"sync"
)

// Flight is a thread-safe single-flight guard for one action.
//
// Example usage:
//
//	var claim guard.Flight
//	if claim.TryAcquire() {
//	    defer claim.Release()
//	    // submit the claim
//	}
type Flight struct {
	mu       sync.Mutex
	busy     bool
	rejected int64 // activations dropped while busy
	total    int64 // activations seen
}

// TryAcquire takes the flight if it is idle. It returns false, and counts a
// rejection, when another activation already holds it.
func (f *Flight) TryAcquire() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.total++
	if f.busy {
		f.rejected++
		return false
	}
	f.busy = true
	return true
}

// Release frees the flight. Releasing an idle flight is a no-op.
func (f *Flight) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
}

// Busy reports whether an activation currently holds the flight.
func (f *Flight) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// Do runs fn if the flight is idle and releases it afterwards.
// It reports whether fn ran.
func (f *Flight) Do(ctx context.Context, fn func(context.Context)) bool {
	if !f.TryAcquire() {
		return false
	}
	defer f.Release()
	fn(ctx)
	return true
}

// Stats returns how many activations were dropped and how many were seen.
func (f *Flight) Stats() (rejected, total int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rejected, f.total
}

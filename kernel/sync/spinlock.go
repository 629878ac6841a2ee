// Package sync provides the synchronization primitives available to kernel
// code. The hosted sync package cannot be used at this boot stage as it
// depends on the Go runtime scheduler.
package sync

import "sync/atomic"

var (
	// yieldFn is invoked while spinning on a contended lock. It is nil on
	// bare metal where busy-waiting is the only option; tests substitute
	// runtime.Gosched so a spinning goroutine cannot starve the holder.
	yieldFn func()
)

// Spinlock implements a lock where each hart trying to acquire it busy-waits
// till the lock becomes available. Attempting to re-acquire a lock already
// held by the current hart will deadlock.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired.
func (l *Spinlock) Acquire() {
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		if yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock
// could be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other harts to acquire it.
// Calling Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

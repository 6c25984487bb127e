// Package barrier implements the condition-variable-with-lock pattern the
// room synchronization engine needs: release the caller's lock for up to a
// timeout, wake on notification, and re-acquire the lock before returning.
//
// Go's sync.Cond has no timeout, so this generation-channel pattern is used
// instead: each notification closes the current channel (waking everyone
// blocked on it) and installs a fresh one. This is the same rendezvous the
// original implementation's CondvarRwl wrapped around its runtime's condvar,
// expressed with channels instead.
package barrier

import (
	"sync"
	"time"
)

// Cond is a broadcast condition variable with timeout support, used in
// conjunction with a lock the caller already holds.
type Cond struct {
	mu  sync.Mutex
	gen chan struct{}
}

// New creates a ready-to-use Cond.
func New() *Cond {
	return &Cond{gen: make(chan struct{})}
}

// NotifyAll wakes every goroutine currently blocked in WaitWhileFor.
func (c *Cond) NotifyAll() {
	c.mu.Lock()
	close(c.gen)
	c.gen = make(chan struct{})
	c.mu.Unlock()
}

// WaitWhileFor releases lk for up to timeout while keepWaiting returns true,
// re-checking keepWaiting after each wakeup, and re-acquires lk before
// returning. lk must be held by the caller on entry and is held again on
// return, regardless of whether the wait exited by predicate, notification,
// or timeout.
func (c *Cond) WaitWhileFor(lk sync.Locker, timeout time.Duration, keepWaiting func() bool) {
	deadline := time.Now().Add(timeout)
	for keepWaiting() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}

		c.mu.Lock()
		waitCh := c.gen
		c.mu.Unlock()

		lk.Unlock()
		select {
		case <-waitCh:
		case <-time.After(remaining):
			lk.Lock()
			return
		}
		lk.Lock()
	}
}

package core

import (
	"fmt"
	"sync/atomic"
)

// Guard is the one-bit mutex protecting every operation that pays out to an
// externally controlled recipient. While held, any further guarded call
// fails immediately with ErrReentrancy instead of nesting, whether it comes
// from the payment recipient re-entering on the same stack or from another
// goroutine.
type Guard struct {
	locked atomic.Bool
}

// Acquire takes the guard, failing if it is already held.
func (g *Guard) Acquire() error {
	if !g.locked.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: a payment-bearing operation is already in flight", ErrReentrancy)
	}
	return nil
}

// Release frees the guard.
func (g *Guard) Release() {
	g.locked.Store(false)
}

// Held reports whether a guarded operation is currently in flight.
func (g *Guard) Held() bool {
	return g.locked.Load()
}

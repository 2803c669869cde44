package memory

import (
	"context"
	"fmt"
	"time"
)

// Gate is the single mutex guarding the mutable memory state (runtime buffer
// and short-term log). It is an explicit owned resource: constructed once,
// injected into every component that needs it, never a package-level
// singleton.
//
// Unlike [sync.Mutex], Gate supports bounded waits so read-only accessors can
// surface [ErrMemoryBusy] instead of blocking behind a slow writer. It is
// deliberately NOT held across embedding or model calls; those operate on
// snapshots taken while the gate was held.
type Gate struct {
	ch chan struct{}
}

// NewGate returns an unlocked Gate.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the gate is held or ctx is done. On context
// expiration it returns an error wrapping [ErrMemoryBusy].
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.ch <- struct{}{}:
		return nil
	default:
	}
	select {
	case g.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrMemoryBusy, ctx.Err())
	}
}

// TryAcquire attempts to hold the gate, waiting at most d. A non-positive d
// means a single non-blocking attempt. Returns an error wrapping
// [ErrMemoryBusy] when the gate stayed contended.
func (g *Gate) TryAcquire(d time.Duration) error {
	select {
	case g.ch <- struct{}{}:
		return nil
	default:
	}
	if d <= 0 {
		return fmt.Errorf("%w: gate contended", ErrMemoryBusy)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case g.ch <- struct{}{}:
		return nil
	case <-t.C:
		return fmt.Errorf("%w: wait exceeded %s", ErrMemoryBusy, d)
	}
}

// Release unlocks the gate. Calling Release without a matching acquire is a
// programming error and panics.
func (g *Gate) Release() {
	select {
	case <-g.ch:
	default:
		panic("memory: Release of unheld Gate")
	}
}

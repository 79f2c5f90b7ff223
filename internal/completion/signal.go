// Package completion provides the countdown signal a coordinator uses to wait
// for a batch of executors.
//
// The coordinator creates one Signal sized to the number of executors it
// dispatches and hands the same pointer to each of them. Every executor counts
// it down exactly once when it terminates; the coordinator blocks on Wait or
// selects on Done.
package completion

import (
	"context"
	"sync"
)

// Signal is a thread-safe countdown latch.
type Signal struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
}

// New creates a signal that completes after count calls to CountDown.
// A non-positive count yields an already completed signal.
func New(count int) *Signal {
	s := &Signal{
		count: count,
		done:  make(chan struct{}),
	}
	if count <= 0 {
		s.count = 0
		close(s.done)
	}
	return s
}

// CountDown decrements the counter and releases waiters when it reaches zero.
// Calling it on a completed signal is a no-op.
func (s *Signal) CountDown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		return
	}
	s.count--
	if s.count == 0 {
		close(s.done)
	}
}

// Count returns the number of outstanding decrements.
func (s *Signal) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Done returns a channel closed once the count reaches zero.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the count reaches zero or ctx is cancelled.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

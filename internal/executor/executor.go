package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/smazurov/nodeexec/internal/completion"
)

// Executor runs one unit of work for a node and counts down a shared
// completion signal exactly once when it terminates.
type Executor interface {
	// Execute runs the work to completion and returns its exit code.
	// Single use: a second call returns ErrAlreadyExecuted.
	Execute(ctx context.Context, sink OutputSink, logEnabled bool) (int, error)

	// Stop requests a halt. Idempotent, safe from any goroutine, never blocks.
	Stop()

	// IsStopped reports whether a halt was requested or the work finished.
	IsStopped() bool

	// IsCancelled reports whether execution failed to spawn or read output.
	IsCancelled() bool

	// Node returns the node identifier used for log attribution.
	Node() string

	// State returns the current lifecycle state.
	State() State
}

// base holds the identity and cancellation state shared by every executor variant.
type base struct {
	node     string
	args     []string
	elevated bool
	signal   *completion.Signal

	stopped   atomic.Bool
	cancelled atomic.Bool
	executed  atomic.Bool

	stopCh   chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once

	stateMu sync.RWMutex
	state   State
	outcome State
}

// init validates and stores the immutable executor configuration.
func (b *base) init(node string, args []string, elevated bool, signal *completion.Signal) error {
	if len(args) == 0 || args[0] == "" {
		return fmt.Errorf("%w: node %s: empty argument vector", ErrInvalidArgument, node)
	}
	if signal == nil {
		return fmt.Errorf("%w: node %s: nil completion signal", ErrInvalidArgument, node)
	}

	b.node = node
	b.args = append([]string(nil), args...)
	b.elevated = elevated
	b.signal = signal
	b.stopCh = make(chan struct{})
	b.state = StateCreated
	return nil
}

// Stop sets the stop flag and wakes the execute loop.
func (b *base) Stop() {
	b.stopped.Store(true)
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// IsStopped returns the current stop flag.
func (b *base) IsStopped() bool {
	return b.stopped.Load()
}

// IsCancelled reports whether a spawn or read failure occurred.
func (b *base) IsCancelled() bool {
	return b.cancelled.Load()
}

// Node returns the node identifier.
func (b *base) Node() string {
	return b.node
}

// Args returns a copy of the argument vector.
func (b *base) Args() []string {
	return append([]string(nil), b.args...)
}

// Elevated reports whether the executor was created with elevated privileges.
func (b *base) Elevated() bool {
	return b.elevated
}

// State returns the current lifecycle state.
func (b *base) State() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

// Outcome returns how execution ended: StateExited, StateStopped or
// StateSpawnFailed. It is empty until execution has finished.
func (b *base) Outcome() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.outcome
}

func (b *base) setState(s State) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.state = s
	switch s {
	case StateExited, StateStopped, StateSpawnFailed:
		b.outcome = s
	}
}

// complete marks the executor terminated and counts down the completion
// signal. Only the first call has any effect.
func (b *base) complete() {
	b.doneOnce.Do(func() {
		b.setState(StateTerminated)
		b.signal.CountDown()
	})
}

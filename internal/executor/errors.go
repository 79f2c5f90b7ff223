package executor

import (
	"errors"
	"fmt"
)

// Sentinel errors for executor operations.
var (
	// ErrInvalidArgument is returned when an executor is constructed with an
	// empty argument vector, an empty program path or no completion signal.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyExecuted is returned by a second call to Execute.
	ErrAlreadyExecuted = errors.New("executor already executed")

	// ErrIO matches every IOError via errors.Is.
	ErrIO = errors.New("spawn or i/o failure")
)

// IOError reports that the child process could not be started or that
// reading its output failed. It is the only error Execute returns for a
// process that was actually attempted.
type IOError struct {
	Node string
	Op   string // "pipe", "spawn" or "read"
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.Node, e.Op, e.Err)
}

// Unwrap returns the underlying OS error.
func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// IsIOError checks if an error is a spawn or read failure.
func IsIOError(err error) bool {
	return errors.Is(err, ErrIO)
}

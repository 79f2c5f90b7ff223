package dispatch

import (
	"github.com/smazurov/nodeexec/internal/config"
	"github.com/smazurov/nodeexec/internal/events"
	"github.com/smazurov/nodeexec/internal/executor"
	"github.com/smazurov/nodeexec/internal/logging"
)

// StateChangeCallback is called when a job changes state.
type StateChangeCallback func(jobID string, oldState, newState executor.State, err error)

// Configurer returns extra executor options for a job, e.g. a custom
// elevation policy or environment.
type Configurer func(job Job) []executor.Option

// Options configures a Dispatcher.
type Options struct {
	// Master supplies the initial batch deadline via WaitDuration (optional).
	Master config.Master

	// OnStateChange is called on every job transition (optional).
	OnStateChange StateChangeCallback

	// ConfigureExecutor adds per-job executor options (optional).
	ConfigureExecutor Configurer

	// Events receives batch events and is passed to every executor (optional).
	Events *events.Bus

	// Logger for dispatcher operations. If nil, uses the "dispatch" module logger.
	Logger logging.Logger
}

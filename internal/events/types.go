package events

// Event type constants for kelindar/event.
const (
	TypeExecutorStarted uint32 = iota + 1
	TypeExecutorOutput
	TypeExecutorFinished
	TypeBatchStarted
	TypeBatchFinished
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ExecutorStartedEvent is published once a child process has been spawned.
type ExecutorStartedEvent struct {
	Node      string   `json:"node"`
	Args      []string `json:"args"`
	PID       int      `json:"pid"`
	Timestamp string   `json:"timestamp"`
}

// Type returns the event type identifier for ExecutorStartedEvent.
func (e ExecutorStartedEvent) Type() uint32 { return TypeExecutorStarted }

// ExecutorOutputEvent carries one non-blank line of merged child output.
type ExecutorOutputEvent struct {
	Node string `json:"node"`
	Line string `json:"line"`
}

// Type returns the event type identifier for ExecutorOutputEvent.
func (e ExecutorOutputEvent) Type() uint32 { return TypeExecutorOutput }

// ExecutorFinishedEvent is published after cleanup, right before the
// completion signal is counted down.
type ExecutorFinishedEvent struct {
	Node      string `json:"node"`
	ExitCode  int    `json:"exit_code"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
	Duration  string `json:"duration"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for ExecutorFinishedEvent.
func (e ExecutorFinishedEvent) Type() uint32 { return TypeExecutorFinished }

// BatchStartedEvent is published when a dispatcher launches a set of jobs.
type BatchStartedEvent struct {
	BatchID   string `json:"batch_id"`
	Jobs      int    `json:"jobs"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for BatchStartedEvent.
func (e BatchStartedEvent) Type() uint32 { return TypeBatchStarted }

// BatchFinishedEvent is published once every executor of a batch has counted
// down the shared completion signal.
type BatchFinishedEvent struct {
	BatchID   string `json:"batch_id"`
	Jobs      int    `json:"jobs"`
	Failed    int    `json:"failed"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for BatchFinishedEvent.
func (e BatchFinishedEvent) Type() uint32 { return TypeBatchFinished }

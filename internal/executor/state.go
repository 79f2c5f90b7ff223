package executor

// State represents the lifecycle position of an executor.
type State string

// Executor states. Exited, Stopped and SpawnFailed are outcomes; every
// executor ends in Terminated once its completion signal has been counted down.
const (
	StateCreated     State = "created"      // Constructed, Execute not yet called
	StateRunning     State = "running"      // Child process spawned
	StateExited      State = "exited"       // Child exited on its own
	StateStopped     State = "stopped"      // Stop requested before natural exit
	StateSpawnFailed State = "spawn_failed" // Spawn or output read failed
	StateTerminated  State = "terminated"   // Cleanup done, signal counted down
)

// Exit code sentinels.
const (
	// ExitCodeNotStarted is returned when no child process was ever started.
	ExitCodeNotStarted = -1

	// ExitCodeKilled is returned when a killed process could not be reaped
	// within the kill timeout (128 + SIGKILL).
	ExitCodeKilled = 137
)

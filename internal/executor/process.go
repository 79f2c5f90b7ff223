package executor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/smazurov/nodeexec/internal/completion"
	"github.com/smazurov/nodeexec/internal/events"
	"github.com/smazurov/nodeexec/internal/logging"
	"github.com/smazurov/nodeexec/internal/metrics"
)

const (
	defaultKillTimeout  = 5 * time.Second
	defaultDrainTimeout = 2 * time.Second
	defaultMaxLineSize  = 1024 * 1024
)

// Option configures a ProcessExecutor.
type Option func(*ProcessExecutor)

// WithLogger sets the lifecycle logger. The node attribute is added automatically.
func WithLogger(logger *slog.Logger) Option {
	return func(e *ProcessExecutor) {
		e.logger = logger
	}
}

// WithOutputLogger sets the logger used for child output when logEnabled is true.
func WithOutputLogger(logger *slog.Logger) Option {
	return func(e *ProcessExecutor) {
		e.outputLogger = logger
	}
}

// WithEvents publishes lifecycle and output events to bus.
func WithEvents(bus *events.Bus) Option {
	return func(e *ProcessExecutor) {
		e.events = bus
	}
}

// WithElevation overrides the policy applied when elevated is true.
func WithElevation(policy ElevationPolicy) Option {
	return func(e *ProcessExecutor) {
		e.elevation = policy
	}
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) Option {
	return func(e *ProcessExecutor) {
		e.env = append(e.env, env...)
	}
}

// WithKillTimeout bounds the wait for a force-killed process to be reaped.
func WithKillTimeout(d time.Duration) Option {
	return func(e *ProcessExecutor) {
		e.killTimeout = d
	}
}

// WithDrainTimeout bounds how long output is still read after the child exits.
func WithDrainTimeout(d time.Duration) Option {
	return func(e *ProcessExecutor) {
		e.drainTimeout = d
	}
}

// WithMaxLineSize sets the longest output line accepted before reading fails.
func WithMaxLineSize(n int) Option {
	return func(e *ProcessExecutor) {
		if n > 0 {
			e.maxLineSize = n
		}
	}
}

// ProcessExecutor spawns an OS process from its argument vector and drives it
// to completion while streaming its merged stdout/stderr.
type ProcessExecutor struct {
	base

	logger       *slog.Logger
	outputLogger *slog.Logger
	events       *events.Bus
	elevation    ElevationPolicy
	env          []string
	killTimeout  time.Duration
	drainTimeout time.Duration
	maxLineSize  int

	spawned bool // only touched by the executing goroutine
}

var _ Executor = (*ProcessExecutor)(nil)

// NewProcessExecutor creates an executor for args on node. All executors
// dispatched together share signal.
func NewProcessExecutor(node string, args []string, elevated bool, signal *completion.Signal, opts ...Option) (*ProcessExecutor, error) {
	e := &ProcessExecutor{
		elevation:    SudoElevation,
		killTimeout:  defaultKillTimeout,
		drainTimeout: defaultDrainTimeout,
		maxLineSize:  defaultMaxLineSize,
	}
	if err := e.init(node, args, elevated, signal); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.GetLogger("executor")
	}
	e.logger = e.logger.With("node", node)
	if e.outputLogger == nil {
		e.outputLogger = logging.GetLogger("output")
	}
	e.outputLogger = e.outputLogger.With("node", node)

	return e, nil
}

// runningProcess holds channels for monitoring a running child.
type runningProcess struct {
	cmd     *exec.Cmd
	lines   chan string
	readErr chan error
	exited  chan error
	release chan struct{} // closed during cleanup to unblock the reader
}

// loopResult describes why the execute loop ended.
type loopResult struct {
	exited  bool
	waitErr error
	readErr error
}

// Execute spawns the process and blocks until it exits, Stop is called or ctx
// is cancelled. Non-blank lines go to sink (when non-nil) and, if logEnabled,
// to the output logger. The completion signal is counted down exactly once
// before Execute returns, on every path.
func (e *ProcessExecutor) Execute(ctx context.Context, sink OutputSink, logEnabled bool) (int, error) {
	if !e.executed.CompareAndSwap(false, true) {
		return ExitCodeNotStarted, ErrAlreadyExecuted
	}

	started := time.Now()
	e.logger.Info("Executing", "command", strings.Join(e.args, " "))

	if e.IsStopped() {
		e.logger.Info("Stopped before start, not spawning")
		e.setState(StateStopped)
		e.finish(ExitCodeNotStarted, nil, started)
		return ExitCodeNotStarted, nil
	}

	exitCode, err := e.run(ctx, sink, logEnabled)
	e.finish(exitCode, err, started)
	return exitCode, err
}

// run performs spawn, loop and cleanup.
func (e *ProcessExecutor) run(ctx context.Context, sink OutputSink, logEnabled bool) (int, error) {
	argv := e.args
	if e.elevated && e.elevation != nil {
		argv = e.elevation(argv)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), e.env...)
	configureSysProcAttr(cmd)

	// One pipe for both fds merges stderr into stdout in write order.
	pr, pw, err := os.Pipe()
	if err != nil {
		return ExitCodeNotStarted, e.fail("pipe", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	stdin, err := cmd.StdinPipe()
	if err != nil {
		closeQuietly(pr, pw)
		return ExitCodeNotStarted, e.fail("pipe", err)
	}

	if err := cmd.Start(); err != nil {
		closeQuietly(stdin, pr, pw)
		return ExitCodeNotStarted, e.fail("spawn", err)
	}
	// The child holds its own copy of the write end; ours must go so the
	// reader sees EOF when the child exits.
	_ = pw.Close()

	e.spawned = true
	e.setState(StateRunning)
	e.logger.Info("Process started", "pid", cmd.Process.Pid)
	metrics.ExecutorStarted(e.node)
	e.events.Publish(events.ExecutorStartedEvent{
		Node:      e.node,
		Args:      e.Args(),
		PID:       cmd.Process.Pid,
		Timestamp: time.Now().Format(time.RFC3339),
	})

	rp := e.watch(cmd, pr)
	res := e.loop(ctx, rp, sink, logEnabled)
	exitCode, exitedLate := e.cleanup(rp, res, stdin, pr)

	if res.readErr != nil {
		return exitCode, e.fail("read", res.readErr)
	}
	if res.exited || exitedLate {
		e.setState(StateExited)
		e.logger.Info("Process exited", "exit_code", exitCode)
	} else {
		e.setState(StateStopped)
		e.logger.Info("Process terminated", "exit_code", exitCode)
	}
	return exitCode, nil
}

// watch starts the reader and waiter goroutines for a started child.
func (e *ProcessExecutor) watch(cmd *exec.Cmd, r io.Reader) *runningProcess {
	rp := &runningProcess{
		cmd:     cmd,
		lines:   make(chan string),
		readErr: make(chan error, 1),
		exited:  make(chan error, 1),
		release: make(chan struct{}),
	}

	go func() {
		defer close(rp.lines)
		scanner := bufio.NewScanner(r)
		// The initial capacity must not exceed the limit or Scanner ignores it.
		scanner.Buffer(make([]byte, 0, min(64*1024, e.maxLineSize)), e.maxLineSize)
		for scanner.Scan() {
			select {
			case rp.lines <- strings.TrimSuffix(scanner.Text(), "\r"):
			case <-rp.release:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			rp.readErr <- err
		}
	}()

	go func() {
		rp.exited <- cmd.Wait()
	}()

	return rp
}

// loop delivers output until the child exits, a read fails or a stop is
// requested. A stop ends the loop even when unread output remains.
func (e *ProcessExecutor) loop(ctx context.Context, rp *runningProcess, sink OutputSink, logEnabled bool) loopResult {
	lines := rp.lines
	for !e.IsStopped() {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			e.consume(line, sink, logEnabled)

		case waitErr := <-rp.exited:
			e.drain(lines, sink, logEnabled)
			e.Stop()
			res := loopResult{exited: true, waitErr: waitErr}
			select {
			case res.readErr = <-rp.readErr:
			default:
			}
			return res

		case err := <-rp.readErr:
			return loopResult{readErr: err}

		case <-e.stopCh:

		case <-ctx.Done():
			e.logger.Info("Context cancelled, stopping", "reason", ctx.Err())
			e.Stop()
		}
	}
	return loopResult{}
}

// drain delivers output the child wrote before exiting. Grandchildren may
// keep the pipe open, so draining is bounded by drainTimeout.
func (e *ProcessExecutor) drain(lines <-chan string, sink OutputSink, logEnabled bool) {
	if lines == nil {
		return
	}
	timer := time.NewTimer(e.drainTimeout)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			e.consume(line, sink, logEnabled)
		case <-timer.C:
			e.logger.Warn("Output still open after exit, abandoning drain", "timeout", e.drainTimeout)
			return
		case <-e.stopCh:
			return
		}
	}
}

// consume handles one output line.
func (e *ProcessExecutor) consume(line string, sink OutputSink, logEnabled bool) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if sink != nil {
		sink.AppendLine(line)
	}
	if logEnabled {
		e.outputLogger.Info(line)
	}
	metrics.OutputLine(e.node)
	e.events.Publish(events.ExecutorOutputEvent{Node: e.node, Line: line})
}

// cleanup force-kills a still running child, reaps it and releases its
// streams. The reaped status is the final exit code. exitedLate reports a
// child that exited on its own after the loop had already been stopped.
func (e *ProcessExecutor) cleanup(rp *runningProcess, res loopResult, closers ...io.Closer) (exitCode int, exitedLate bool) {
	defer func() {
		close(rp.release)
		closeQuietly(closers...)
	}()

	waitErr := res.waitErr
	if !res.exited {
		select {
		case waitErr = <-rp.exited:
			// Exited between the stop request and now; nothing was killed.
			return exitCodeFromWait(rp.cmd, waitErr), true
		default:
			e.logger.Info("Forcing termination", "pid", rp.cmd.Process.Pid)
			if err := killProcess(rp.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
				e.logger.Warn("Failed to kill process", "error", err)
			}
			select {
			case waitErr = <-rp.exited:
			case <-time.After(e.killTimeout):
				// Treated as already stopping; the waiter goroutine reaps it later.
				e.logger.Warn("Process did not exit after kill signal", "timeout", e.killTimeout)
				return ExitCodeKilled, false
			}
		}
	}

	return exitCodeFromWait(rp.cmd, waitErr), false
}

// fail records a spawn or read failure.
func (e *ProcessExecutor) fail(op string, err error) error {
	e.cancelled.Store(true)
	e.setState(StateSpawnFailed)
	e.logger.Error("Execution failed", "op", op, "error", err)
	return &IOError{Node: e.node, Op: op, Err: err}
}

// finish publishes the final status and counts down the completion signal.
func (e *ProcessExecutor) finish(exitCode int, err error, started time.Time) {
	elapsed := time.Since(started)

	outcome := metrics.OutcomeExited
	switch e.Outcome() {
	case StateStopped:
		outcome = metrics.OutcomeStopped
	case StateSpawnFailed:
		outcome = metrics.OutcomeFailed
		if !e.spawned {
			outcome = metrics.OutcomeSpawnFailed
		}
	}
	// A stop before start never touched the running gauge.
	if e.spawned || outcome == metrics.OutcomeSpawnFailed {
		metrics.ExecutorFinished(e.node, outcome, exitCode, elapsed)
	}

	ev := events.ExecutorFinishedEvent{
		Node:      e.node,
		ExitCode:  exitCode,
		Outcome:   outcome,
		Duration:  elapsed.String(),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	e.events.Publish(ev)

	e.complete()
}

// exitCodeFromWait extracts the exit code from a reaped process.
// Returns 0 for a clean exit, 128+signal for signalled processes on Unix,
// or 1 when no process state is available.
func exitCodeFromWait(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return exitStatus(cmd.ProcessState)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitStatus(exitErr.ProcessState)
	}
	if err == nil {
		return 0
	}
	return 1
}

// closeQuietly closes every non-nil closer, ignoring errors.
func closeQuietly(closers ...io.Closer) {
	for _, c := range closers {
		if c != nil {
			_ = c.Close()
		}
	}
}

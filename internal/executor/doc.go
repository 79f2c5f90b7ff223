// Package executor runs units of work for nodes and reports their completion
// through a shared countdown signal.
//
// ProcessExecutor is the one concrete Executor today. Its lifecycle is:
//
//	created -> running -> (exited | stopped | spawn_failed) -> terminated
//
// Execute spawns the argument vector with stderr merged into stdout and the
// caller's environment, delivers every non-blank output line in order, and
// returns the child's exit code. Stop may be called from any goroutine at any
// time; a still running child is then killed (its whole process group on
// Unix) and reaped, and the exit code reflects the kill (137 for SIGKILL).
//
// Whatever happens, the completion signal passed at construction is counted
// down exactly once before Execute returns, so a coordinator waiting on a
// batch is never left blocked by one failing executor:
//
//	signal := completion.New(len(jobs))
//	execs := make([]*executor.ProcessExecutor, len(jobs))
//	for i, job := range jobs {
//		e, err := executor.NewProcessExecutor(job.Node, job.Args, false, signal)
//		if err != nil {
//			return err // nothing spawned yet
//		}
//		execs[i] = e
//	}
//	for _, e := range execs {
//		go e.Execute(ctx, executor.NewLineBuffer(), true)
//	}
//	return signal.Wait(ctx)
//
// Only spawn and output read failures are returned as errors (IOError,
// matching ErrIO); the executor is then marked cancelled.
package executor

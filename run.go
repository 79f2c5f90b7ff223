package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/smazurov/nodeexec/internal/config"
	"github.com/smazurov/nodeexec/internal/dispatch"
)

// batchRunner dispatches job files, one batch at a time.
type batchRunner struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// run dispatches jf and logs a summary. It reports whether every job
// exited zero.
func (r *batchRunner) run(ctx context.Context, jf *config.JobFile) bool {
	r.dispatcher.SetMaster(jf.Master)
	results, err := r.dispatcher.Run(ctx, dispatch.JobsFromFile(jf))
	if err != nil && results == nil {
		r.logger.Error("Batch rejected", "error", err)
		return false
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("Batch cut short", "error", err)
	}

	ok := err == nil
	for _, res := range results {
		attrs := []any{"id", res.JobID, "node", res.Node, "exit_code", res.ExitCode, "state", res.State, "duration", res.Duration}
		if res.Err != nil {
			attrs = append(attrs, "error", res.Err)
		}
		if res.Failed() {
			ok = false
			r.logger.Warn("Job failed", attrs...)
			continue
		}
		r.logger.Info("Job succeeded", attrs...)
	}
	return ok
}

// watch re-dispatches the job file on every reload until ctx is done.
// Reloads that arrive while a batch runs are coalesced to the latest one.
func (r *batchRunner) watch(ctx context.Context, reloads <-chan *config.JobFile) {
	for {
		select {
		case <-ctx.Done():
			return
		case jf := <-reloads:
			r.logger.Info("Job file changed, dispatching", "jobs", len(jf.Jobs))
			r.run(ctx, jf)
		}
	}
}

// latest returns a handler that forwards reloads into ch, replacing any
// reload not yet consumed. ch must have capacity 1.
func latest(ch chan *config.JobFile) func(*config.JobFile) {
	return func(jf *config.JobFile) {
		for {
			select {
			case ch <- jf:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}
}

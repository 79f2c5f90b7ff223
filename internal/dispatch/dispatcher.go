package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/nodeexec/internal/completion"
	"github.com/smazurov/nodeexec/internal/config"
	"github.com/smazurov/nodeexec/internal/events"
	"github.com/smazurov/nodeexec/internal/executor"
	"github.com/smazurov/nodeexec/internal/logging"
)

var (
	// ErrInvalidJob is returned when a batch is rejected before anything runs.
	ErrInvalidJob = errors.New("invalid job")

	// ErrJobRunning is returned when a batch reuses the ID of a running job.
	ErrJobRunning = errors.New("job already running")

	// ErrJobNotFound is returned for operations on an unknown job ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrDeadlineExceeded is returned when the master wait time stopped the batch.
	ErrDeadlineExceeded = errors.New("batch wait time exceeded")
)

// Job is one command to run on a node.
type Job struct {
	ID       string
	Node     string
	Args     []string
	Elevated bool
	Quiet    bool // do not log output lines
}

// JobsFromFile converts job file entries to jobs.
func JobsFromFile(jf *config.JobFile) []Job {
	jobs := make([]Job, len(jf.Jobs))
	for i, spec := range jf.Jobs {
		jobs[i] = Job{
			ID:       spec.ID,
			Node:     spec.Node,
			Args:     append([]string(nil), spec.Args...),
			Elevated: spec.Elevated,
			Quiet:    spec.Quiet,
		}
	}
	return jobs
}

// Result is the outcome of one job.
type Result struct {
	JobID     string
	Node      string
	ExitCode  int
	Lines     []string
	Err       error
	State     executor.State
	StartedAt time.Time
	Duration  time.Duration
}

// Failed reports whether the job errored or exited non-zero.
func (r Result) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// Info is a point-in-time view of a tracked job.
type Info struct {
	ID         string
	Node       string
	BatchID    string
	Args       []string
	Elevated   bool
	State      executor.State
	ExitCode   int
	Lines      []string
	StartedAt  time.Time
	FinishedAt time.Time
	LastError  error
}

// managedJob tracks a job within the dispatcher. Mutable fields are guarded
// by the dispatcher mutex.
type managedJob struct {
	job     Job
	batchID string
	exec    *executor.ProcessExecutor
	sink    *executor.LineBuffer

	state      executor.State
	exitCode   int
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

// Dispatcher runs batches of jobs and tracks them by ID.
type Dispatcher struct {
	opts   Options
	logger logging.Logger

	mu     sync.RWMutex
	master config.Master
	jobs   map[string]*managedJob
	order  []string
}

// New creates a dispatcher.
func New(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("dispatch")
	}
	return &Dispatcher{
		opts:   opts,
		logger: logger,
		master: opts.Master,
		jobs:   make(map[string]*managedJob),
	}
}

// SetMaster replaces the master settings used by subsequent batches.
func (d *Dispatcher) SetMaster(m config.Master) {
	d.mu.Lock()
	d.master = m
	d.mu.Unlock()
}

// Master returns the master settings for the next batch.
func (d *Dispatcher) Master() config.Master {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.master
}

// Run executes jobs concurrently and blocks until every executor has
// counted down the batch signal. All jobs are validated before any is
// started. Results are in job order. A non-nil error alongside results
// means the batch was cut short by ctx or the master wait time.
func (d *Dispatcher) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidJob)
	}
	master := d.Master()
	wait, err := master.WaitDuration()
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	signal := completion.New(len(jobs))
	managed, err := d.prepare(batchID, jobs, signal)
	if err != nil {
		return nil, err
	}
	if err := d.register(managed); err != nil {
		return nil, err
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if wait > 0 {
		runCtx, cancel = context.WithTimeout(ctx, wait)
	}
	defer cancel()

	d.logger.Info("Dispatching batch", "batch_id", batchID, "jobs", len(jobs), "master", master.String())
	d.opts.Events.Publish(events.BatchStartedEvent{
		BatchID:   batchID,
		Jobs:      len(jobs),
		Timestamp: time.Now().Format(time.RFC3339),
	})

	var wg sync.WaitGroup
	for _, mj := range managed {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.runJob(runCtx, mj)
		}()
	}

	<-signal.Done()
	wg.Wait()

	results := make([]Result, len(managed))
	failed := 0
	for i, mj := range managed {
		results[i] = d.result(mj)
		if results[i].Failed() {
			failed++
		}
	}

	d.logger.Info("Batch finished", "batch_id", batchID, "jobs", len(jobs), "failed", failed)
	d.opts.Events.Publish(events.BatchFinishedEvent{
		BatchID:   batchID,
		Jobs:      len(jobs),
		Failed:    failed,
		Timestamp: time.Now().Format(time.RFC3339),
	})

	if err := ctx.Err(); err != nil {
		return results, err
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return results, fmt.Errorf("%w: %s", ErrDeadlineExceeded, wait)
	}
	return results, nil
}

// prepare builds one executor per job, sharing signal.
func (d *Dispatcher) prepare(batchID string, jobs []Job, signal *completion.Signal) ([]*managedJob, error) {
	seen := make(map[string]bool, len(jobs))
	managed := make([]*managedJob, len(jobs))

	for i, job := range jobs {
		if job.ID == "" {
			return nil, fmt.Errorf("%w: job %d: missing id", ErrInvalidJob, i)
		}
		if seen[job.ID] {
			return nil, fmt.Errorf("%w: duplicate job id %q", ErrInvalidJob, job.ID)
		}
		seen[job.ID] = true

		node := job.Node
		if node == "" {
			node = job.ID
		}
		opts := []executor.Option{executor.WithEvents(d.opts.Events)}
		if d.opts.ConfigureExecutor != nil {
			opts = append(opts, d.opts.ConfigureExecutor(job)...)
		}
		exec, err := executor.NewProcessExecutor(node, job.Args, job.Elevated, signal, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: job %q: %w", ErrInvalidJob, job.ID, err)
		}

		job.Node = node
		managed[i] = &managedJob{
			job:      job,
			batchID:  batchID,
			exec:     exec,
			sink:     executor.NewLineBuffer(),
			state:    executor.StateCreated,
			exitCode: executor.ExitCodeNotStarted,
		}
	}
	return managed, nil
}

// register makes a batch visible to Stop, Status and List. It fails if any
// job ID belongs to a job that has not finished yet.
func (d *Dispatcher) register(managed []*managedJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, mj := range managed {
		if prev, ok := d.jobs[mj.job.ID]; ok && isActive(prev.state) {
			return fmt.Errorf("%w: %s", ErrJobRunning, mj.job.ID)
		}
	}
	for _, mj := range managed {
		if _, ok := d.jobs[mj.job.ID]; !ok {
			d.order = append(d.order, mj.job.ID)
		}
		d.jobs[mj.job.ID] = mj
	}
	return nil
}

// runJob drives one executor and records its outcome.
func (d *Dispatcher) runJob(ctx context.Context, mj *managedJob) {
	d.transition(mj, executor.StateRunning, nil)

	exitCode, err := mj.exec.Execute(ctx, mj.sink, !mj.job.Quiet)

	d.mu.Lock()
	mj.exitCode = exitCode
	mj.err = err
	mj.finishedAt = time.Now()
	d.mu.Unlock()

	d.transition(mj, mj.exec.Outcome(), err)

	if err != nil {
		d.logger.Error("Job failed", "id", mj.job.ID, "node", mj.job.Node, "error", err)
		return
	}
	d.logger.Info("Job finished", "id", mj.job.ID, "node", mj.job.Node, "exit_code", exitCode)
}

func (d *Dispatcher) transition(mj *managedJob, newState executor.State, err error) {
	d.mu.Lock()
	oldState := mj.state
	mj.state = newState
	if newState == executor.StateRunning {
		mj.startedAt = time.Now()
	}
	d.mu.Unlock()

	if d.opts.OnStateChange != nil {
		d.opts.OnStateChange(mj.job.ID, oldState, newState, err)
	}
}

func (d *Dispatcher) result(mj *managedJob) Result {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Result{
		JobID:     mj.job.ID,
		Node:      mj.job.Node,
		ExitCode:  mj.exitCode,
		Lines:     mj.sink.Lines(),
		Err:       mj.err,
		State:     mj.state,
		StartedAt: mj.startedAt,
		Duration:  mj.finishedAt.Sub(mj.startedAt),
	}
}

// Stop requests a halt of the job with the given ID. Stopping a finished
// job is a no-op.
func (d *Dispatcher) Stop(id string) error {
	d.mu.RLock()
	mj, ok := d.jobs[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	d.logger.Info("Stopping job", "id", id, "node", mj.job.Node)
	mj.exec.Stop()
	return nil
}

// StopAll requests a halt of every active job. It does not wait for them.
func (d *Dispatcher) StopAll() {
	d.mu.RLock()
	active := make([]*managedJob, 0, len(d.jobs))
	for _, mj := range d.jobs {
		if isActive(mj.state) {
			active = append(active, mj)
		}
	}
	d.mu.RUnlock()

	d.logger.Info("Stopping all jobs", "count", len(active))
	for _, mj := range active {
		mj.exec.Stop()
	}
}

// Status returns the latest view of a job.
func (d *Dispatcher) Status(id string) (*Info, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	mj, ok := d.jobs[id]
	if !ok {
		return nil, false
	}
	info := mj.info()
	return &info, true
}

// List returns every tracked job in first-seen order.
func (d *Dispatcher) List() []Info {
	d.mu.RLock()
	defer d.mu.RUnlock()

	infos := make([]Info, 0, len(d.order))
	for _, id := range d.order {
		infos = append(infos, d.jobs[id].info())
	}
	return infos
}

// info must be called with the dispatcher lock held.
func (mj *managedJob) info() Info {
	return Info{
		ID:         mj.job.ID,
		Node:       mj.job.Node,
		BatchID:    mj.batchID,
		Args:       append([]string(nil), mj.job.Args...),
		Elevated:   mj.job.Elevated,
		State:      mj.state,
		ExitCode:   mj.exitCode,
		Lines:      mj.sink.Lines(),
		StartedAt:  mj.startedAt,
		FinishedAt: mj.finishedAt,
		LastError:  mj.err,
	}
}

func isActive(s executor.State) bool {
	return s == executor.StateCreated || s == executor.StateRunning
}

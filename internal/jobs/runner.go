// Package jobs runs the named synchronization jobs: one run at a time per
// job, each with its own log file, ledger row, metrics and live events.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xelth-com/arcasync/internal/metrics"
	"github.com/xelth-com/arcasync/internal/models"
	arcsync "github.com/xelth-com/arcasync/internal/sync"
	"github.com/xelth-com/arcasync/internal/websocket"
)

var (
	// ErrJobRunning is returned when the job already has an active run
	ErrJobRunning = errors.New("jobs: job already running")
	// ErrUnknownJob is returned for a name that was never registered
	ErrUnknownJob = errors.New("jobs: unknown job")
)

// Trigger sources recorded in the ledger
const (
	TriggerHTTP     = "http"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
)

// Func performs one run of a job, logging to obs.Log
type Func func(ctx context.Context, obs arcsync.Observer) (*arcsync.Result, error)

// Job is a registered unit of work
type Job struct {
	Name        string
	Description string
	Run         Func
}

// Publisher receives job events; *websocket.Hub satisfies it
type Publisher interface {
	Publish(event websocket.Event)
}

// Run is one execution of a job
type Run struct {
	ID        string
	Job       string
	Trigger   string
	StartedAt time.Time
	LogFile   string

	done   chan struct{}
	result *arcsync.Result
	err    error
}

// Done is closed when the run has finished
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result returns the outcome; valid once Done is closed
func (r *Run) Result() (*arcsync.Result, error) {
	return r.result, r.err
}

// Wait blocks until the run finishes or ctx ends
func (r *Run) Wait(ctx context.Context) (*arcsync.Result, error) {
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Runner owns the job registry and serializes runs per job
type Runner struct {
	jobs   map[string]Job
	logDir string
	ledger Ledger
	events Publisher
	now    func() time.Time

	mu      sync.Mutex
	running map[string]*Run
	errMu   sync.Mutex

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a runner. Runs execute on a context detached from the
// triggering request and end only on Shutdown.
func NewRunner(logDir string, ledger Ledger, events Publisher) *Runner {
	base, cancel := context.WithCancel(context.Background())
	return &Runner{
		jobs:    make(map[string]Job),
		logDir:  logDir,
		ledger:  ledger,
		events:  events,
		now:     time.Now,
		running: make(map[string]*Run),
		base:    base,
		cancel:  cancel,
	}
}

// Register adds a job, replacing any job with the same name
func (r *Runner) Register(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.Name] = job
}

// Jobs lists the registered jobs by name
func (r *Runner) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Running lists the active runs
func (r *Runner) Running() []*Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Run, 0, len(r.running))
	for _, run := range r.running {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

// LogDir returns the directory holding run logs
func (r *Runner) LogDir() string {
	return r.logDir
}

// Recent returns ledger rows, newest first
func (r *Runner) Recent(ctx context.Context, job string, limit int) ([]models.SyncHistory, error) {
	if r.ledger == nil {
		return nil, nil
	}
	return r.ledger.Recent(ctx, job, limit)
}

// Start launches a run of name in the background
func (r *Runner) Start(name, trigger string) (*Run, error) {
	r.mu.Lock()
	job, ok := r.jobs[name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if _, busy := r.running[name]; busy {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	if r.base.Err() != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("runner stopped: %w", r.base.Err())
	}

	run := &Run{
		ID:        uuid.New().String(),
		Job:       name,
		Trigger:   trigger,
		StartedAt: r.now(),
		done:      make(chan struct{}),
	}
	r.running[name] = run
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.running, name)
			r.mu.Unlock()
			close(run.done)
		}()
		r.execute(job, run)
	}()
	return run, nil
}

// Trigger starts a run and, when wait is set, blocks until it finishes or
// ctx ends. Cancelling ctx never cancels the run itself.
func (r *Runner) Trigger(ctx context.Context, name, trigger string, wait bool) (*Run, error) {
	run, err := r.Start(name, trigger)
	if err != nil || !wait {
		return run, err
	}
	select {
	case <-run.Done():
		return run, nil
	case <-ctx.Done():
		return run, ctx.Err()
	}
}

// Shutdown cancels active runs and waits for them to stop
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) execute(job Job, run *Run) {
	logger, closeLog := r.openLog(run)
	defer closeLog()

	row := &models.SyncHistory{
		RunID:     run.ID,
		Job:       run.Job,
		Trigger:   run.Trigger,
		Status:    models.RunStatusRunning,
		StartedAt: run.StartedAt,
		LogFile:   run.LogFile,
	}
	if r.ledger != nil {
		if err := r.ledger.Start(r.base, row); err != nil {
			log.Printf("⚠️  Ledger: failed to record start of %s: %v", run.Job, err)
		}
	}

	logger.Printf("🔄 Job %s started (run %s, trigger %s)", run.Job, run.ID, run.Trigger)
	r.publish(websocket.Event{Type: websocket.EventJobStarted, Job: run.Job, RunID: run.ID})

	obs := arcsync.Observer{
		Job:       run.Job,
		Log:       logger,
		OnFailure: func(f arcsync.Failure) { r.onFailure(run, f) },
	}

	var res *arcsync.Result
	err := arcsync.Safely(func() error {
		var err error
		res, err = job.Run(r.base, obs)
		return err
	})
	run.result, run.err = res, err

	finished := r.now()
	applyResult(row, res, err, finished)
	if err != nil {
		logger.Printf("❌ Job %s failed: %v", run.Job, err)
	} else {
		logger.Printf("✅ Job %s finished in %s: status %s", run.Job, finished.Sub(run.StartedAt).Round(time.Millisecond), row.Status)
	}
	metrics.RecordJobRun(run.Job, row.Status, finished.Sub(run.StartedAt))

	if r.ledger != nil {
		// the row must be closed even when the run was cancelled by shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := r.ledger.Finish(ctx, row); err != nil {
			log.Printf("⚠️  Ledger: failed to record end of %s: %v", run.Job, err)
		}
		cancel()
	}

	r.publish(websocket.Event{Type: websocket.EventJobFinished, Job: run.Job, RunID: run.ID, Data: map[string]interface{}{
		"status":  row.Status,
		"created": row.Created,
		"updated": row.Updated,
		"deleted": row.Deleted,
		"skipped": row.Skipped,
		"failed":  row.Errors,
	}})
}

// openLog creates the per-run log file. Output also goes to the process log.
func (r *Runner) openLog(run *Run) (*log.Logger, func()) {
	var out io.Writer = log.Writer()
	closeFn := func() {}

	if r.logDir != "" {
		if err := os.MkdirAll(r.logDir, 0o755); err != nil {
			log.Printf("⚠️  Cannot create log directory %s: %v", r.logDir, err)
		} else {
			path := runLogPath(r.logDir, run.Job, run.StartedAt)
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				log.Printf("⚠️  Cannot open run log %s: %v", path, err)
			} else {
				run.LogFile = path
				out = io.MultiWriter(f, log.Writer())
				closeFn = func() { f.Close() }
			}
		}
	}
	return log.New(out, "["+run.Job+"] ", log.LstdFlags), closeFn
}

func (r *Runner) onFailure(run *Run, f arcsync.Failure) {
	r.publish(websocket.Event{Type: websocket.EventItemFailed, Job: run.Job, RunID: run.ID, Data: map[string]string{
		"key":   f.Key,
		"op":    string(f.Op),
		"error": f.Err,
	}})

	if f.Op != arcsync.OpStock && run.Job != "products-stocks" {
		return
	}
	if r.logDir == "" {
		return
	}
	r.errMu.Lock()
	defer r.errMu.Unlock()
	line := fmt.Sprintf("%s %s %s: %s", run.Job, f.Op, f.Key, f.Err)
	if err := appendLine(filepath.Join(r.logDir, ErrorLogName), r.now(), line); err != nil {
		log.Printf("⚠️  Cannot write %s: %v", ErrorLogName, err)
	}
}

func (r *Runner) publish(event websocket.Event) {
	if r.events != nil {
		r.events.Publish(event)
	}
}

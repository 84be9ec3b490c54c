// Package runner serializes campaign runs. Every trigger (CLI, watcher, API)
// submits jobs to one Runner, which executes them one at a time on a single
// worker goroutine.
package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jgueth/campaign-automation/internal/ledger"
	"github.com/jgueth/campaign-automation/internal/logging"
	"github.com/jgueth/campaign-automation/internal/pathutil"
	"github.com/jgueth/campaign-automation/internal/report"
	"github.com/jgueth/campaign-automation/internal/workflow"
)

var (
	// ErrDuplicate is returned when the same campaign file is already queued,
	// running, or was processed before.
	ErrDuplicate = errors.New("campaign already queued or processed")
	// ErrQueueFull is returned when the pending queue is at capacity.
	ErrQueueFull = errors.New("run queue is full")
	// ErrStopped is returned when the runner is not accepting work.
	ErrStopped = errors.New("runner is stopped")
)

// Trigger names what submitted a job.
type Trigger string

const (
	TriggerCLI     Trigger = "cli"
	TriggerWatcher Trigger = "watcher"
	TriggerAPI     Trigger = "api"
)

// Executor runs one campaign. *workflow.Orchestrator satisfies it.
type Executor interface {
	Run(ctx context.Context, opts workflow.Options) (*workflow.Result, error)
}

// Ledger records run history. *ledger.Store satisfies it.
type Ledger interface {
	RecordStart(run *ledger.Run) error
	RecordFinish(run *ledger.Run) error
	HasProcessed(campaignFile string) (bool, error)
}

// Job is one request to run a campaign file.
type Job struct {
	CampaignFile string
	Sync         bool
	Trigger      Trigger
	// Force runs the file even when it was processed before. Queued or
	// running duplicates are rejected regardless.
	Force bool
}

// Ticket tracks a submitted job until it finishes. Path is the resolved
// absolute campaign file and Hash the sha256 of its content at submit time.
type Ticket struct {
	ID   string
	Job  Job
	Path string
	Hash string

	key    string
	done   chan struct{}
	result *workflow.Result
	err    error
}

// Done is closed once the run has finished.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Result returns the run outcome. It is only meaningful after Done is closed.
func (t *Ticket) Result() (*workflow.Result, error) { return t.result, t.err }

// Wait blocks until the run finishes or ctx is done.
func (t *Ticket) Wait(ctx context.Context) (*workflow.Result, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Config configures a Runner.
type Config struct {
	QueueSize    int
	RunTimeout   time.Duration
	CampaignsDir string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:  64,
		RunTimeout: 15 * time.Minute,
	}
}

// FinishFunc is called after each run, from the worker goroutine.
type FinishFunc func(t *Ticket, res *workflow.Result, err error)

// Runner owns the single worker that executes queued campaign runs.
type Runner struct {
	cfg    Config
	exec   Executor
	ledger Ledger

	mu        sync.Mutex
	running   bool
	queue     chan *Ticket
	inflight  map[string]*Ticket
	processed map[string]bool
	onFinish  FinishFunc
	cancel    context.CancelFunc
	stopCh    chan struct{}
	doneCh    chan struct{}

	newID func() string
	now   func() time.Time
}

// New creates a runner. led may be nil.
func New(exec Executor, led Ledger, cfg Config) *Runner {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = def.RunTimeout
	}
	return &Runner{
		cfg:       cfg,
		exec:      exec,
		ledger:    led,
		inflight:  make(map[string]*Ticket),
		processed: make(map[string]bool),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// OnFinish registers fn to be called after every run.
func (r *Runner) OnFinish(fn FinishFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFinish = fn
}

// Start launches the worker. Runs inherit ctx.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.running = true
	r.cancel = cancel
	r.queue = make(chan *Ticket, r.cfg.QueueSize)
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.worker(runCtx, r.queue, r.stopCh, r.doneCh)

	logging.Get(logging.CategoryRunner).Info("Runner started (queue=%d, run_timeout=%v)", r.cfg.QueueSize, r.cfg.RunTimeout)
	return nil
}

// Stop cancels the active run, waits for the worker to exit and fails every
// job still queued with ErrStopped.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.cancel()
	queue, doneCh := r.queue, r.doneCh
	r.mu.Unlock()

	<-doneCh

	drained := 0
	for {
		select {
		case t := <-queue:
			r.complete(t, nil, ErrStopped)
			drained++
		default:
			if drained > 0 {
				logging.Get(logging.CategoryRunner).Warn("Runner stopped with %d queued run(s) dropped", drained)
			} else {
				logging.Get(logging.CategoryRunner).Info("Runner stopped")
			}
			return
		}
	}
}

// Pending returns the number of queued or running jobs.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}

// Submit queues job. Jobs are keyed by resolved file path: a duplicate of a
// queued or running job returns that job's ticket together with ErrDuplicate,
// and a file that was processed before is rejected unless job.Force is set.
// Editing a file does not make it new.
func (r *Runner) Submit(job Job) (*Ticket, error) {
	path, hash, resolved := r.fingerprint(job.CampaignFile)
	key := ""
	if resolved {
		key = path
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil, ErrStopped
	}
	if key != "" {
		if existing, ok := r.inflight[key]; ok {
			return existing, ErrDuplicate
		}
		if !job.Force {
			if r.processed[key] {
				return nil, ErrDuplicate
			}
			if r.ledger != nil {
				seen, err := r.ledger.HasProcessed(key)
				if err != nil {
					logging.Get(logging.CategoryRunner).Warn("Could not query ledger for %s: %v", job.CampaignFile, err)
				} else if seen {
					r.processed[key] = true
					return nil, ErrDuplicate
				}
			}
		}
	}

	t := &Ticket{
		ID:   r.newID(),
		Job:  job,
		Path: path,
		Hash: hash,
		key:  key,
		done: make(chan struct{}),
	}
	select {
	case r.queue <- t:
	default:
		return nil, fmt.Errorf("%w: %d run(s) pending", ErrQueueFull, len(r.queue))
	}
	if key != "" {
		r.inflight[key] = t
	}
	logging.Get(logging.CategoryRunner).Info("Queued run %s for %s (trigger=%s)", t.ID, job.CampaignFile, job.Trigger)
	return t, nil
}

// fingerprint resolves the campaign file to an absolute path and hashes its
// content. An unresolvable file is not deduplicated; its run fails at
// structure validation.
func (r *Runner) fingerprint(file string) (path, hash string, resolved bool) {
	path, err := pathutil.Resolve(file, r.cfg.CampaignsDir)
	if err != nil {
		return file, "", false
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if data, err := os.ReadFile(path); err == nil {
		sum := sha256.Sum256(data)
		hash = hex.EncodeToString(sum[:])
	}
	return path, hash, true
}

func (r *Runner) worker(ctx context.Context, queue <-chan *Ticket, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	for {
		// Stop wins over queued work.
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case t := <-queue:
			r.process(ctx, t)
		}
	}
}

func (r *Runner) process(ctx context.Context, t *Ticket) {
	log := logging.Get(logging.CategoryRunner).With("run_id", t.ID)
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	defer cancel()

	entry := &ledger.Run{
		ID:           t.ID,
		Trigger:      string(t.Job.Trigger),
		CampaignFile: t.Path,
		ContentHash:  t.Hash,
		StartedAt:    r.now(),
	}
	if r.ledger != nil {
		if err := r.ledger.RecordStart(entry); err != nil {
			log.Warn("Could not record run start: %v", err)
		}
	}

	log.Info("Running %s", t.Path)
	res, err := r.exec.Run(runCtx, workflow.Options{
		RunID:        t.ID,
		CampaignFile: t.Path,
		Sync:         t.Job.Sync,
	})
	if err != nil {
		log.Error("Run failed: %v", err)
	}

	if r.ledger != nil {
		fillOutcome(entry, res, err)
		entry.FinishedAt = r.now()
		if lerr := r.ledger.RecordFinish(entry); lerr != nil {
			log.Warn("Could not record run finish: %v", lerr)
		}
	}
	r.complete(t, res, err)
}

func fillOutcome(entry *ledger.Run, res *workflow.Result, err error) {
	entry.Status = string(report.StatusFailed)
	if res != nil {
		entry.CampaignID = res.CampaignID
		entry.ReportPath = res.ReportPath
		if res.Status != "" {
			entry.Status = string(res.Status)
		}
		if res.Report != nil {
			entry.Stages = res.Report.Stages
			entry.FailedStage = res.Report.FailedStage
		}
	}
	if err != nil {
		entry.Status = string(report.StatusFailed)
		entry.Error = err.Error()
		var se *workflow.StageError
		if errors.As(err, &se) {
			entry.FailedStage = string(se.Stage)
		}
	}
}

// complete publishes the outcome and releases the dedupe slot.
func (r *Runner) complete(t *Ticket, res *workflow.Result, err error) {
	r.mu.Lock()
	if t.key != "" {
		delete(r.inflight, t.key)
		if !errors.Is(err, ErrStopped) {
			r.processed[t.key] = true
		}
	}
	fn := r.onFinish
	r.mu.Unlock()

	t.result, t.err = res, err
	close(t.done)

	if fn != nil && !errors.Is(err, ErrStopped) {
		fn(t, res, err)
	}
}

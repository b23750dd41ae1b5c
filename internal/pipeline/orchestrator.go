// Package pipeline implements the Pipeline Orchestrator: the state machine
// that drives a Job through extraction, labeling, clustering, merging,
// ranking, and enhancement, dispatching each stage's bounded fan-out over
// the job's MediaFiles.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shotsort/shotsort-api/internal/blobstore"
	"github.com/shotsort/shotsort-api/internal/bucket"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/match"
	"github.com/shotsort/shotsort-api/internal/media"
	"github.com/shotsort/shotsort-api/internal/modelprovider"
)

// ErrNoMediaFiles is the fatal-per-job error when an archive expands to
// zero accepted entries (§8 Boundaries).
var ErrNoMediaFiles = errors.New("pipeline: no media files")

// Concurrency holds the per-stage pool bounds from spec §5.
type Concurrency struct {
	Label          int
	SameTakePhaseA int
	Merge          int
	CompareQuality int
	Tournament     int
	Enhancement    int
}

// DefaultConcurrency returns the reference bounds from the spec §5 table.
func DefaultConcurrency() Concurrency {
	return Concurrency{
		Label:          10,
		SameTakePhaseA: 20,
		Merge:          40,
		CompareQuality: 8,
		Tournament:     3,
		Enhancement:    3,
	}
}

// Orchestrator drives jobs through the pipeline stages.
type Orchestrator struct {
	jobs    job.Repository
	media   media.Repository
	buckets bucket.Repository
	matches match.Repository
	blobs   blobstore.Store
	scratch blobstore.ScratchStore
	model   modelprovider.Client
	logger  *slog.Logger
	conc    Concurrency

	mu        sync.Mutex
	cancelFns map[string]context.CancelFunc
}

// New creates an Orchestrator with all its adapter dependencies.
func New(
	jobs job.Repository,
	mediaRepo media.Repository,
	buckets bucket.Repository,
	matches match.Repository,
	blobs blobstore.Store,
	scratch blobstore.ScratchStore,
	model modelprovider.Client,
	logger *slog.Logger,
	conc Concurrency,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		jobs:      jobs,
		media:     mediaRepo,
		buckets:   buckets,
		matches:   matches,
		blobs:     blobs,
		scratch:   scratch,
		model:     model,
		logger:    logger,
		conc:      conc,
		cancelFns: make(map[string]context.CancelFunc),
	}
}

// Run advances j through every remaining stage until it reaches a terminal
// status or a suspension point is cancelled. sink receives progress events
// for the duration of the run.
func (o *Orchestrator) Run(ctx context.Context, j *job.Job, sink Sink) error {
	if sink == nil {
		sink = NoopSink{}
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancelFns[j.ID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancelFns, j.ID)
		o.mu.Unlock()
		cancel()
	}()

	for {
		status := j.GetStatus()
		if status.IsTerminal() {
			return nil
		}

		var err error
		switch status {
		case job.StatusUploading:
			err = o.failStuckUploading(runCtx, j)
		case job.StatusExtracting:
			err = o.runExtracting(runCtx, j, sink)
		case job.StatusLabeling:
			err = o.runLabeling(runCtx, j, sink)
		case job.StatusClustering:
			err = o.runClustering(runCtx, j, sink)
		case job.StatusMerging:
			err = o.runMerging(runCtx, j, sink)
		case job.StatusRanking:
			err = o.runRanking(runCtx, j, sink)
		case job.StatusEnhancing:
			err = o.runEnhancing(runCtx, j, sink)
		default:
			return fmt.Errorf("pipeline: unknown job status %q", status)
		}

		if err != nil {
			if errors.Is(err, context.Canceled) {
				o.logger.Info("stage cancelled, leaving job in place",
					slog.String("job_id", j.ID), slog.String("status", string(status)))
				return nil
			}
			return o.fail(runCtx, j, err)
		}

		if status == j.GetStatus() {
			// A stage that did not error must have advanced the job;
			// guard against an accidental infinite loop.
			return fmt.Errorf("pipeline: stage %q did not advance job %s", status, j.ID)
		}
	}
}

// Cancel requests cooperative cancellation of jobID's in-flight run, if any.
func (o *Orchestrator) Cancel(jobID string) {
	o.mu.Lock()
	cancel, ok := o.cancelFns[jobID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

func (o *Orchestrator) fail(ctx context.Context, j *job.Job, cause error) error {
	msg := cause.Error()
	if err := j.Fail(msg); err != nil {
		o.logger.Error("failed to transition job to failed", slog.String("job_id", j.ID), slog.String("error", err.Error()))
	}
	if err := o.jobs.Save(ctx, j); err != nil {
		o.logger.Error("failed to persist failed job", slog.String("job_id", j.ID), slog.String("error", err.Error()))
	}
	o.logger.Error("job failed", slog.String("job_id", j.ID), slog.String("error", msg))
	return cause
}

func (o *Orchestrator) advance(ctx context.Context, j *job.Job, next job.Status) error {
	if err := j.TransitionTo(next); err != nil {
		return fmt.Errorf("advance to %s: %w", next, err)
	}
	return o.jobs.Save(ctx, j)
}

// failStuckUploading is the defensive fallback if Run is ever invoked
// directly on a job still in uploading: the real recovery path is Recover,
// called once at boot before any job is resumed.
func (o *Orchestrator) failStuckUploading(ctx context.Context, j *job.Job) error {
	return errors.New(stuckUploadMessage)
}

// Package job provides the Job aggregate: the root of the processing
// pipeline, its state machine, and its persistence port.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/shotsort/shotsort-api/internal/ids"
)

// Status represents the current stage of a Job through the pipeline.
type Status string

// Status progression, per the upload -> extract -> label -> cluster -> merge
// -> rank -> enhance -> complete pipeline. Failed is reachable from any
// non-terminal state.
const (
	StatusUploading  Status = "uploading"
	StatusExtracting Status = "extracting"
	StatusLabeling   Status = "labeling"
	StatusClustering Status = "clustering"
	StatusMerging    Status = "merging"
	StatusRanking    Status = "ranking"
	StatusEnhancing  Status = "enhancing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("job: invalid state transition")

// stageOrder is the linear progression a healthy job walks through.
var stageOrder = []Status{
	StatusUploading,
	StatusExtracting,
	StatusLabeling,
	StatusClustering,
	StatusMerging,
	StatusRanking,
	StatusEnhancing,
	StatusCompleted,
}

// NextStage returns the status that follows the given one in the happy path.
func NextStage(s Status) (Status, bool) {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// IsTerminal reports whether a status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func canTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	next, ok := NextStage(from)
	return ok && next == to
}

// Job is the aggregate root for one end-to-end processing run.
type Job struct {
	mu sync.RWMutex

	ID              string
	Name            string
	Status          Status
	TotalFiles      int
	ProcessedFiles  int
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     time.Time
}

// New creates a Job in the initial uploading state.
func New(name string) *Job {
	now := time.Now()
	return &Job{
		ID:        ids.New(ids.KindJob),
		Name:      name,
		Status:    StatusUploading,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo moves the job to a new status if the transition is legal.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}
	j.Status = status
	j.UpdatedAt = time.Now()
	j.ProcessedFiles = 0
	if status.IsTerminal() {
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Fail transitions the job to failed, recording the error message.
// Unlike other transitions, Fail does not reset ProcessedFiles, so the
// partial progress at the moment of failure remains inspectable.
func (j *Job) Fail(message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.Status.IsTerminal() {
		return ErrInvalidTransition
	}
	j.Status = StatusFailed
	j.Error = message
	j.UpdatedAt = time.Now()
	j.CompletedAt = j.UpdatedAt
	return nil
}

// UpdateProgress sets (processedFiles, totalFiles), clamping to I1 (0 <=
// processedFiles <= totalFiles).
func (j *Job) UpdateProgress(processed, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if total < 0 {
		total = 0
	}
	if processed < 0 {
		processed = 0
	}
	if processed > total {
		processed = total
	}
	j.ProcessedFiles = processed
	j.TotalFiles = total
	j.UpdatedAt = time.Now()
}

// GetStatus returns the current status (thread-safe read).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Clone returns a deep copy suitable for safe handoff across goroutines.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &Job{
		ID:             j.ID,
		Name:           j.Name,
		Status:         j.Status,
		TotalFiles:     j.TotalFiles,
		ProcessedFiles: j.ProcessedFiles,
		Error:          j.Error,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
		CompletedAt:    j.CompletedAt,
	}
}

// Package query implements the read-only projections the REST surface
// serves: the paged job summary list, the progressive partial-results view,
// and the final ranked-results view (spec.md §4.9).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shotsort/shotsort-api/internal/bucket"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/media"
)

// ErrNotCompleted is returned by FinalResults when the job has not yet
// reached StatusCompleted (GET /jobs/:id/results must 400 in that case).
var ErrNotCompleted = errors.New("query: job is not completed")

// Service answers read-only questions about jobs and their media, composing
// the same repositories the Orchestrator writes through.
type Service struct {
	jobs    job.Repository
	media   media.Repository
	buckets bucket.Repository
}

// New creates a Service over the three repositories it projects.
func New(jobs job.Repository, mediaRepo media.Repository, buckets bucket.Repository) *Service {
	return &Service{jobs: jobs, media: mediaRepo, buckets: buckets}
}

// JobSummary is the list/detail projection of a Job.
type JobSummary struct {
	ID             string
	Name           string
	Status         string
	TotalFiles     int
	ProcessedFiles int
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    time.Time
}

func summaryOf(j *job.Job) JobSummary {
	return JobSummary{
		ID:             j.ID,
		Name:           j.Name,
		Status:         string(j.Status),
		TotalFiles:     j.TotalFiles,
		ProcessedFiles: j.ProcessedFiles,
		Error:          j.Error,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
		CompletedAt:    j.CompletedAt,
	}
}

// MediaSummary is the projection of a MediaFile used inside bucket and
// unclustered listings.
type MediaSummary struct {
	ID              string
	Filename        string
	MediaType       string
	BlobURL         string
	Label           string
	RatingScore     float64
	IsTopPick       bool
	EnhancedBlobURL string
}

func mediaSummaryOf(m *media.MediaFile) MediaSummary {
	return MediaSummary{
		ID:              m.ID,
		Filename:        m.Filename,
		MediaType:       string(m.MediaType),
		BlobURL:         m.BlobURL,
		Label:           m.Label,
		RatingScore:     m.RatingScore,
		IsTopPick:       m.IsTopPick,
		EnhancedBlobURL: m.EnhancedBlobURL,
	}
}

// BucketView is a bucket with its members, ordered by RatingScore desc
// (the order media.Repository.ListByBucket already returns).
type BucketView struct {
	ID        string
	Name      string
	MediaType string
	Members   []MediaSummary
}

// ListJobs returns job summaries ordered by CreatedAt desc, paged by
// limit/offset, for GET /jobs.
func (s *Service) ListJobs(ctx context.Context, limit, offset int) ([]JobSummary, error) {
	jobs, err := s.jobs.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]JobSummary, len(jobs))
	for i, j := range jobs {
		out[i] = summaryOf(j)
	}
	return out, nil
}

// GetJob returns one job's summary, for GET /jobs/:id.
func (s *Service) GetJob(ctx context.Context, jobID string) (JobSummary, error) {
	j, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return JobSummary{}, err
	}
	return summaryOf(j), nil
}

// PartialResult is the progressive-results projection (§4.9b): every bucket
// formed so far, plus any media files not yet assigned to one.
type PartialResult struct {
	Job         JobSummary
	Buckets     []BucketView
	Unclustered []MediaSummary
}

// PartialResults builds the progressive view for jobID, usable at any stage
// of the pipeline.
func (s *Service) PartialResults(ctx context.Context, jobID string) (*PartialResult, error) {
	j, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	buckets, err := s.buckets.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	bucketViews := make([]BucketView, len(buckets))
	for i, b := range buckets {
		members, err := s.media.ListByBucket(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("list members of bucket %s: %w", b.ID, err)
		}
		summaries := make([]MediaSummary, len(members))
		for k, m := range members {
			summaries[k] = mediaSummaryOf(m)
		}
		bucketViews[i] = BucketView{ID: b.ID, Name: b.Name, MediaType: string(b.MediaType), Members: summaries}
	}

	unclustered, err := s.media.ListUnclustered(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list unclustered media: %w", err)
	}
	unclusteredSummaries := make([]MediaSummary, len(unclustered))
	for i, m := range unclustered {
		unclusteredSummaries[i] = mediaSummaryOf(m)
	}

	return &PartialResult{
		Job:         summaryOf(j),
		Buckets:     bucketViews,
		Unclustered: unclusteredSummaries,
	}, nil
}

// FinalResult is the terminal-results projection (§4.9c): top picks across
// the whole job plus every bucket's full ranked member list.
type FinalResult struct {
	Job      JobSummary
	TopPicks []MediaSummary
	Buckets  []BucketView
}

// FinalResults builds the terminal view for jobID. It returns
// ErrNotCompleted if the job has not yet reached StatusCompleted.
func (s *Service) FinalResults(ctx context.Context, jobID string) (*FinalResult, error) {
	j, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != job.StatusCompleted {
		return nil, ErrNotCompleted
	}

	buckets, err := s.buckets.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	bucketViews := make([]BucketView, len(buckets))
	var topPicks []MediaSummary
	for i, b := range buckets {
		members, err := s.media.ListByBucket(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("list members of bucket %s: %w", b.ID, err)
		}
		summaries := make([]MediaSummary, len(members))
		for k, m := range members {
			ms := mediaSummaryOf(m)
			summaries[k] = ms
			if m.IsTopPick {
				topPicks = append(topPicks, ms)
			}
		}
		bucketViews[i] = BucketView{ID: b.ID, Name: b.Name, MediaType: string(b.MediaType), Members: summaries}
	}

	return &FinalResult{
		Job:      summaryOf(j),
		TopPicks: topPicks,
		Buckets:  bucketViews,
	}, nil
}

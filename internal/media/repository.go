package media

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a MediaFile cannot be found by ID.
var ErrNotFound = errors.New("media: not found")

// Repository is the persistence port for MediaFile aggregates.
type Repository interface {
	Save(ctx context.Context, m *MediaFile) error
	// SaveBatch persists several MediaFiles in one transaction, used by the
	// Archive Expander to avoid one round trip per extracted file.
	SaveBatch(ctx context.Context, files []*MediaFile) error
	FindByID(ctx context.Context, id string) (*MediaFile, error)
	ListByJob(ctx context.Context, jobID string) ([]*MediaFile, error)
	// ListUnlabeled returns files in a job that the Labeler stage has not
	// yet annotated, making the stage idempotent on resume (spec R1).
	ListUnlabeled(ctx context.Context, jobID string) ([]*MediaFile, error)
	// ListUnclustered returns files in a job with no BucketID set.
	ListUnclustered(ctx context.Context, jobID string) ([]*MediaFile, error)
	// ListByBucket returns files attached to a bucket, ordered by rating desc.
	ListByBucket(ctx context.Context, bucketID string) ([]*MediaFile, error)
	// AssignBuckets updates BucketID for every (mediaID -> bucketID) pair in
	// one batch, used by Clustering's persistence step.
	AssignBuckets(ctx context.Context, assignments map[string]string) error
	DeleteByJob(ctx context.Context, jobID string) error
}

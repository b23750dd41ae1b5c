package bucket

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a Bucket cannot be found by ID.
var ErrNotFound = errors.New("bucket: not found")

// Repository is the persistence port for Bucket aggregates.
type Repository interface {
	Save(ctx context.Context, b *Bucket) error
	FindByID(ctx context.Context, id string) (*Bucket, error)
	ListByJob(ctx context.Context, jobID string) ([]*Bucket, error)
	// Delete removes one bucket, used by the Merging stage to discard a
	// bucket absorbed into another during Phase B collapse.
	Delete(ctx context.Context, id string) error
	DeleteByJob(ctx context.Context, jobID string) error
}

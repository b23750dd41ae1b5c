package job

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a job cannot be found by ID.
var ErrNotFound = errors.New("job: not found")

// Repository is the persistence port for Job aggregates.
type Repository interface {
	Save(ctx context.Context, j *Job) error
	FindByID(ctx context.Context, id string) (*Job, error)
	// List returns job summaries ordered by CreatedAt desc, paged by
	// limit/offset, for the summary-list query surface.
	List(ctx context.Context, limit, offset int) ([]*Job, error)
	// ListResumable returns jobs whose status is neither terminal nor
	// uploading, for boot-time recovery.
	ListResumable(ctx context.Context) ([]*Job, error)
	// ListUploading returns jobs stuck in uploading, for boot-time recovery.
	ListUploading(ctx context.Context) ([]*Job, error)
	Delete(ctx context.Context, id string) error
}

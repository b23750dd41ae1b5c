package match

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a TournamentMatch cannot be found by ID.
var ErrNotFound = errors.New("match: not found")

// Repository is the persistence port for TournamentMatch aggregates.
type Repository interface {
	Save(ctx context.Context, m *TournamentMatch) error
	FindByID(ctx context.Context, id string) (*TournamentMatch, error)
	// ListByBucket returns matches in the order they were recorded
	// (completion order, not submission order, per spec §5).
	ListByBucket(ctx context.Context, bucketID string) ([]*TournamentMatch, error)
	CountByBucket(ctx context.Context, bucketID string) (int, error)
	// DeleteByBucket removes every match for one bucket. Job deletion cascades
	// by calling this once per bucket belonging to the job.
	DeleteByBucket(ctx context.Context, bucketID string) error
}

// Package bucket provides the Bucket aggregate: a same-take group of
// MediaFiles within a job, as produced by the Clustering stage.
package bucket

import (
	"fmt"
	"time"

	"github.com/shotsort/shotsort-api/internal/ids"
	"github.com/shotsort/shotsort-api/internal/media"
)

// Bucket is a same-take group of MediaFiles belonging to one Job.
type Bucket struct {
	ID        string
	JobID     string
	Name      string
	MediaType media.Type
	// Centroid is carried from the spec's data model. The Postgres
	// repository stores and loads it; no pipeline stage sets or reads it.
	Centroid  string
	CreatedAt time.Time
}

// DefaultName is used when the naming model call fails or returns nothing.
func DefaultName(n int) string {
	return fmt.Sprintf("Bucket %d", n)
}

// New creates a Bucket with the given display name.
func New(jobID, name string, mediaType media.Type) *Bucket {
	return &Bucket{
		ID:        ids.New(ids.KindBucket),
		JobID:     jobID,
		Name:      name,
		MediaType: mediaType,
		CreatedAt: time.Now(),
	}
}

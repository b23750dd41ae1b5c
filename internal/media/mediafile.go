// Package media provides the MediaFile aggregate: one ingested photo or
// video and everything the pipeline stages attach to it.
package media

import (
	"time"

	"github.com/shotsort/shotsort-api/internal/ids"
)

// Type distinguishes a still photo from a short video clip.
type Type string

const (
	TypeImage Type = "image"
	TypeVideo Type = "video"
)

// InitialRating is the starting Elo rating every MediaFile gets before its
// bucket's tournament runs (spec §4.6).
const InitialRating = 1000

// MediaFile is one ingested photo or video belonging to a Job.
type MediaFile struct {
	ID              string
	JobID           string
	Filename        string
	OriginalPath    string
	BlobKey         string
	BlobURL         string
	MediaType       Type
	MimeType        string
	SizeBytes       int64
	Label           string
	RatingScore     float64
	IsTopPick       bool
	EnhancedBlobKey string
	EnhancedBlobURL string
	BucketID        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// New creates a MediaFile with the default rating, not yet labeled,
// clustered, or ranked.
func New(jobID, filename, originalPath, blobKey, blobURL string, mediaType Type, mimeType string, size int64) *MediaFile {
	now := time.Now()
	return &MediaFile{
		ID:           ids.New(ids.KindMedia),
		JobID:        jobID,
		Filename:     filename,
		OriginalPath: originalPath,
		BlobKey:      blobKey,
		BlobURL:      blobURL,
		MediaType:    mediaType,
		MimeType:     mimeType,
		SizeBytes:    size,
		RatingScore:  InitialRating,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HasLabel reports whether the Labeler stage has already annotated this file
// (used to make the stage idempotent, per spec §4.4).
func (m *MediaFile) HasLabel() bool {
	return m.Label != ""
}

// IsClustered reports whether this file has been assigned to a bucket.
func (m *MediaFile) IsClustered() bool {
	return m.BucketID != ""
}

// CanEnhance reports whether this file is eligible for the Enhancement
// stage: an image that has already been marked a top pick (invariant I4).
func (m *MediaFile) CanEnhance() bool {
	return m.IsTopPick && m.MediaType == TypeImage
}

// Package blobstore provides content-addressed storage for original and
// enhanced media: put, get, delete, and presigned-GET access, plus a
// scratch-file area used while assembling uploads and expanding archives.
package blobstore

import (
	"context"
	"io"
	"time"
)

// Store defines the port for binary object storage used throughout the
// pipeline. Keys follow the scheme jobs/{jobId}/original/{filename} and
// jobs/{jobId}/enhanced/enhanced_{filename}.
type Store interface {
	// Put uploads data under key and returns a URL for later retrieval.
	Put(ctx context.Context, key string, data io.Reader) (url string, err error)

	// Get retrieves the object stored under key. The caller must close the
	// returned ReadCloser.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object stored under key. Deleting a key that does
	// not exist is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every object whose key starts with prefix, used
	// when a Job is deleted (jobs/{jobId}/).
	DeletePrefix(ctx context.Context, prefix string) error

	// Presign returns a time-limited GET URL for key.
	Presign(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ScratchStore is the local-disk area the Upload Assembler writes chunks
// into and the Archive Expander reads the assembled archive from. It is
// always local disk, regardless of which Store backs final blobs, since
// scratch files never need to survive a process restart.
type ScratchStore interface {
	// Create opens (creating if needed) the scratch file for an upload
	// session, truncated/sized to totalSize bytes.
	Create(ctx context.Context, sessionID string, totalSize int64) (ScratchFile, error)

	// Open opens an existing scratch file for reading, used by the Archive
	// Expander once assembly completes.
	Open(ctx context.Context, sessionID string) (io.ReadCloser, string, error)

	// Remove deletes the scratch file for a session.
	Remove(ctx context.Context, sessionID string) error
}

// ScratchFile supports the seek-by-offset write pattern the Upload
// Assembler uses to place out-of-order chunks (§4.2, resolved OQ1).
type ScratchFile interface {
	io.Closer
	WriteAt(offset int64, data []byte) error
	Path() string
}

// BuildKey returns the content-addressed key for an original upload.
func BuildKey(jobID, filename string) string {
	return "jobs/" + jobID + "/original/" + filename
}

// BuildEnhancedKey returns the content-addressed key for an enhanced image.
func BuildEnhancedKey(jobID, filename string) string {
	return "jobs/" + jobID + "/enhanced/enhanced_" + filename
}

// BuildJobPrefix returns the key prefix covering every blob under a job.
func BuildJobPrefix(jobID string) string {
	return "jobs/" + jobID + "/"
}

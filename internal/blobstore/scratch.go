package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalScratchStore implements ScratchStore on local disk, generalized from
// the teacher's LocalStorage temp-file handling.
type LocalScratchStore struct {
	dir string
}

var _ ScratchStore = (*LocalScratchStore)(nil)

// NewLocalScratchStore creates a LocalScratchStore rooted at dir. If dir is
// empty, os.TempDir()/shotsort-uploads is used.
func NewLocalScratchStore(dir string) (*LocalScratchStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "shotsort-uploads")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	return &LocalScratchStore{dir: dir}, nil
}

func (s *LocalScratchStore) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".part")
}

// Create opens the scratch file for sessionID, pre-sized to totalSize so
// that out-of-order chunk writes can seek directly to their offset
// (resolved OQ1: seek by chunkIndex*chunkSize rather than trust arrival order).
func (s *LocalScratchStore) Create(ctx context.Context, sessionID string, totalSize int64) (ScratchFile, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p := s.path(sessionID)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o640) // #nosec G304 - sessionID is server-generated
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	if totalSize > 0 {
		if err := f.Truncate(totalSize); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("size scratch file: %w", err)
		}
	}
	return &localScratchFile{f: f, path: p}, nil
}

func (s *LocalScratchStore) Open(ctx context.Context, sessionID string) (io.ReadCloser, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	default:
	}

	p := s.path(sessionID)
	f, err := os.Open(p) // #nosec G304 - sessionID is server-generated
	if err != nil {
		return nil, "", fmt.Errorf("open scratch file: %w", err)
	}
	return f, p, nil
}

func (s *LocalScratchStore) Remove(_ context.Context, sessionID string) error {
	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove scratch file: %w", err)
	}
	return nil
}

type localScratchFile struct {
	f    *os.File
	path string
}

func (l *localScratchFile) WriteAt(offset int64, data []byte) error {
	if _, err := l.f.WriteAt(data, offset); err != nil {
		return fmt.Errorf("write scratch chunk at offset %d: %w", offset, err)
	}
	return nil
}

func (l *localScratchFile) Path() string {
	return l.path
}

func (l *localScratchFile) Close() error {
	return l.f.Close()
}

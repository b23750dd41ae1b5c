package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/shotsort/shotsort-api/internal/blobstore"
	"github.com/shotsort/shotsort-api/internal/bucket"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/match"
	"github.com/shotsort/shotsort-api/internal/media"
)

type testDeps struct {
	jobs    *job.MemoryRepository
	media   *media.MemoryRepository
	buckets *bucket.MemoryRepository
	matches *match.MemoryRepository
	blobs   *blobstore.LocalStore
	scratch *blobstore.LocalScratchStore
	model   *fakeModel
	orch    *Orchestrator
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()

	blobs, err := blobstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	scratch, err := blobstore.NewLocalScratchStore(t.TempDir())
	if err != nil {
		t.Fatalf("new scratch store: %v", err)
	}

	d := &testDeps{
		jobs:    job.NewMemoryRepository(),
		media:   media.NewMemoryRepository(),
		buckets: bucket.NewMemoryRepository(),
		matches: match.NewMemoryRepository(),
		blobs:   blobs,
		scratch: scratch,
		model:   newFakeModel(),
	}
	d.orch = New(d.jobs, d.media, d.buckets, d.matches, d.blobs, d.scratch, d.model, nil, DefaultConcurrency())
	return d
}

// recordingSink captures every Update published during a test.
type recordingSink struct {
	mu      sync.Mutex
	updates []Update
}

func (s *recordingSink) Publish(_ context.Context, u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

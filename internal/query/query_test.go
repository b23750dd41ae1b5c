package query

import (
	"context"
	"errors"
	"testing"

	"github.com/shotsort/shotsort-api/internal/bucket"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/media"
)

func newTestService(t *testing.T) (*Service, *job.MemoryRepository, *media.MemoryRepository, *bucket.MemoryRepository) {
	t.Helper()
	jobs := job.NewMemoryRepository()
	mediaRepo := media.NewMemoryRepository()
	buckets := bucket.NewMemoryRepository()
	return New(jobs, mediaRepo, buckets), jobs, mediaRepo, buckets
}

func TestListJobs_OrdersByCreatedAtDesc(t *testing.T) {
	svc, jobs, _, _ := newTestService(t)
	ctx := context.Background()

	first := job.New("first")
	if err := jobs.Save(ctx, first); err != nil {
		t.Fatalf("save job: %v", err)
	}
	second := job.New("second")
	second.CreatedAt = first.CreatedAt.Add(1)
	if err := jobs.Save(ctx, second); err != nil {
		t.Fatalf("save job: %v", err)
	}

	summaries, err := svc.ListJobs(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ID != second.ID {
		t.Fatalf("expected most recent job first, got %s", summaries[0].ID)
	}
}

func TestPartialResults_SeparatesClusteredFromUnclustered(t *testing.T) {
	svc, jobs, mediaRepo, buckets := newTestService(t)
	ctx := context.Background()

	j := job.New("partial job")
	if err := jobs.Save(ctx, j); err != nil {
		t.Fatalf("save job: %v", err)
	}

	b := bucket.New(j.ID, "Bucket 1", media.TypeImage)
	if err := buckets.Save(ctx, b); err != nil {
		t.Fatalf("save bucket: %v", err)
	}

	clustered := media.New(j.ID, "a.jpg", "a.jpg", "k1", "u1", media.TypeImage, "image/jpeg", 10)
	if err := mediaRepo.SaveBatch(ctx, []*media.MediaFile{clustered}); err != nil {
		t.Fatalf("save media: %v", err)
	}
	if err := mediaRepo.AssignBuckets(ctx, map[string]string{clustered.ID: b.ID}); err != nil {
		t.Fatalf("assign bucket: %v", err)
	}

	loose := media.New(j.ID, "b.jpg", "b.jpg", "k2", "u2", media.TypeImage, "image/jpeg", 10)
	if err := mediaRepo.SaveBatch(ctx, []*media.MediaFile{loose}); err != nil {
		t.Fatalf("save media: %v", err)
	}

	result, err := svc.PartialResults(ctx, j.ID)
	if err != nil {
		t.Fatalf("PartialResults: %v", err)
	}
	if len(result.Buckets) != 1 || len(result.Buckets[0].Members) != 1 {
		t.Fatalf("expected 1 bucket with 1 member, got %+v", result.Buckets)
	}
	if len(result.Unclustered) != 1 || result.Unclustered[0].ID != loose.ID {
		t.Fatalf("expected loose media in unclustered list, got %+v", result.Unclustered)
	}
}

func TestFinalResults_RejectsIncompleteJob(t *testing.T) {
	svc, jobs, _, _ := newTestService(t)
	ctx := context.Background()

	j := job.New("incomplete")
	if err := jobs.Save(ctx, j); err != nil {
		t.Fatalf("save job: %v", err)
	}

	_, err := svc.FinalResults(ctx, j.ID)
	if !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("expected ErrNotCompleted, got %v", err)
	}
}

func TestFinalResults_CollectsTopPicksAcrossBuckets(t *testing.T) {
	svc, jobs, mediaRepo, buckets := newTestService(t)
	ctx := context.Background()

	j := job.New("completed job")
	for _, s := range []job.Status{
		job.StatusExtracting, job.StatusLabeling, job.StatusClustering,
		job.StatusMerging, job.StatusRanking, job.StatusEnhancing, job.StatusCompleted,
	} {
		if err := j.TransitionTo(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	if err := jobs.Save(ctx, j); err != nil {
		t.Fatalf("save job: %v", err)
	}

	b := bucket.New(j.ID, "Bucket 1", media.TypeImage)
	if err := buckets.Save(ctx, b); err != nil {
		t.Fatalf("save bucket: %v", err)
	}
	top := media.New(j.ID, "top.jpg", "top.jpg", "k1", "u1", media.TypeImage, "image/jpeg", 10)
	other := media.New(j.ID, "other.jpg", "other.jpg", "k2", "u2", media.TypeImage, "image/jpeg", 10)
	if err := mediaRepo.SaveBatch(ctx, []*media.MediaFile{top, other}); err != nil {
		t.Fatalf("save media: %v", err)
	}
	if err := mediaRepo.AssignBuckets(ctx, map[string]string{top.ID: b.ID, other.ID: b.ID}); err != nil {
		t.Fatalf("assign buckets: %v", err)
	}

	storedTop, err := mediaRepo.FindByID(ctx, top.ID)
	if err != nil {
		t.Fatalf("find top pick: %v", err)
	}
	storedTop.IsTopPick = true
	if err := mediaRepo.Save(ctx, storedTop); err != nil {
		t.Fatalf("save top pick: %v", err)
	}

	result, err := svc.FinalResults(ctx, j.ID)
	if err != nil {
		t.Fatalf("FinalResults: %v", err)
	}
	if len(result.TopPicks) != 1 || result.TopPicks[0].ID != top.ID {
		t.Fatalf("expected top pick %s, got %+v", top.ID, result.TopPicks)
	}
	if len(result.Buckets) != 1 || len(result.Buckets[0].Members) != 2 {
		t.Fatalf("expected 1 bucket with 2 members, got %+v", result.Buckets)
	}
}

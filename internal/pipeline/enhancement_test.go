package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/media"
)

func TestRunEnhancing_UploadsEnhancedTopPicks(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	j := job.New("enhance job")
	for _, s := range []job.Status{job.StatusExtracting, job.StatusLabeling, job.StatusClustering, job.StatusMerging, job.StatusRanking, job.StatusEnhancing} {
		if err := j.TransitionTo(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}

	top := seedMedia(t, d, j.ID, "top.jpg", "top-pick-bytes", media.TypeImage)
	top.IsTopPick = true
	if err := d.media.Save(ctx, top); err != nil {
		t.Fatalf("save media: %v", err)
	}
	notPicked := seedMedia(t, d, j.ID, "other.jpg", "not-picked", media.TypeImage)
	_ = notPicked

	if err := d.orch.runEnhancing(ctx, j, &recordingSink{}); err != nil {
		t.Fatalf("runEnhancing: %v", err)
	}

	got, err := d.media.FindByID(ctx, top.ID)
	if err != nil {
		t.Fatalf("find media: %v", err)
	}
	if got.EnhancedBlobKey == "" {
		t.Fatal("expected enhanced blob key to be set")
	}
	if got.EnhancedBlobURL == "" {
		t.Fatal("expected enhanced blob url to be set")
	}

	other, err := d.media.FindByID(ctx, notPicked.ID)
	if err != nil {
		t.Fatalf("find media: %v", err)
	}
	if other.EnhancedBlobKey != "" {
		t.Fatal("expected non-top-pick to remain un-enhanced")
	}

	if j.GetStatus() != job.StatusCompleted {
		t.Fatalf("expected job to complete, got %s", j.GetStatus())
	}
}

func TestRunEnhancing_FailureLeavesFieldsUnset(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	j := job.New("enhance failure job")
	for _, s := range []job.Status{job.StatusExtracting, job.StatusLabeling, job.StatusClustering, job.StatusMerging, job.StatusRanking, job.StatusEnhancing} {
		if err := j.TransitionTo(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}

	top := seedMedia(t, d, j.ID, "top.jpg", "top-pick-bytes", media.TypeImage)
	top.IsTopPick = true
	if err := d.media.Save(ctx, top); err != nil {
		t.Fatalf("save media: %v", err)
	}

	d.model.enhanceFn = func(_ []byte) ([]byte, error) {
		return nil, errors.New("model unavailable")
	}

	if err := d.orch.runEnhancing(ctx, j, &recordingSink{}); err != nil {
		t.Fatalf("runEnhancing should not fail the job on enhance errors: %v", err)
	}

	got, err := d.media.FindByID(ctx, top.ID)
	if err != nil {
		t.Fatalf("find media: %v", err)
	}
	if got.EnhancedBlobKey != "" {
		t.Fatal("expected enhanced blob key to remain unset after a failed enhance call")
	}
	if j.GetStatus() != job.StatusCompleted {
		t.Fatalf("expected job to still complete, got %s", j.GetStatus())
	}
}

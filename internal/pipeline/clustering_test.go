package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/shotsort/shotsort-api/internal/bucket"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/media"
)

func seedMedia(t *testing.T, d *testDeps, jobID, name, content string, mediaType media.Type) *media.MediaFile {
	t.Helper()
	ctx := context.Background()
	key := "jobs/" + jobID + "/original/" + name
	if _, err := d.blobs.Put(ctx, key, strings.NewReader(content)); err != nil {
		t.Fatalf("put blob: %v", err)
	}
	m := media.New(jobID, name, name, key, "", mediaType, "image/jpeg", int64(len(content)))
	m.Label = "labeled"
	if err := d.media.Save(ctx, m); err != nil {
		t.Fatalf("save media: %v", err)
	}
	return m
}

func TestRunClustering_GroupsBySameTakeResult(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	j := job.New("cluster job")
	for _, s := range []job.Status{job.StatusExtracting, job.StatusLabeling, job.StatusClustering} {
		if err := j.TransitionTo(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}

	seedMedia(t, d, j.ID, "a.jpg", "take-1-a", media.TypeImage)
	seedMedia(t, d, j.ID, "b.jpg", "take-1-b", media.TypeImage)
	seedMedia(t, d, j.ID, "c.jpg", "take-2-a", media.TypeImage)

	d.model.sameTakeFn = func(a, b []byte) (bool, error) {
		return strings.HasPrefix(string(a), "take-1") && strings.HasPrefix(string(b), "take-1"), nil
	}

	if err := d.orch.runClustering(ctx, j, &recordingSink{}); err != nil {
		t.Fatalf("runClustering: %v", err)
	}

	buckets, err := d.buckets.ListByJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("list buckets: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if j.GetStatus() != job.StatusMerging {
		t.Fatalf("expected job to advance to merging, got %s", j.GetStatus())
	}
}

func TestRunClustering_SkipsPhaseAWhenBucketsAlreadyExist(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	j := job.New("resume job")
	for _, s := range []job.Status{job.StatusExtracting, job.StatusLabeling, job.StatusClustering} {
		if err := j.TransitionTo(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	m := seedMedia(t, d, j.ID, "a.jpg", "take-1", media.TypeImage)

	b := existingBucketFor(t, d, j.ID, m)

	d.model.sameTakeFn = func(_, _ []byte) (bool, error) {
		t.Fatal("sameTake should not be called when buckets already exist")
		return false, nil
	}

	if err := d.orch.runClustering(ctx, j, &recordingSink{}); err != nil {
		t.Fatalf("runClustering: %v", err)
	}
	if j.GetStatus() != job.StatusMerging {
		t.Fatalf("expected job to advance to merging, got %s", j.GetStatus())
	}
	_ = b
}

func existingBucketFor(t *testing.T, d *testDeps, jobID string, m *media.MediaFile) string {
	t.Helper()
	ctx := context.Background()
	bkt := bucket.New(jobID, bucket.DefaultName(1), media.TypeImage)
	if err := d.buckets.Save(ctx, bkt); err != nil {
		t.Fatalf("save bucket: %v", err)
	}
	if err := d.media.AssignBuckets(ctx, map[string]string{m.ID: bkt.ID}); err != nil {
		t.Fatalf("assign bucket: %v", err)
	}
	return bkt.ID
}

package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/media"
)

func TestRunLabeling_LabelsEveryUnlabeledFile(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	j := job.New("labeling job")
	if err := j.TransitionTo(job.StatusExtracting); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := j.TransitionTo(job.StatusLabeling); err != nil {
		t.Fatalf("transition: %v", err)
	}

	for _, name := range []string{"a.jpg", "b.jpg"} {
		key := "jobs/" + j.ID + "/original/" + name
		if _, err := d.blobs.Put(ctx, key, strings.NewReader(name)); err != nil {
			t.Fatalf("put blob: %v", err)
		}
		m := media.New(j.ID, name, name, key, "", media.TypeImage, "image/jpeg", 10)
		if err := d.media.Save(ctx, m); err != nil {
			t.Fatalf("save media: %v", err)
		}
	}

	if err := d.orch.runLabeling(ctx, j, &recordingSink{}); err != nil {
		t.Fatalf("runLabeling: %v", err)
	}

	files, err := d.media.ListByJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("list media: %v", err)
	}
	for _, m := range files {
		if !m.HasLabel() {
			t.Fatalf("expected %s to be labeled", m.Filename)
		}
	}
	if j.GetStatus() != job.StatusClustering {
		t.Fatalf("expected job to advance to clustering, got %s", j.GetStatus())
	}
}

func TestRunLabeling_SkipsAlreadyLabeledFiles(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	j := job.New("resume job")
	if err := j.TransitionTo(job.StatusExtracting); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := j.TransitionTo(job.StatusLabeling); err != nil {
		t.Fatalf("transition: %v", err)
	}

	m := media.New(j.ID, "a.jpg", "a.jpg", "jobs/"+j.ID+"/original/a.jpg", "", media.TypeImage, "image/jpeg", 10)
	m.Label = "already labeled"
	if err := d.media.Save(ctx, m); err != nil {
		t.Fatalf("save media: %v", err)
	}

	if err := d.orch.runLabeling(ctx, j, &recordingSink{}); err != nil {
		t.Fatalf("runLabeling: %v", err)
	}
	if d.model.describeCalls != 0 {
		t.Fatalf("expected no describe calls, got %d", d.model.describeCalls)
	}
	if j.GetStatus() != job.StatusClustering {
		t.Fatalf("expected job to advance to clustering, got %s", j.GetStatus())
	}
}

package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/media"
)

// runLabeling calls describe on every MediaFile still lacking a label. The
// stage is idempotent: files already labeled are never re-fetched, which is
// what makes R1 (re-invoking a labeling job with all labels present issues
// no additional describe calls) hold for free.
func (o *Orchestrator) runLabeling(ctx context.Context, j *job.Job, sink Sink) error {
	unlabeled, err := o.media.ListUnlabeled(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("list unlabeled media: %w", err)
	}

	var done int64
	total := len(unlabeled)

	if err := forEachBounded(ctx, o.conc.Label, total, func(ctx context.Context, i int) error {
		m := unlabeled[i]

		r, err := o.blobs.Get(ctx, m.BlobKey)
		if err != nil {
			return fmt.Errorf("fetch media %s: %w", m.ID, err)
		}
		defer func() { _ = r.Close() }()

		label, err := o.model.Describe(ctx, r, m.MediaType, m.MimeType)
		if err != nil {
			return fmt.Errorf("describe media %s: %w", m.ID, err)
		}

		m.Label = label
		if err := o.media.Save(ctx, m); err != nil {
			return fmt.Errorf("save labeled media %s: %w", m.ID, err)
		}

		n := atomic.AddInt64(&done, 1)
		sink.Publish(ctx, Update{JobID: j.ID, Stage: StageLabeling, Current: int(n), Total: total})
		return nil
	}); err != nil {
		return fmt.Errorf("label media files: %w", err)
	}

	all, err := o.media.ListByJob(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("list media for job %s: %w", j.ID, err)
	}
	j.UpdateProgress(countLabeled(all), len(all))
	return o.advance(ctx, j, job.StatusClustering)
}

func countLabeled(files []*media.MediaFile) int {
	n := 0
	for _, m := range files {
		if m.HasLabel() {
			n++
		}
	}
	return n
}

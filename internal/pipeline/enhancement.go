package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shotsort/shotsort-api/internal/blobstore"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/media"
)

// runEnhancing calls enhance on every top-pick image (§4.7). On failure or a
// null result the MediaFile's enhanced fields are simply left unset; this is
// not a fatal stage error, since most of the job's value already exists
// without a polished top pick.
func (o *Orchestrator) runEnhancing(ctx context.Context, j *job.Job, sink Sink) error {
	files, err := o.media.ListByJob(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("list media for job %s: %w", j.ID, err)
	}

	var candidates []*media.MediaFile
	for _, m := range files {
		if m.CanEnhance() && m.EnhancedBlobKey == "" {
			candidates = append(candidates, m)
		}
	}

	total := len(candidates)
	if err := forEachBounded(ctx, o.conc.Enhancement, total, func(ctx context.Context, i int) error {
		m := candidates[i]

		r, err := o.blobs.Get(ctx, m.BlobKey)
		if err != nil {
			return fmt.Errorf("fetch media %s: %w", m.ID, err)
		}

		enhanced, err := o.model.Enhance(ctx, r)
		_ = r.Close()
		if err != nil {
			o.logger.Warn("enhancement failed, leaving media un-enhanced",
				slog.String("job_id", j.ID), slog.String("media_id", m.ID), slog.String("error", err.Error()))
			sink.Publish(ctx, Update{JobID: j.ID, Stage: StageEnhancing, Current: i + 1, Total: total})
			return nil
		}
		defer func() { _ = enhanced.Close() }()

		key := blobstore.BuildEnhancedKey(j.ID, m.Filename)
		url, err := o.blobs.Put(ctx, key, enhanced)
		if err != nil {
			return fmt.Errorf("upload enhanced media %s: %w", m.ID, err)
		}

		m.EnhancedBlobKey = key
		m.EnhancedBlobURL = url
		if err := o.media.Save(ctx, m); err != nil {
			return fmt.Errorf("save enhanced media %s: %w", m.ID, err)
		}

		sink.Publish(ctx, Update{JobID: j.ID, Stage: StageEnhancing, Current: i + 1, Total: total})
		return nil
	}); err != nil {
		return fmt.Errorf("enhance top picks: %w", err)
	}

	return o.advance(ctx, j, job.StatusCompleted)
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shotsort/shotsort-api/internal/job"
)

// stuckUploadMessage is the fixed failure reason for a job that never
// finished the Upload Assembler's handshake before a restart (§4.8, OQ2:
// an upload has no server-side resumption point, so the only safe recovery
// is to fail it and let the client re-upload).
const stuckUploadMessage = "upload never completed before restart"

// Recover runs the boot-time Job Recovery pass: jobs stuck mid-upload are
// failed outright, and every other non-terminal job is returned so the
// caller can resume each with Run.
func (o *Orchestrator) Recover(ctx context.Context) ([]*job.Job, error) {
	stuck, err := o.jobs.ListUploading(ctx)
	if err != nil {
		return nil, fmt.Errorf("list uploading jobs: %w", err)
	}
	for _, j := range stuck {
		if err := j.Fail(stuckUploadMessage); err != nil {
			o.logger.Error("failed to fail stuck-uploading job", slog.String("job_id", j.ID), slog.String("error", err.Error()))
			continue
		}
		if err := o.jobs.Save(ctx, j); err != nil {
			o.logger.Error("failed to persist stuck-uploading job", slog.String("job_id", j.ID), slog.String("error", err.Error()))
			continue
		}
		o.logger.Info("failed stuck-uploading job at boot", slog.String("job_id", j.ID))
	}

	resumable, err := o.jobs.ListResumable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resumable jobs: %w", err)
	}
	return resumable, nil
}

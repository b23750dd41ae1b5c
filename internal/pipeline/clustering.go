package pipeline

import (
	"context"
	"fmt"

	"github.com/shotsort/shotsort-api/internal/bucket"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/media"
)

// clusterBucket is the orchestrator's in-memory working set for one bucket
// during Phase A: a representative (first member admitted) plus every
// member assigned to it so far. Nothing is persisted until Phase A
// completes; runClustering then saves one bucket per cluster, and the
// Merging stage (Phase B) collapses those persisted buckets afterwards.
type clusterBucket struct {
	representative *media.MediaFile
	repBytes       []byte
	members        []*media.MediaFile
}

// runClustering groups a job's images into same-take buckets (§4.5).
// Videos skip Phase A/B entirely and land in a single bucket. Per R2, a job
// that already has buckets (e.g. resumed after Phase A but before Merging
// persisted anything, or genuinely already clustered) skips straight to
// merging.
func (o *Orchestrator) runClustering(ctx context.Context, j *job.Job, sink Sink) error {
	existing, err := o.buckets.ListByJob(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("list existing buckets: %w", err)
	}
	if len(existing) > 0 {
		return o.advance(ctx, j, job.StatusMerging)
	}

	files, err := o.media.ListByJob(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("list media for job %s: %w", j.ID, err)
	}

	var images, videos []*media.MediaFile
	for _, m := range files {
		switch m.MediaType {
		case media.TypeImage:
			images = append(images, m)
		case media.TypeVideo:
			videos = append(videos, m)
		}
	}

	clusters, err := o.clusterImages(ctx, j, images, sink)
	if err != nil {
		return fmt.Errorf("cluster images: %w", err)
	}

	buckets := make([]*bucket.Bucket, 0, len(clusters)+1)
	assignments := make(map[string]string)

	for i, c := range clusters {
		b := bucket.New(j.ID, bucket.DefaultName(i+1), media.TypeImage)
		buckets = append(buckets, b)
		for _, m := range c.members {
			assignments[m.ID] = b.ID
		}
	}

	if len(videos) > 0 {
		b := bucket.New(j.ID, bucket.DefaultName(len(clusters)+1), media.TypeVideo)
		buckets = append(buckets, b)
		for _, m := range videos {
			assignments[m.ID] = b.ID
		}
	}

	for _, b := range buckets {
		if err := o.buckets.Save(ctx, b); err != nil {
			return fmt.Errorf("save bucket %s: %w", b.ID, err)
		}
	}
	if len(assignments) > 0 {
		if err := o.media.AssignBuckets(ctx, assignments); err != nil {
			return fmt.Errorf("assign buckets: %w", err)
		}
	}

	return o.advance(ctx, j, job.StatusMerging)
}

// clusterImages runs Phase A: images are processed in the order
// media.Repository.ListByJob returns them, which is by filename, not by
// position in the archive. Each image is raced against every existing bucket's representative, landing in the
// first bucket whose sameTake comparison completes true.
func (o *Orchestrator) clusterImages(ctx context.Context, j *job.Job, images []*media.MediaFile, sink Sink) ([]*clusterBucket, error) {
	var clusters []*clusterBucket

	for i, img := range images {
		imgData, err := o.blobs.Get(ctx, img.BlobKey)
		if err != nil {
			return nil, fmt.Errorf("fetch media %s: %w", img.ID, err)
		}
		imgBytes, err := readAllAndClose(imgData)
		if err != nil {
			return nil, fmt.Errorf("read media %s: %w", img.ID, err)
		}

		n := len(clusters)
		winner, err := raceFirstTrue(ctx, o.conc.SameTakePhaseA, n, func(ctx context.Context, k int) (bool, error) {
			return o.model.SameTake(ctx, newByteReader(imgBytes), newByteReader(clusters[k].repBytes))
		})
		if err != nil {
			return nil, fmt.Errorf("compare %s against existing buckets: %w", img.ID, err)
		}

		if winner >= 0 {
			clusters[winner].members = append(clusters[winner].members, img)
		} else {
			clusters = append(clusters, &clusterBucket{representative: img, repBytes: imgBytes, members: []*media.MediaFile{img}})
		}

		sink.Publish(ctx, Update{JobID: j.ID, Stage: StageClustering, Current: i + 1, Total: len(images)})
	}

	return clusters, nil
}

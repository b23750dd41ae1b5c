package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/shotsort/shotsort-api/internal/bucket"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/media"
)

// bucketGroup is one image bucket loaded for the Phase B merge sweep: the
// persisted Bucket plus the members currently assigned to it and a
// representative chosen deterministically (earliest CreatedAt, tie-broken
// by ID) so a resumed run picks the same representative as before.
type bucketGroup struct {
	b              *bucket.Bucket
	members        []*media.MediaFile
	representative *media.MediaFile
	repBytes       []byte
}

// runMerging compares every pair of image bucket representatives and
// collapses connected components via union-find (§4.5 Phase B). Video
// buckets are left untouched; they were never split in Phase A. Every
// surviving bucket — merged, singleton, or video — then gets one naming
// attempt in nameAllBuckets, since §4.5 Naming applies to every final
// bucket, not only ones a merge touched.
func (o *Orchestrator) runMerging(ctx context.Context, j *job.Job, sink Sink) error {
	buckets, err := o.buckets.ListByJob(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("list buckets: %w", err)
	}

	var groups []*bucketGroup
	for _, b := range buckets {
		if b.MediaType != media.TypeImage {
			continue
		}
		members, err := o.media.ListByBucket(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("list members of bucket %s: %w", b.ID, err)
		}
		if len(members) == 0 {
			continue
		}
		rep := representativeOf(members)
		repData, err := o.blobs.Get(ctx, rep.BlobKey)
		if err != nil {
			return fmt.Errorf("fetch representative %s: %w", rep.ID, err)
		}
		repBytes, err := readAllAndClose(repData)
		if err != nil {
			return fmt.Errorf("read representative %s: %w", rep.ID, err)
		}
		groups = append(groups, &bucketGroup{b: b, members: members, representative: rep, repBytes: repBytes})
	}

	if len(groups) > 1 {
		if err := o.mergeGroups(ctx, j, groups, sink); err != nil {
			return fmt.Errorf("merge buckets: %w", err)
		}
	}

	if err := o.nameAllBuckets(ctx, j); err != nil {
		return fmt.Errorf("name buckets: %w", err)
	}

	return o.advance(ctx, j, job.StatusRanking)
}

// nameAllBuckets offers every bucket still standing after Phase B — merged
// components, buckets a merge left alone, singleton image buckets, and the
// video bucket alike — one NameBucket attempt, using up to five labels
// drawn from its members. A bucket keeps the default name bucket.New gave
// it at creation when NameBucket errors or returns empty (§4.5 Naming).
func (o *Orchestrator) nameAllBuckets(ctx context.Context, j *job.Job) error {
	buckets, err := o.buckets.ListByJob(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("list buckets: %w", err)
	}

	for _, b := range buckets {
		members, err := o.media.ListByBucket(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("list members of bucket %s: %w", b.ID, err)
		}
		if len(members) == 0 {
			continue
		}

		var labels []string
		for _, m := range members {
			if m.HasLabel() && len(labels) < 5 {
				labels = append(labels, m.Label)
			}
		}

		name, err := o.model.NameBucket(ctx, labels)
		if err != nil || name == "" {
			continue
		}
		b.Name = name
		if err := o.buckets.Save(ctx, b); err != nil {
			return fmt.Errorf("save bucket %s: %w", b.ID, err)
		}
	}

	return nil
}

// representativeOf picks the earliest-admitted member as the bucket's
// comparison probe, breaking ties on ID for determinism.
func representativeOf(members []*media.MediaFile) *media.MediaFile {
	best := members[0]
	for _, m := range members[1:] {
		if m.CreatedAt.Before(best.CreatedAt) || (m.CreatedAt.Equal(best.CreatedAt) && m.ID < best.ID) {
			best = m
		}
	}
	return best
}

// pairAt maps a linear index into the k-th unordered pair of n items
// (0-indexed, row-major over i<j), used to enumerate C(n,2) comparisons
// with a single bounded fan-out.
func pairAt(n, k int) (i, jx int) {
	for i = 0; i < n; i++ {
		remaining := n - i - 1
		if k < remaining {
			return i, i + 1 + k
		}
		k -= remaining
	}
	return -1, -1
}

func (o *Orchestrator) mergeGroups(ctx context.Context, j *job.Job, groups []*bucketGroup, sink Sink) error {
	n := len(groups)
	pairs := n * (n - 1) / 2
	uf := newUnionFind(n)

	if err := forEachBounded(ctx, o.conc.Merge, pairs, func(ctx context.Context, k int) error {
		i, jx := pairAt(n, k)
		same, err := o.model.SameTake(ctx, newByteReader(groups[i].repBytes), newByteReader(groups[jx].repBytes))
		if err != nil {
			return fmt.Errorf("compare bucket %s and %s: %w", groups[i].b.ID, groups[jx].b.ID, err)
		}
		if same {
			uf.union(i, jx)
		}
		sink.Publish(ctx, Update{JobID: j.ID, Stage: StageMerging, Current: k + 1, Total: pairs})
		return nil
	}); err != nil {
		return err
	}

	components := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}

	for _, memberIdx := range components {
		if len(memberIdx) < 2 {
			continue
		}
		sort.Ints(memberIdx)
		canonical := groups[memberIdx[0]]

		assignments := make(map[string]string)
		for _, idx := range memberIdx {
			g := groups[idx]
			for _, m := range g.members {
				assignments[m.ID] = canonical.b.ID
			}
		}

		if err := o.media.AssignBuckets(ctx, assignments); err != nil {
			return fmt.Errorf("reassign members to bucket %s: %w", canonical.b.ID, err)
		}

		for _, idx := range memberIdx[1:] {
			if err := o.buckets.Delete(ctx, groups[idx].b.ID); err != nil {
				return fmt.Errorf("delete absorbed bucket %s: %w", groups[idx].b.ID, err)
			}
		}
	}

	return nil
}

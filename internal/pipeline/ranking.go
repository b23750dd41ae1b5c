package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/shotsort/shotsort-api/internal/bucket"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/match"
	"github.com/shotsort/shotsort-api/internal/media"
)

// eloScale and eloK0 are the constants from §4.6: scale 400, K0 = 32, with
// the effective step further weighted by the model's reported confidence.
const (
	eloScale = 400.0
	eloK0    = 32.0
)

// eloExpected returns A's expected score against B on the 400-point scale.
func eloExpected(ratingA, ratingB float64) float64 {
	return 1 / (1 + math.Pow(10, (ratingB-ratingA)/eloScale))
}

// eloDelta returns the signed rating change applied to the winner's and
// loser's ratings for one match, given the model's confidence in [0,1].
func eloDelta(winnerRating, loserRating, confidence float64) (winnerChange, loserChange float64) {
	k := eloK0 * confidence
	expectedWinner := eloExpected(winnerRating, loserRating)
	expectedLoser := 1 - expectedWinner
	winnerChange = k * (1 - expectedWinner)
	loserChange = k * (0 - expectedLoser)
	return winnerChange, loserChange
}

// runRanking runs a full round-robin tournament within every bucket that has
// at least two members of the same media type, applying Elo after each
// match (§4.6). Buckets with a single member are skipped entirely: they are
// trivially unique, not quality-selected, and invariant I4 never applies.
func (o *Orchestrator) runRanking(ctx context.Context, j *job.Job, sink Sink) error {
	buckets, err := o.buckets.ListByJob(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("list buckets: %w", err)
	}

	if err := forEachBounded(ctx, o.conc.Tournament, len(buckets), func(ctx context.Context, i int) error {
		return o.rankBucket(ctx, j, buckets[i], sink)
	}); err != nil {
		return fmt.Errorf("rank buckets: %w", err)
	}

	return o.advance(ctx, j, job.StatusEnhancing)
}

func (o *Orchestrator) rankBucket(ctx context.Context, j *job.Job, b *bucket.Bucket, sink Sink) error {
	members, err := o.media.ListByBucket(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("list members of bucket %s: %w", b.ID, err)
	}
	if len(members) < 2 {
		return nil
	}

	byID := make(map[string]*media.MediaFile, len(members))
	bytesByID := make(map[string][]byte, len(members))
	for _, m := range members {
		byID[m.ID] = m
		data, err := o.blobs.Get(ctx, m.BlobKey)
		if err != nil {
			return fmt.Errorf("fetch media %s: %w", m.ID, err)
		}
		raw, err := readAllAndClose(data)
		if err != nil {
			return fmt.Errorf("read media %s: %w", m.ID, err)
		}
		bytesByID[m.ID] = raw
	}

	n := len(members)
	pairs := n * (n - 1) / 2

	var mu sync.Mutex
	promptVariant := ""
	if b.MediaType == media.TypeVideo {
		promptVariant = "video"
	}

	if err := forEachBounded(ctx, o.conc.CompareQuality, pairs, func(ctx context.Context, k int) error {
		i, jx := pairAt(n, k)
		a, bm := members[i], members[jx]

		result, err := o.model.CompareQuality(ctx, newByteReader(bytesByID[a.ID]), newByteReader(bytesByID[bm.ID]), b.MediaType, promptVariant)
		if err != nil {
			return fmt.Errorf("compare %s and %s: %w", a.ID, bm.ID, err)
		}

		winner, loser := a, bm
		if result.Winner == "b" {
			winner, loser = bm, a
		}
		confidence := result.Confidence
		if confidence <= 0 {
			confidence = 1
		}

		mu.Lock()
		defer mu.Unlock()

		winnerChange, loserChange := eloDelta(winner.RatingScore, loser.RatingScore, confidence)
		winner.RatingScore += winnerChange
		loser.RatingScore += loserChange

		change1, change2 := winnerChange, loserChange
		if winner != a {
			change1, change2 = loserChange, winnerChange
		}

		m, err := match.New(b.ID, b.MediaType, 1, a.ID, bm.ID, winner.ID, result.Reasoning, change1, change2)
		if err != nil {
			return fmt.Errorf("build match: %w", err)
		}
		if err := o.matches.Save(ctx, m); err != nil {
			return fmt.Errorf("save match: %w", err)
		}

		sink.Publish(ctx, Update{JobID: j.ID, Stage: StageRanking, Current: k + 1, Total: pairs})
		return nil
	}); err != nil {
		return err
	}

	sorted := make([]*media.MediaFile, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, k int) bool { return sorted[i].RatingScore > sorted[k].RatingScore })

	topN := 3
	if len(sorted) < topN {
		topN = len(sorted)
	}
	for i, m := range sorted {
		m.IsTopPick = i < topN
		if err := o.media.Save(ctx, m); err != nil {
			return fmt.Errorf("save ranked media %s: %w", m.ID, err)
		}
	}

	return nil
}

// Package match provides the TournamentMatch aggregate: one pairwise
// quality judgment recorded by the Ranking stage. Matches are immutable
// once created.
package match

import (
	"errors"
	"time"

	"github.com/shotsort/shotsort-api/internal/ids"
	"github.com/shotsort/shotsort-api/internal/media"
)

// ErrInvalidWinner is returned by New when winnerID is neither media1ID nor
// media2ID, enforcing invariant I6.
var ErrInvalidWinner = errors.New("match: winnerId must be one of the two media ids")

// TournamentMatch is one pairwise comparison within a bucket's round-robin.
type TournamentMatch struct {
	ID         string
	BucketID   string
	MediaType  media.Type
	Round      int
	Media1ID   string
	Media2ID   string
	WinnerID   string
	Reasoning  string
	// Change1 and Change2 are the signed Elo deltas actually applied to
	// Media1 and Media2 respectively.
	Change1    float64
	Change2    float64
	CreatedAt  time.Time
}

// New creates a TournamentMatch, rejecting a winnerID that is not one of the
// two compared media (invariant I6).
func New(bucketID string, mediaType media.Type, round int, media1ID, media2ID, winnerID, reasoning string, change1, change2 float64) (*TournamentMatch, error) {
	if winnerID != media1ID && winnerID != media2ID {
		return nil, ErrInvalidWinner
	}
	return &TournamentMatch{
		ID:        ids.New(ids.KindMatch),
		BucketID:  bucketID,
		MediaType: mediaType,
		Round:     round,
		Media1ID:  media1ID,
		Media2ID:  media2ID,
		WinnerID:  winnerID,
		Reasoning: reasoning,
		Change1:   change1,
		Change2:   change2,
		CreatedAt: time.Now(),
	}, nil
}

// LoserID returns whichever of Media1ID/Media2ID did not win.
func (m *TournamentMatch) LoserID() string {
	if m.WinnerID == m.Media1ID {
		return m.Media2ID
	}
	return m.Media1ID
}

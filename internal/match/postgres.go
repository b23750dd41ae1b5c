package match

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shotsort/shotsort-api/internal/media"
)

var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository is a PostgreSQL-backed Repository implementation.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository wraps an existing connection pool.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type row struct {
	ID        string  `db:"id"`
	BucketID  string  `db:"bucket_id"`
	MediaType string  `db:"media_type"`
	Round     int     `db:"round"`
	Media1ID  string  `db:"media1_id"`
	Media2ID  string  `db:"media2_id"`
	WinnerID  string  `db:"winner_id"`
	Reasoning string  `db:"reasoning"`
	Change1   float64 `db:"change1"`
	Change2   float64 `db:"change2"`
}

func (r row) toMatch() *TournamentMatch {
	return &TournamentMatch{
		ID:        r.ID,
		BucketID:  r.BucketID,
		MediaType: media.Type(r.MediaType),
		Round:     r.Round,
		Media1ID:  r.Media1ID,
		Media2ID:  r.Media2ID,
		WinnerID:  r.WinnerID,
		Reasoning: r.Reasoning,
		Change1:   r.Change1,
		Change2:   r.Change2,
	}
}

func (r *PostgresRepository) Save(ctx context.Context, m *TournamentMatch) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tournament_matches (
			id, bucket_id, media_type, round, media1_id, media2_id,
			winner_id, reasoning, change1, change2, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.BucketID, string(m.MediaType), m.Round, m.Media1ID, m.Media2ID,
		m.WinnerID, m.Reasoning, m.Change1, m.Change2, m.CreatedAt)
	return err
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*TournamentMatch, error) {
	var rr row
	err := r.db.GetContext(ctx, &rr, `
		SELECT id, bucket_id, media_type, round, media1_id, media2_id, winner_id, reasoning, change1, change2
		FROM tournament_matches WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rr.toMatch(), nil
}

func (r *PostgresRepository) ListByBucket(ctx context.Context, bucketID string) ([]*TournamentMatch, error) {
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, bucket_id, media_type, round, media1_id, media2_id, winner_id, reasoning, change1, change2
		FROM tournament_matches WHERE bucket_id = $1 ORDER BY created_at`, bucketID); err != nil {
		return nil, err
	}
	out := make([]*TournamentMatch, 0, len(rows))
	for _, rr := range rows {
		out = append(out, rr.toMatch())
	}
	return out, nil
}

func (r *PostgresRepository) CountByBucket(ctx context.Context, bucketID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM tournament_matches WHERE bucket_id = $1`, bucketID)
	return count, err
}

func (r *PostgresRepository) DeleteByBucket(ctx context.Context, bucketID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tournament_matches WHERE bucket_id = $1`, bucketID)
	return err
}

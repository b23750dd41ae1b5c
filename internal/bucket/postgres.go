package bucket

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shotsort/shotsort-api/internal/media"
)

func mediaTypeFrom(s string) media.Type {
	return media.Type(s)
}

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
	ID        string `db:"id"`
	JobID     string `db:"job_id"`
	Name      string `db:"name"`
	MediaType string `db:"media_type"`
	Centroid  string `db:"centroid"`
}

func (r row) toBucket() *Bucket {
	return &Bucket{
		ID:        r.ID,
		JobID:     r.JobID,
		Name:      r.Name,
		MediaType: mediaTypeFrom(r.MediaType),
		Centroid:  r.Centroid,
	}
}

func (r *PostgresRepository) Save(ctx context.Context, b *Bucket) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO buckets (id, job_id, name, media_type, centroid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, b.ID, b.JobID, b.Name, string(b.MediaType), b.Centroid, b.CreatedAt)
	return err
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Bucket, error) {
	var rr row
	err := r.db.GetContext(ctx, &rr, `SELECT id, job_id, name, media_type, centroid FROM buckets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rr.toBucket(), nil
}

func (r *PostgresRepository) ListByJob(ctx context.Context, jobID string) ([]*Bucket, error) {
	var rows []row
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT id, job_id, name, media_type, centroid FROM buckets WHERE job_id = $1 ORDER BY created_at`, jobID); err != nil {
		return nil, err
	}
	out := make([]*Bucket, 0, len(rows))
	for _, rr := range rows {
		out = append(out, rr.toBucket())
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM buckets WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) DeleteByJob(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM buckets WHERE job_id = $1`, jobID)
	return err
}

package job

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Compile-time check that PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository is a PostgreSQL-backed Repository implementation.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository wraps an existing connection pool.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// row mirrors the jobs table layout for sqlx scanning.
type row struct {
	ID             string       `db:"id"`
	Name           string       `db:"name"`
	Status         string       `db:"status"`
	TotalFiles     int          `db:"total_files"`
	ProcessedFiles int          `db:"processed_files"`
	Error          string       `db:"error_message"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
	CompletedAt    sql.NullTime `db:"completed_at"`
}

func (r row) toJob() *Job {
	j := &Job{
		ID:             r.ID,
		Name:           r.Name,
		Status:         Status(r.Status),
		TotalFiles:     r.TotalFiles,
		ProcessedFiles: r.ProcessedFiles,
		Error:          r.Error,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.CompletedAt.Valid {
		j.CompletedAt = r.CompletedAt.Time
	}
	return j
}

func (r *PostgresRepository) Save(ctx context.Context, j *Job) error {
	clone := j.Clone()
	var completedAt sql.NullTime
	if !clone.CompletedAt.IsZero() {
		completedAt = sql.NullTime{Time: clone.CompletedAt, Valid: true}
	}

	query := `
		INSERT INTO jobs (
			id, name, status, total_files, processed_files, error_message,
			created_at, updated_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			total_files = EXCLUDED.total_files,
			processed_files = EXCLUDED.processed_files,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
	`
	_, err := r.db.ExecContext(ctx, query,
		clone.ID, clone.Name, string(clone.Status), clone.TotalFiles, clone.ProcessedFiles,
		clone.Error, clone.CreatedAt, clone.UpdatedAt, completedAt,
	)
	return err
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	var rr row
	err := r.db.GetContext(ctx, &rr, `SELECT * FROM jobs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rr.toJob(), nil
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*Job, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []row
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return toJobs(rows), nil
}

func (r *PostgresRepository) ListResumable(ctx context.Context) ([]*Job, error) {
	var rows []row
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM jobs WHERE status NOT IN ('completed', 'failed', 'uploading')`)
	if err != nil {
		return nil, err
	}
	return toJobs(rows), nil
}

func (r *PostgresRepository) ListUploading(ctx context.Context) ([]*Job, error) {
	var rows []row
	err := r.db.SelectContext(ctx, &rows, `SELECT * FROM jobs WHERE status = 'uploading'`)
	if err != nil {
		return nil, err
	}
	return toJobs(rows), nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func toJobs(rows []row) []*Job {
	out := make([]*Job, 0, len(rows))
	for _, rr := range rows {
		out = append(out, rr.toJob())
	}
	return out
}

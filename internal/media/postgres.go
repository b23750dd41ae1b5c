package media

import (
	"context"
	"database/sql"
	"errors"

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

type row struct {
	ID              string         `db:"id"`
	JobID           string         `db:"job_id"`
	Filename        string         `db:"filename"`
	OriginalPath    string         `db:"original_path"`
	BlobKey         string         `db:"blob_key"`
	BlobURL         string         `db:"blob_url"`
	MediaType       string         `db:"media_type"`
	MimeType        string         `db:"mime_type"`
	SizeBytes       int64          `db:"size_bytes"`
	Label           sql.NullString `db:"label"`
	RatingScore     float64        `db:"rating_score"`
	IsTopPick       bool           `db:"is_top_pick"`
	EnhancedBlobKey sql.NullString `db:"enhanced_blob_key"`
	EnhancedBlobURL sql.NullString `db:"enhanced_blob_url"`
	BucketID        sql.NullString `db:"bucket_id"`
}

func (r row) toMediaFile() *MediaFile {
	return &MediaFile{
		ID:              r.ID,
		JobID:           r.JobID,
		Filename:        r.Filename,
		OriginalPath:    r.OriginalPath,
		BlobKey:         r.BlobKey,
		BlobURL:         r.BlobURL,
		MediaType:       Type(r.MediaType),
		MimeType:        r.MimeType,
		SizeBytes:       r.SizeBytes,
		Label:           r.Label.String,
		RatingScore:     r.RatingScore,
		IsTopPick:       r.IsTopPick,
		EnhancedBlobKey: r.EnhancedBlobKey.String,
		EnhancedBlobURL: r.EnhancedBlobURL.String,
		BucketID:        r.BucketID.String,
	}
}

const upsertQuery = `
	INSERT INTO media_files (
		id, job_id, filename, original_path, blob_key, blob_url,
		media_type, mime_type, size_bytes, label, rating_score, is_top_pick,
		enhanced_blob_key, enhanced_blob_url, bucket_id
	) VALUES (
		:id, :job_id, :filename, :original_path, :blob_key, :blob_url,
		:media_type, :mime_type, :size_bytes, :label, :rating_score, :is_top_pick,
		:enhanced_blob_key, :enhanced_blob_url, :bucket_id
	)
	ON CONFLICT (id) DO UPDATE SET
		label = EXCLUDED.label,
		rating_score = EXCLUDED.rating_score,
		is_top_pick = EXCLUDED.is_top_pick,
		enhanced_blob_key = EXCLUDED.enhanced_blob_key,
		enhanced_blob_url = EXCLUDED.enhanced_blob_url,
		bucket_id = EXCLUDED.bucket_id
`

func toRow(m *MediaFile) row {
	return row{
		ID:              m.ID,
		JobID:           m.JobID,
		Filename:        m.Filename,
		OriginalPath:    m.OriginalPath,
		BlobKey:         m.BlobKey,
		BlobURL:         m.BlobURL,
		MediaType:       string(m.MediaType),
		MimeType:        m.MimeType,
		SizeBytes:       m.SizeBytes,
		Label:           sql.NullString{String: m.Label, Valid: m.Label != ""},
		RatingScore:     m.RatingScore,
		IsTopPick:       m.IsTopPick,
		EnhancedBlobKey: sql.NullString{String: m.EnhancedBlobKey, Valid: m.EnhancedBlobKey != ""},
		EnhancedBlobURL: sql.NullString{String: m.EnhancedBlobURL, Valid: m.EnhancedBlobURL != ""},
		BucketID:        sql.NullString{String: m.BucketID, Valid: m.BucketID != ""},
	}
}

func (r *PostgresRepository) Save(ctx context.Context, m *MediaFile) error {
	_, err := r.db.NamedExecContext(ctx, upsertQuery, toRow(m))
	return err
}

// SaveBatch inserts several MediaFiles in one transaction, as the Archive
// Expander does per batch of extracted entries.
func (r *PostgresRepository) SaveBatch(ctx context.Context, files []*MediaFile) error {
	if len(files) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range files {
		if _, err := tx.NamedExecContext(ctx, upsertQuery, toRow(m)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*MediaFile, error) {
	var rr row
	err := r.db.GetContext(ctx, &rr, `SELECT * FROM media_files WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rr.toMediaFile(), nil
}

func (r *PostgresRepository) ListByJob(ctx context.Context, jobID string) ([]*MediaFile, error) {
	return r.listWhere(ctx, `job_id = $1 ORDER BY filename`, jobID)
}

func (r *PostgresRepository) ListUnlabeled(ctx context.Context, jobID string) ([]*MediaFile, error) {
	return r.listWhere(ctx, `job_id = $1 AND (label IS NULL OR label = '') ORDER BY filename`, jobID)
}

func (r *PostgresRepository) ListUnclustered(ctx context.Context, jobID string) ([]*MediaFile, error) {
	return r.listWhere(ctx, `job_id = $1 AND bucket_id IS NULL ORDER BY filename`, jobID)
}

func (r *PostgresRepository) ListByBucket(ctx context.Context, bucketID string) ([]*MediaFile, error) {
	return r.listWhere(ctx, `bucket_id = $1 ORDER BY rating_score DESC`, bucketID)
}

func (r *PostgresRepository) listWhere(ctx context.Context, whereAndOrder string, arg string) ([]*MediaFile, error) {
	var rows []row
	query := `SELECT * FROM media_files WHERE ` + whereAndOrder
	if err := r.db.SelectContext(ctx, &rows, query, arg); err != nil {
		return nil, err
	}
	out := make([]*MediaFile, 0, len(rows))
	for _, rr := range rows {
		out = append(out, rr.toMediaFile())
	}
	return out, nil
}

// AssignBuckets updates bucket_id for every mediaID in one transaction, as
// Clustering's persistence step does after Phase B merge completes.
func (r *PostgresRepository) AssignBuckets(ctx context.Context, assignments map[string]string) error {
	if len(assignments) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for mediaID, bucketID := range assignments {
		if _, err := tx.ExecContext(ctx,
			`UPDATE media_files SET bucket_id = $2 WHERE id = $1`, mediaID, bucketID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PostgresRepository) DeleteByJob(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM media_files WHERE job_id = $1`, jobID)
	return err
}

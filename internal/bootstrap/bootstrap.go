// Package bootstrap wires every adapter and repository into the
// Dependencies a running server needs, mirroring the shape (and the
// singletons-built-once-in-one-place discipline) of the teacher's own
// NewDependencies: config in, a fully wired object graph out.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/shotsort/shotsort-api/internal/blobstore"
	"github.com/shotsort/shotsort-api/internal/bucket"
	"github.com/shotsort/shotsort-api/internal/config"
	"github.com/shotsort/shotsort-api/internal/db"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/match"
	"github.com/shotsort/shotsort-api/internal/media"
	"github.com/shotsort/shotsort-api/internal/modelprovider"
	"github.com/shotsort/shotsort-api/internal/pipeline"
	"github.com/shotsort/shotsort-api/internal/query"
	"github.com/shotsort/shotsort-api/internal/server"
	"github.com/shotsort/shotsort-api/internal/upload"
)

// Dependencies holds every initialized component the HTTP server and its
// background recovery pass need.
type Dependencies struct {
	DB *sqlx.DB

	Jobs    job.Repository
	Media   media.Repository
	Buckets bucket.Repository
	Matches match.Repository

	Blobs   blobstore.Store
	Scratch blobstore.ScratchStore
	Model   modelprovider.Client

	Orchestrator *pipeline.Orchestrator
	Query        *query.Service

	Handlers *server.Handlers
	Upload   *upload.Handler

	logger *slog.Logger
}

// NewDependencies builds the full object graph from cfg. When
// cfg.DatabaseEnabled() is false, every repository falls back to its
// in-memory implementation (§4.11).
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{logger: logger}

	if cfg.DatabaseEnabled() {
		pool, err := db.NewPool(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database pool: %w", err)
		}
		if err := db.Migrate(pool, cfg.MigrationsDir, logger); err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		deps.DB = pool
		deps.Jobs = job.NewPostgresRepository(pool)
		deps.Media = media.NewPostgresRepository(pool)
		deps.Buckets = bucket.NewPostgresRepository(pool)
		deps.Matches = match.NewPostgresRepository(pool)
		logger.Info("record store backed by postgres")
	} else {
		deps.Jobs = job.NewMemoryRepository()
		deps.Media = media.NewMemoryRepository()
		deps.Buckets = bucket.NewMemoryRepository()
		deps.Matches = match.NewMemoryRepository()
		logger.Info("record store backed by in-memory repositories; set DATABASE_URL for postgres")
	}

	blobs, err := initBlobStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.Blobs = blobs

	scratch, err := blobstore.NewLocalScratchStore(cfg.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("create scratch store: %w", err)
	}
	deps.Scratch = scratch

	model, err := modelprovider.NewClient(cfg.ModelBaseURL, modelprovider.WithAPIKey(cfg.ModelAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create model provider client: %w", err)
	}
	deps.Model = model
	logger.Info("model provider client initialized", slog.String("base_url", cfg.ModelBaseURL))

	deps.Orchestrator = pipeline.New(
		deps.Jobs, deps.Media, deps.Buckets, deps.Matches,
		deps.Blobs, deps.Scratch, deps.Model, logger,
		concurrencyFromConfig(cfg),
	)

	deps.Query = query.New(deps.Jobs, deps.Media, deps.Buckets)

	deps.Handlers = server.NewHandlers(deps.Jobs, deps.Media, deps.Buckets, deps.Matches, deps.Blobs, deps.Query, logger)
	deps.Upload = upload.NewHandler(deps.Jobs, deps.Scratch, deps.Orchestrator, logger, cfg.AllowedOriginList())

	return deps, nil
}

// concurrencyFromConfig builds the orchestrator's pool bounds from the six
// POOL_*_CONCURRENCY env vars (spec §5), so setting one actually changes
// the orchestrator's fan-out instead of only parsing and being discarded.
func concurrencyFromConfig(cfg *config.Config) pipeline.Concurrency {
	return pipeline.Concurrency{
		Label:          cfg.LabelConcurrency,
		SameTakePhaseA: cfg.SameTakePhaseAConcurrency,
		Merge:          cfg.MergeConcurrency,
		CompareQuality: cfg.CompareQualityConcurrency,
		Tournament:     cfg.TournamentConcurrency,
		Enhancement:    cfg.EnhancementConcurrency,
	}
}

// initBlobStore creates the appropriate blob storage backend based on
// configuration, generalized from the teacher's initStorage.
func initBlobStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blobstore.Store, error) {
	if cfg.S3Enabled() {
		s3Store, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 blob store: %w", err)
		}
		logger.Info("blob store backed by s3",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	dir := cfg.BlobLocalDir
	if dir == "" {
		dir = cfg.ScratchDir + "/blobs"
	}
	localStore, err := blobstore.NewLocalStore(dir)
	if err != nil {
		return nil, fmt.Errorf("create local blob store: %w", err)
	}
	logger.Info("blob store backed by local disk", slog.String("dir", dir))
	return localStore, nil
}

// RecoverAndResume runs the boot-time Job Recovery pass (§4.8) and resumes
// every returned job in its own goroutine with a detached context, mirroring
// the teacher's go func(context.WithoutCancel(...), ...) dispatch from
// CreateJob. Recovered jobs have no live upload session, so progress is
// discarded via pipeline.NoopSink.
func (d *Dependencies) RecoverAndResume(ctx context.Context) error {
	resumable, err := d.Orchestrator.Recover(ctx)
	if err != nil {
		return fmt.Errorf("job recovery: %w", err)
	}
	for _, j := range resumable {
		d.logger.Info("resuming job from boot-time recovery", slog.String("job_id", j.ID), slog.String("status", string(j.Status)))
		go func(j *job.Job) {
			if err := d.Orchestrator.Run(context.WithoutCancel(ctx), j, pipeline.NoopSink{}); err != nil {
				d.logger.Error("resumed job failed", slog.String("job_id", j.ID), slog.String("error", err.Error()))
			}
		}(j)
	}
	return nil
}

// Close releases any resources owned by the dependency graph.
func (d *Dependencies) Close() {
	if d.DB != nil {
		db.Close(d.DB, d.logger)
	}
}

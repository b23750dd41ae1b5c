package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotsort/shotsort-api/internal/blobstore"
	"github.com/shotsort/shotsort-api/internal/bucket"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/match"
	"github.com/shotsort/shotsort-api/internal/media"
	"github.com/shotsort/shotsort-api/internal/modelprovider"
	"github.com/shotsort/shotsort-api/internal/pipeline"
	"github.com/shotsort/shotsort-api/internal/query"
	"github.com/shotsort/shotsort-api/internal/upload"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTestModel is a minimal modelprovider.Client stand-in for wiring an
// Orchestrator into router integration tests; no test here actually drives
// a pipeline run, so its methods are never invoked.
type fakeTestModel struct{}

func (fakeTestModel) Describe(context.Context, io.Reader, media.Type, string) (string, error) {
	return "a label", nil
}
func (fakeTestModel) SameTake(context.Context, io.Reader, io.Reader) (bool, error) { return false, nil }
func (fakeTestModel) CompareQuality(context.Context, io.Reader, io.Reader, media.Type, string) (modelprovider.QualityResult, error) {
	return modelprovider.QualityResult{Winner: "a", Confidence: 1, Reasoning: "fake"}, nil
}
func (fakeTestModel) Enhance(_ context.Context, data io.Reader) (io.ReadCloser, error) {
	b, _ := io.ReadAll(data)
	return io.NopCloser(bytes.NewReader(b)), nil
}
func (fakeTestModel) NameBucket(context.Context, []string) (string, error) { return "Fake Bucket", nil }

var _ modelprovider.Client = fakeTestModel{}

type handlerDeps struct {
	jobs    job.Repository
	media   media.Repository
	buckets bucket.Repository
	matches match.Repository
	blobs   blobstore.Store
}

func newTestHandlers(t *testing.T) (*Handlers, handlerDeps) {
	t.Helper()
	deps := handlerDeps{
		jobs:    job.NewMemoryRepository(),
		media:   media.NewMemoryRepository(),
		buckets: bucket.NewMemoryRepository(),
		matches: match.NewMemoryRepository(),
	}
	blobs, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	deps.blobs = blobs

	logger := testLogger()
	q := query.New(deps.jobs, deps.media, deps.buckets)
	h := NewHandlers(deps.jobs, deps.media, deps.buckets, deps.matches, deps.blobs, q, logger)
	return h, deps
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestCreateJob_AllocatesUploadingJobWithWSURL(t *testing.T) {
	h, deps := newTestHandlers(t)

	body := CreateJobRequest{Name: "vacation photos"}
	bodyJSON, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(bodyJSON))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateJobResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "/ws/upload?jobId="+resp.JobID, resp.WSURL)

	stored, err := deps.jobs.FindByID(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusUploading, stored.GetStatus())
}

func TestCreateJob_InvalidJSON(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func TestGetJob_Success(t *testing.T) {
	h, deps := newTestHandlers(t)
	ctx := context.Background()

	testJob := job.New("a job")
	require.NoError(t, deps.jobs.Save(ctx, testJob))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJob.ID, nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp JobSummaryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, testJob.ID, resp.ID)
	assert.Equal(t, "uploading", resp.Status)
}

func TestGetJob_NotFound(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "JOB_NOT_FOUND", resp.Code)
}

func TestListJobs_DefaultsLimitAndOrdersByCreatedAtDesc(t *testing.T) {
	h, deps := newTestHandlers(t)
	ctx := context.Background()

	older := job.New("older")
	require.NoError(t, deps.jobs.Save(ctx, older))
	time.Sleep(2 * time.Millisecond)
	newer := job.New("newer")
	require.NoError(t, deps.jobs.Save(ctx, newer))

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec := httptest.NewRecorder()

	h.ListJobs(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ListJobsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, newer.ID, resp.Jobs[0].ID)
	assert.Equal(t, defaultListLimit, resp.Limit)
}

func TestFinalResults_RejectsIncompleteJob(t *testing.T) {
	h, deps := newTestHandlers(t)
	ctx := context.Background()

	testJob := job.New("")
	require.NoError(t, deps.jobs.Save(ctx, testJob))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJob.ID+"/results", nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	h.FinalResults(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "JOB_NOT_COMPLETED", resp.Code)
}

func TestDeleteJob_CascadesRecordsAndBlobs(t *testing.T) {
	h, deps := newTestHandlers(t)
	ctx := context.Background()

	testJob := job.New("")
	require.NoError(t, deps.jobs.Save(ctx, testJob))

	b := bucket.New(testJob.ID, "Bucket A", media.TypeImage)
	require.NoError(t, deps.buckets.Save(ctx, b))

	blobKey := blobstore.BuildKey(testJob.ID, "a.jpg")
	m := media.New(testJob.ID, "a.jpg", "a.jpg", blobKey, blobKey, media.TypeImage, "image/jpeg", 10)
	require.NoError(t, deps.media.Save(ctx, m))

	_, err := deps.blobs.Put(ctx, blobstore.BuildKey(testJob.ID, "a.jpg"), bytes.NewReader([]byte("data")))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/jobs/"+testJob.ID, nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	h.DeleteJob(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = deps.jobs.FindByID(ctx, testJob.ID)
	assert.ErrorIs(t, err, job.ErrNotFound)

	remaining, err := deps.media.ListByJob(ctx, testJob.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	_, err = deps.blobs.Get(ctx, blobstore.BuildKey(testJob.ID, "a.jpg"))
	assert.Error(t, err)
}

func TestDeleteJob_NotFound(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodDelete, "/jobs/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	h.DeleteJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Integration(t *testing.T) {
	h, deps := newTestHandlers(t)
	logger := testLogger()

	scratch, err := blobstore.NewLocalScratchStore(t.TempDir())
	require.NoError(t, err)
	orch := pipeline.New(deps.jobs, deps.media, deps.buckets, deps.matches, deps.blobs, scratch, fakeTestModel{}, logger, pipeline.DefaultConcurrency())
	uploadHandler := upload.NewHandler(deps.jobs, scratch, orch, logger, []string{"*"})

	router := NewRouter(h, uploadHandler, logger, DefaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := CreateJobRequest{Name: "integration"}
	bodyJSON, _ := json.Marshal(body)
	req = httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(bodyJSON))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var createResp CreateJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&createResp))

	req = httptest.NewRequest(http.MethodGet, "/jobs/"+createResp.JobID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	h, deps := newTestHandlers(t)
	logger := testLogger()
	scratch, err := blobstore.NewLocalScratchStore(t.TempDir())
	require.NoError(t, err)
	orch := pipeline.New(deps.jobs, deps.media, deps.buckets, deps.matches, deps.blobs, scratch, fakeTestModel{}, logger, pipeline.DefaultConcurrency())
	uploadHandler := upload.NewHandler(deps.jobs, scratch, orch, logger, []string{"https://example.com"})

	cfg := Config{AllowedOrigins: []string{"https://example.com"}}
	router := NewRouter(h, uploadHandler, logger, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/jobs", nil)
	req.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := testLogger()

	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := RecoveryMiddleware(logger)(panicHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shotsort/shotsort-api/internal/blobstore"
	"github.com/shotsort/shotsort-api/internal/bucket"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/match"
	"github.com/shotsort/shotsort-api/internal/media"
	"github.com/shotsort/shotsort-api/internal/query"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Handlers contains the HTTP handlers for the Take Sorter REST surface.
type Handlers struct {
	jobs      job.Repository
	mediaRepo media.Repository
	buckets   bucket.Repository
	matches   match.Repository
	blobs     blobstore.Store
	query     *query.Service
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance over the repositories and
// query service the orchestrator also writes/reads through.
func NewHandlers(jobs job.Repository, mediaRepo media.Repository, buckets bucket.Repository, matches match.Repository, blobs blobstore.Store, q *query.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		jobs:      jobs,
		mediaRepo: mediaRepo,
		buckets:   buckets,
		matches:   matches,
		blobs:     blobs,
		query:     q,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs: allocates a job in the uploading state and
// returns the websocket URL the client streams chunks to (spec.md §6).
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}
	}

	j := job.New(req.Name)
	if err := h.jobs.Save(r.Context(), j); err != nil {
		h.logger.Error("failed to create job", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	h.logger.Info("job created", slog.String("job_id", j.ID))

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		JobID: j.ID,
		WSURL: "/ws/upload?jobId=" + j.ID,
	})
}

// ListJobs handles GET /jobs?limit&offset: the paged summary list (§4.9a).
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	summaries, err := h.query.ListJobs(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobSummaryResponse, len(summaries)), Limit: limit, Offset: offset}
	for i, s := range summaries {
		resp.Jobs[i] = jobSummaryResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /jobs/{id}: summary and file counts.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	summary, err := h.query.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeJobLookupError(w, jobID, err, "get job")
		return
	}
	writeJSON(w, http.StatusOK, jobSummaryResponse(summary))
}

// PartialResults handles GET /jobs/{id}/partial (§4.9b).
func (h *Handlers) PartialResults(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	result, err := h.query.PartialResults(r.Context(), jobID)
	if err != nil {
		h.writeJobLookupError(w, jobID, err, "get partial results")
		return
	}

	buckets := make([]BucketViewResponse, len(result.Buckets))
	for i, b := range result.Buckets {
		buckets[i] = bucketViewResponse(b)
	}
	unclustered := make([]MediaSummaryResponse, len(result.Unclustered))
	for i, m := range result.Unclustered {
		unclustered[i] = mediaSummaryResponse(m)
	}

	writeJSON(w, http.StatusOK, PartialResultResponse{
		Job:         jobSummaryResponse(result.Job),
		Buckets:     buckets,
		Unclustered: unclustered,
	})
}

// FinalResults handles GET /jobs/{id}/results: 400 unless the job is
// completed (§4.9c).
func (h *Handlers) FinalResults(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	result, err := h.query.FinalResults(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, query.ErrNotCompleted) {
			writeError(w, http.StatusBadRequest, "job is not completed", "JOB_NOT_COMPLETED")
			return
		}
		h.writeJobLookupError(w, jobID, err, "get final results")
		return
	}

	buckets := make([]BucketViewResponse, len(result.Buckets))
	for i, b := range result.Buckets {
		buckets[i] = bucketViewResponse(b)
	}
	topPicks := make([]MediaSummaryResponse, len(result.TopPicks))
	for i, m := range result.TopPicks {
		topPicks[i] = mediaSummaryResponse(m)
	}

	writeJSON(w, http.StatusOK, FinalResultResponse{
		Job:      jobSummaryResponse(result.Job),
		TopPicks: topPicks,
		Buckets:  buckets,
	})
}

// DeleteJob handles DELETE /jobs/{id}: cascade-deletes every record and
// blob under the job (P4). Record deletion order respects foreign keys
// (matches, then buckets and media, then the job itself); blob deletion
// happens last so a crash mid-delete leaves orphaned blobs, never
// dangling record references.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	ctx := r.Context()

	if _, err := h.jobs.FindByID(ctx, jobID); err != nil {
		h.writeJobLookupError(w, jobID, err, "delete job")
		return
	}

	buckets, err := h.buckets.ListByJob(ctx, jobID)
	if err != nil {
		h.logger.Error("failed to list buckets for delete", slog.String("job_id", jobID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
		return
	}
	for _, b := range buckets {
		if err := h.matches.DeleteByBucket(ctx, b.ID); err != nil {
			h.logger.Error("failed to delete matches", slog.String("bucket_id", b.ID), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
			return
		}
	}
	if err := h.mediaRepo.DeleteByJob(ctx, jobID); err != nil {
		h.logger.Error("failed to delete media", slog.String("job_id", jobID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
		return
	}
	if err := h.buckets.DeleteByJob(ctx, jobID); err != nil {
		h.logger.Error("failed to delete buckets", slog.String("job_id", jobID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
		return
	}
	if err := h.jobs.Delete(ctx, jobID); err != nil {
		h.logger.Error("failed to delete job row", slog.String("job_id", jobID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
		return
	}
	if err := h.blobs.DeletePrefix(ctx, blobstore.BuildJobPrefix(jobID)); err != nil {
		h.logger.Error("failed to delete job blobs", slog.String("job_id", jobID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
		return
	}

	h.logger.Info("job deleted", slog.String("job_id", jobID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) writeJobLookupError(w http.ResponseWriter, jobID string, err error, action string) {
	if errors.Is(err, job.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	}
	h.logger.Error(fmt.Sprintf("failed to %s", action), slog.String("job_id", jobID), slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to %s", action), "JOB_QUERY_FAILED")
}

func jobSummaryResponse(s query.JobSummary) JobSummaryResponse {
	resp := JobSummaryResponse{
		ID:             s.ID,
		Name:           s.Name,
		Status:         s.Status,
		TotalFiles:     s.TotalFiles,
		ProcessedFiles: s.ProcessedFiles,
		Error:          s.Error,
		CreatedAt:      s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      s.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !s.CompletedAt.IsZero() {
		resp.CompletedAt = s.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func mediaSummaryResponse(m query.MediaSummary) MediaSummaryResponse {
	return MediaSummaryResponse{
		ID:              m.ID,
		Filename:        m.Filename,
		MediaType:       m.MediaType,
		BlobURL:         m.BlobURL,
		Label:           m.Label,
		RatingScore:     m.RatingScore,
		IsTopPick:       m.IsTopPick,
		EnhancedBlobURL: m.EnhancedBlobURL,
	}
}

func bucketViewResponse(b query.BucketView) BucketViewResponse {
	members := make([]MediaSummaryResponse, len(b.Members))
	for i, m := range b.Members {
		members[i] = mediaSummaryResponse(m)
	}
	return BucketViewResponse{ID: b.ID, Name: b.Name, MediaType: b.MediaType, Members: members}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

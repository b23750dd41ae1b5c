// Package upload implements the Upload Assembler: the duplex websocket
// session at /ws/upload that receives a chunked archive, writes it to a
// scratch file, and hands the resulting Job off to the Pipeline
// Orchestrator once every chunk has arrived (spec.md §4.2, §6).
package upload

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/shotsort/shotsort-api/internal/blobstore"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/pipeline"
)

// Handler upgrades incoming HTTP requests to websocket upload sessions.
type Handler struct {
	upgrader     websocket.Upgrader
	jobs         job.Repository
	scratch      blobstore.ScratchStore
	orchestrator *pipeline.Orchestrator
	logger       *slog.Logger
}

// NewHandler creates an upload Handler. allowedOrigins mirrors the REST
// CORS configuration; "*" accepts any origin.
func NewHandler(jobs job.Repository, scratch blobstore.ScratchStore, orchestrator *pipeline.Orchestrator, logger *slog.Logger, allowedOrigins []string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		jobs:         jobs,
		scratch:      scratch,
		orchestrator: orchestrator,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOriginFunc(allowedOrigins),
		},
	}
}

func checkOriginFunc(allowedOrigins []string) func(*http.Request) bool {
	for _, o := range allowedOrigins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		for _, o := range allowedOrigins {
			if o == origin {
				return true
			}
		}
		return false
	}
}

// ServeWS handles GET /ws/upload?jobId=..., upgrading the connection and
// running its session to completion on dedicated reader/writer goroutines.
// The job must already exist (allocated by POST /jobs) and be in the
// uploading state; wsUrl returned from that call carries the jobId.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		http.Error(w, "jobId query parameter is required", http.StatusBadRequest)
		return
	}

	j, err := h.jobs.FindByID(r.Context(), jobID)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if j.GetStatus() != job.StatusUploading {
		http.Error(w, "job is not awaiting upload", http.StatusConflict)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upload websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	s := newSession(conn, j, h.jobs, h.scratch, h.orchestrator, h.logger)
	go s.run()
}

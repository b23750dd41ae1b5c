package server

import (
	"log/slog"
	"net/http"

	"github.com/shotsort/shotsort-api/internal/upload"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured. It uses
// Go 1.22+ ServeMux with method-based routing, mounting both the REST
// surface and the upload websocket under one middleware chain.
func NewRouter(h *Handlers, uploadHandler *upload.Handler, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /jobs", h.ListJobs)
	mux.HandleFunc("POST /jobs", h.CreateJob)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("DELETE /jobs/{id}", h.DeleteJob)
	mux.HandleFunc("GET /jobs/{id}/partial", h.PartialResults)
	mux.HandleFunc("GET /jobs/{id}/results", h.FinalResults)
	mux.HandleFunc("GET /ws/upload", uploadHandler.ServeWS)

	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}

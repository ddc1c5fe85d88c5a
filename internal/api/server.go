package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/chatmd/internal/archive"
	"github.com/dgallion1/chatmd/internal/config"
	"github.com/dgallion1/chatmd/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for chatmd.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	archive      *archive.Store
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. arch may be nil, in
// which case the archive endpoints are not mounted.
func NewServer(orch *pipeline.Orchestrator, arch *archive.Store, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		archive:      arch,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/export", s.handleExport)
		r.Post("/api/export/batch", s.handleBatchExport)
		r.Get("/api/export/{jobID}/status", s.handleExportStatus)
		r.Get("/api/export/{jobID}/download", s.handleExportDownload)
		r.Get("/api/stats/export", s.handleExportStats)

		if s.archive != nil {
			r.Get("/api/archive", s.handleListArchive)
			r.Get("/api/archive/search", s.handleSearchArchive)
			r.Get("/api/archive/{id}", s.handleGetArchive)
			r.Get("/api/archive/{id}/download", s.handleDownloadArchive)
			r.Delete("/api/archive/{id}", s.handleDeleteArchive)
		}
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

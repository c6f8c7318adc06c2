// Package web provides the JSON HTTP API for the cleaning service.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/addrclean/internal/config"
	"github.com/JonMunkholm/addrclean/internal/web/middleware"
)

// Server is the HTTP server for the cleaning API.
type Server struct {
	service  Service
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	limiters []*middleware.RateLimiter
}

// NewServer creates a new Server instance.
func NewServer(service Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	sc := cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}

	// Security hardening
	s.router.Use(middleware.SecurityHeaders)
	s.router.Use(requestMetadata)
}

// rateLimit returns a per-IP limiter middleware, or a pass-through when
// rate limiting is disabled.
func (s *Server) rateLimit(perMinute int) func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	rl := middleware.NewRateLimiter(perMinute)
	s.limiters = append(s.limiters, rl)
	return rl.Handler
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/healthz", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit(s.cfg.Rate.RequestsPerMinute))
			r.Use(middleware.APIKeyAuth(&s.cfg.Security, s.service))

			r.Get("/regions", s.handleRegions)
			r.Get("/dashboard/stats", s.handleDashboardStats)

			// Batches
			r.Get("/batches", s.handleListBatches)
			r.Get("/batches/stats", s.handleBatchStats)
			r.Get("/batches/{id}", s.handleGetBatch)
			r.Delete("/batches/{id}", s.handleDeleteBatch)
			r.Get("/batches/{id}/jobs", s.handleBatchJobs)

			// Upload and processing are the expensive calls
			r.Group(func(r chi.Router) {
				r.Use(s.rateLimit(s.cfg.Rate.UploadLimit))
				r.Post("/batches", s.handleUpload)
				r.Post("/batches/{id}/process", s.handleProcess)
			})

			// Jobs
			r.Get("/jobs/active", s.handleActiveJobs)
			r.Get("/jobs/{id}", s.handleGetJob)

			// Records
			r.Get("/batches/{id}/records", s.handleListRecords)
			r.Get("/batches/{id}/records/stats", s.handleRecordStats)
			r.Get("/batches/{id}/records/review", s.handleReviewQueue)
			r.Post("/batches/{id}/accept-cleaned", s.handleAcceptCleaned)
			r.Get("/records/{id}", s.handleGetRecord)
			r.Patch("/records/{id}", s.handleUpdateRecord)
			r.Post("/records/{id}/approve", s.handleApproveRecord)
			r.Post("/records/{id}/reject", s.handleRejectRecord)
			r.Post("/records/bulk-approve", s.handleBulkApprove)
			r.Post("/records/bulk-reject", s.handleBulkReject)

			// Issues
			r.Get("/batches/{id}/issues", s.handleListIssues)
			r.Get("/batches/{id}/issues/stats", s.handleIssueStats)
			r.Post("/issues/{id}/resolve", s.handleResolveIssue)

			// Audit log
			r.Get("/audit", s.handleAuditLog)
			r.Get("/audit/export", s.handleAuditLogExport)

			// Export and downloads
			r.Post("/batches/{id}/export", s.handleExport)
			r.Get("/files/*", s.handleDownload)

			// API keys
			r.Get("/api-keys", s.handleListAPIKeys)
			r.Post("/api-keys", s.handleCreateAPIKey)
			r.Delete("/api-keys/{id}", s.handleRevokeAPIKey)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.Close()
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

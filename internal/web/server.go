// Package web is the HTTP surface of catalogdesk: the admin pages and the
// JSON API behind them.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/JonMunkholm/catalogdesk/internal/config"
	"github.com/JonMunkholm/catalogdesk/internal/core"
	"github.com/JonMunkholm/catalogdesk/internal/metrics"
	"github.com/JonMunkholm/catalogdesk/internal/web/middleware"
)

// Server is the HTTP server.
type Server struct {
	service *core.Service
	cfg     *config.Config
	metrics *metrics.Metrics
	limiter *rateLimiter
	router  *chi.Mux
	server  *http.Server
	now     func() time.Time
}

// NewServer builds the router. m may be nil.
func NewServer(service *core.Service, cfg *config.Config, m *metrics.Metrics) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		metrics: m,
		router:  chi.NewRouter(),
		now:     time.Now,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if origins := s.cfg.Security.CORSAllowedOrigins; len(origins) > 0 {
		s.router.Use(cors.New(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type", "X-API-Key", "Authorization", "HX-Request", "HX-Target"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	if s.cfg.Rate.Enabled {
		s.limiter = newRateLimiter(s.cfg.Rate.RequestsPerMinute, s.cfg.Rate.Burst)
		s.router.Use(s.limiter.middleware)
	}

	s.router.Use(requestOrigin)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	// Pages
	s.router.Get("/", s.handleProductsPage)
	s.router.Get("/partials/grid", s.handleProductGrid)
	s.router.Get("/template", s.handleTemplatePage)
	s.router.Post("/partials/template/preview", s.handleTemplatePreview)
	s.router.Get("/audit-log", s.handleAuditLogPage)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security))

		r.Get("/products", s.handleListProducts)
		r.Post("/products", s.handlePersistProducts)
		r.Get("/deals", s.handleListDeals)
		r.Post("/deals/import", s.handleImportDeals)
		r.Get("/deals/key", s.handleDealsKeyStatus)
		r.Put("/deals/key", s.handleSetDealsKey)
		r.Get("/best-sellers", s.handleBestSellers)
		r.Get("/search", s.handleSearch)
		r.Post("/extract", s.handleExtract)

		r.Route("/selection", func(r chi.Router) {
			r.Get("/", s.handleGetSelection)
			r.Post("/toggle/{id}", s.handleToggle)
			r.Post("/select-all", s.handleSelectVisible)
			r.Post("/invert", s.handleInvertVisible)
			r.Post("/clear", s.handleClearSelection)
		})

		r.Get("/columns", s.handleGetColumns)
		r.Put("/columns", s.handleSaveColumns)

		r.Route("/bulk", func(r chi.Router) {
			r.Post("/export", s.handleExport)
			r.Post("/delete", s.handleDelete)
			r.Post("/save", s.handleSave)
			r.Get("/saved", s.handleSaved)
			r.Post("/import", s.handleImport)
		})
		r.Get("/jobs", s.handleJobStatus)

		r.Get("/template", s.handleGetTemplate)
		r.Put("/template", s.handleSaveTemplate)
		r.Delete("/template", s.handleResetTemplate)
		r.Post("/template/preview", s.handleTemplatePreview)

		r.Get("/audit-log", s.handleAuditLog)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"jobs":   s.service.JobStatus(),
	})
}

func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				// htmx is loaded from unpkg; product images come from anywhere.
				h.Set("Content-Security-Policy",
					"default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode", "error", err)
	}
}

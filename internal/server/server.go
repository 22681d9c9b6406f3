// Package server provides the HTTP server setup and wiring.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bytevault/bytevault/internal/auth"
	"github.com/bytevault/bytevault/internal/config"
	importerDomain "github.com/bytevault/bytevault/internal/importer/domain"
	importerTransport "github.com/bytevault/bytevault/internal/importer/transport"
	"github.com/bytevault/bytevault/internal/ingest"
	lookupDomain "github.com/bytevault/bytevault/internal/lookup/domain"
	lookupTransport "github.com/bytevault/bytevault/internal/lookup/transport"
	"github.com/bytevault/bytevault/internal/middleware/logging"
	"github.com/bytevault/bytevault/internal/middleware/ratelimit"
	"github.com/bytevault/bytevault/internal/middleware/realip"
	"github.com/bytevault/bytevault/internal/middleware/security"
	"github.com/bytevault/bytevault/internal/observability/metrics"
	"github.com/bytevault/bytevault/internal/storage"
	"github.com/bytevault/bytevault/internal/verifier"
	verifyDomain "github.com/bytevault/bytevault/internal/verify/domain"
	verifyTransport "github.com/bytevault/bytevault/internal/verify/transport"
)

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	router *chi.Mux

	// Services typed via transport interfaces
	verifySvc verifyTransport.Service
	importSvc importerTransport.Service
	lookupSvc lookupTransport.Service
}

// New creates a new server
func New(cfg *config.Config, store storage.Store, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}

	// Compiler backend client shared by verification and batch import
	client := verifier.NewHTTPClient(
		cfg.Verifier.URL,
		time.Duration(cfg.Verifier.TimeoutSeconds)*time.Second,
		logger,
	)

	// Create domain services
	ingestSvc := ingest.NewService(store, logger)
	s.verifySvc = verifyDomain.NewService(client, ingestSvc, logger)
	s.importSvc = importerDomain.NewService(client, ingestSvc, cfg.Import, logger)
	s.lookupSvc = lookupDomain.NewService(store, logger)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

func (s *Server) setupMiddleware() {
	// Order matters! Security middleware runs first to block malicious requests early.

	// 1. Real IP extraction (must be first to set client IP for other middleware)
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	// 2. Security filter (blocks malicious patterns, bypasses health checks)
	s.router.Use(security.FilterMiddleware(s.cfg.Security.FilterEnabled))

	// 3. Body size limit
	s.router.Use(security.MaxBodySizeMiddleware(s.cfg.Security.MaxBodySizeMB))

	// 4. Rate limiting (bypasses health checks)
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	// 5. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// 6. CORS
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-API-Key")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// Prometheus scrape endpoint
	s.router.Handle("/metrics", metrics.Handler())

	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleHealth)

	// Create HTTP handlers for each domain
	verifyHandler := verifyTransport.NewHandler(s.verifySvc)
	importHandler := importerTransport.NewHandler(s.importSvc)
	lookupHandler := lookupTransport.NewHandler(s.lookupSvc)

	// Write operations require a key when auth is enabled; otherwise a key is
	// still honored for attribution when one is sent.
	requireAuth := func(r chi.Router) {
		if s.cfg.Auth.Type == "api-key" {
			r.Use(auth.Middleware(s.store, writeError))
		} else {
			r.Use(auth.OptionalMiddleware(s.store))
		}
	}

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Verification and batch import persist records, so they count as writes
		r.Group(func(r chi.Router) {
			requireAuth(r)
			verifyHandler.RegisterRoutes(r)
			importHandler.RegisterRoutes(r)
		})

		// Lookups - read only, no auth
		lookupHandler.RegisterRoutes(r)
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

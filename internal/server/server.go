package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xtergo/dnaresearch-sub000/internal/identity"
	"github.com/xtergo/dnaresearch-sub000/internal/ratelimit"
)

// Server wraps the HTTP server, routing, and middleware chain.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Config holds the server's dependencies and listen settings.
type ServerConfig struct {
	Handlers *Handlers
	Identity *identity.Manager
	Limiter  ratelimit.Limiter
	Logger   *slog.Logger

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New builds the route table and middleware chain.
func New(cfg ServerConfig) *Server {
	h := cfg.Handlers

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.HandleHealth)

	mux.HandleFunc("GET /v1/genes/search", h.HandleGeneSearch)
	mux.HandleFunc("GET /v1/genes/{symbol}", h.HandleGetGene)
	mux.HandleFunc("POST /v1/genes/{symbol}/interpret", h.HandleInterpretVariant)

	mux.HandleFunc("POST /v1/theories", h.HandleCreateTheory)
	mux.HandleFunc("GET /v1/theories", h.HandleListTheories)
	mux.HandleFunc("GET /v1/theories/{id}", h.HandleGetTheory)
	mux.HandleFunc("POST /v1/theories/{id}/execute", h.HandleExecuteTheory)
	mux.HandleFunc("POST /v1/theories/{id}/evidence", h.HandleAddEvidence)
	mux.HandleFunc("GET /v1/theories/{id}/posterior", h.HandleGetPosterior)
	mux.HandleFunc("POST /v1/theories/{id}/fork", h.HandleForkTheory)
	mux.HandleFunc("GET /v1/theories/{id}/lineage", h.HandleTheoryLineage)
	mux.HandleFunc("PATCH /v1/theories/{id}/lifecycle", h.HandleSetLifecycle)
	mux.HandleFunc("POST /v1/theories/{id}/comments", h.HandleAddComment)

	mux.HandleFunc("POST /v1/genomic/store", h.HandleStoreGenomic)
	mux.HandleFunc("GET /v1/genomic/materialize/{individual}/{anchor}", h.HandleMaterialize)

	mux.HandleFunc("POST /v1/consent/capture", h.HandleCaptureConsent)
	mux.HandleFunc("POST /v1/consent/withdraw", h.HandleWithdrawConsent)
	mux.HandleFunc("GET /v1/consent/check/{user}", h.HandleConsentStatus)

	mux.HandleFunc("GET /v1/audit/{user}", h.HandleAuditTrail)
	mux.HandleFunc("GET /v1/ledger/verify", h.HandleVerifyLedger)

	mux.HandleFunc("POST /v1/webhooks/sequencing/{partner}", h.HandleWebhook)
	mux.HandleFunc("GET /v1/webhooks/events/{id}", h.HandleGetWebhookEvent)

	mux.HandleFunc("POST /v1/files/presign", h.HandlePresignUpload)
	mux.HandleFunc("POST /v1/files/{id}/complete", h.HandleCompleteUpload)

	mux.HandleFunc("GET /v1/compliance/report", h.HandleComplianceReport)
	mux.HandleFunc("GET /v1/cache/stats", h.HandleCacheStats)

	// Outermost first: the request ID must exist before anything logs, and
	// rate limiting keys off the identity resolved just before it.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = rateLimitMiddleware(cfg.Limiter, handler)
	handler = identityMiddleware(cfg.Identity, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Handler returns the fully wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving. Blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Package server provides the HTTP API for submitting batches and reading
// reports.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/prospect-reports/internal/pipeline"
	"github.com/jonathan/prospect-reports/internal/server/middleware"
	"github.com/jonathan/prospect-reports/internal/server/ratelimit"
	"github.com/jonathan/prospect-reports/internal/types"
)

// errShutdown is the cancellation cause seen by jobs still running when the
// server stops.
var errShutdown = errors.New("server shutting down")

// BatchStarter queues a batch and runs it in the background.
type BatchStarter interface {
	Start(ctx context.Context, ownerID string, records []types.InputRecord) (*pipeline.Batch, error)
}

// ReportStore reads persisted outcomes.
type ReportStore interface {
	GetOutcome(ctx context.Context, id string) (*types.StoredOutcome, error)
	ListOutcomes(ctx context.Context, ownerID string, limit int) ([]types.StoredOutcome, error)
}

// InsightWriter summarizes a finished report.
type InsightWriter interface {
	Insights(ctx context.Context, report string) (string, error)
}

// EventForwarder publishes a batch's progress somewhere outside the process.
// Go must subscribe before returning; the channel yields once forwarding
// stops.
type EventForwarder interface {
	Go(ctx context.Context, batch *pipeline.Batch) <-chan int
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration
type Config struct {
	Port           int
	AllowedOrigins []string
	// BatchRetention is how long finished batches stay queryable.
	BatchRetention time.Duration
	// MaxUploadBytes caps the size of a submitted company list.
	MaxUploadBytes int64
}

// Dependencies are the collaborators the handlers call. Reports and Insights
// may be nil, in which case the report endpoints answer 503.
type Dependencies struct {
	Batches     BatchStarter
	Reports     ReportStore
	Insights    InsightWriter
	Events      EventForwarder
	RateLimiter *ratelimit.Limiter
	Logger      *zap.Logger
}

// Defaults for Config.
const (
	DefaultBatchRetention = time.Hour
	DefaultMaxUploadBytes = 5 << 20
)

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	batches     BatchStarter
	reports     ReportStore
	insights    InsightWriter
	events      EventForwarder
	forwarding  sync.WaitGroup
	rateLimiter *ratelimit.Limiter
	logger      *zap.Logger
	origins     map[string]bool
	registry    *registry
	maxUpload   int64

	// baseCtx outlives requests so batches keep running after the 202.
	baseCtx context.Context
	stop    context.CancelCauseFunc
}

// New creates a new server instance
func New(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Batches == nil {
		return nil, errors.New("server: batch starter is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.BatchRetention <= 0 {
		cfg.BatchRetention = DefaultBatchRetention
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	baseCtx, stop := context.WithCancelCause(context.Background())
	s := &Server{
		batches:     deps.Batches,
		reports:     deps.Reports,
		insights:    deps.Insights,
		events:      deps.Events,
		rateLimiter: deps.RateLimiter,
		logger:      deps.Logger,
		origins:     make(map[string]bool, len(cfg.AllowedOrigins)),
		registry:    newRegistry(cfg.BatchRetention, time.Now),
		maxUpload:   cfg.MaxUploadBytes,
		baseCtx:     baseCtx,
		stop:        stop,
	}
	for _, o := range cfg.AllowedOrigins {
		s.origins[o] = true
	}

	owner := middleware.RequireOwner

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("POST /batches", owner(http.HandlerFunc(s.handleCreateBatch)))
	mux.Handle("GET /batches/{id}", owner(http.HandlerFunc(s.handleGetBatch)))
	mux.Handle("GET /batches/{id}/events", owner(http.HandlerFunc(s.handleBatchEvents)))

	mux.HandleFunc("GET /reports", s.handleListReports)
	mux.HandleFunc("GET /reports/{id}", s.handleGetReport)
	mux.HandleFunc("POST /reports/{id}/insights", s.handleReportInsights)

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.handler,
		ReadTimeout: 30 * time.Second,
		// no WriteTimeout: event streams last as long as their batch
		IdleTimeout: 60 * time.Second,
	}

	return s, nil
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.ListenAndServe(ctx)
}

// ListenAndServe serves until ctx ends, then shuts down gracefully. Batches
// still running at that point are cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server: listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("server: shutting down")
	return s.Shutdown(context.Background())
}

// Shutdown stops accepting requests and cancels running batches. It waits
// up to 30 seconds for in-flight requests, for the cancelled batches to save
// their outcomes and for their events to be forwarded.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop(errShutdown)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := s.registry.wait(ctx); err != nil {
		return fmt.Errorf("server shutdown: batches still running: %w", err)
	}
	if err := waitGroup(ctx, &s.forwarding); err != nil {
		return fmt.Errorf("server shutdown: event forwarding unfinished: %w", err)
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.logger.Info("server: stopped")
	return nil
}

// waitGroup waits for wg or until ctx ends.
func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withCORS adds CORS headers. An empty origin list allows any origin.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(s.origins) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case s.origins[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+middleware.OwnerHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE working through the logging wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if p, ok := s.reports.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = "unavailable"
			s.jsonResponse(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "ok"
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("server: failed to encode response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn("server: rate limit exceeded",
		zap.String("client", s.extractClientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// Package server provides the HTTP API that hosts wizard sessions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/skill-gap-wizard/internal/blob"
	"github.com/jonathan/skill-gap-wizard/internal/extraction"
	"github.com/jonathan/skill-gap-wizard/internal/persistence"
	"github.com/jonathan/skill-gap-wizard/internal/requirements"
	"github.com/jonathan/skill-gap-wizard/internal/roles"
	"github.com/jonathan/skill-gap-wizard/internal/server/ratelimit"
	"github.com/jonathan/skill-gap-wizard/internal/wizard"
)

// Defaults for Config fields left zero.
const (
	DefaultMaxUploadBytes = 50 << 20
	DefaultKeepAlive      = 15 * time.Second
	shutdownTimeout       = 30 * time.Second
)

// RoleSearcher looks up roles in the catalog.
type RoleSearcher interface {
	Search(ctx context.Context, query string) ([]roles.Role, error)
}

// Config holds server configuration
type Config struct {
	Port             int
	Flow             wizard.Flow
	ExitPolicy       wizard.ExitPolicy
	AutoAdvanceDelay time.Duration
	MaxUploadBytes   int64
	KeepAlive        time.Duration
	RateLimit        *ratelimit.Config
}

// Deps are the collaborators the server calls. Only KV is required; routes
// whose collaborator is missing answer 503.
type Deps struct {
	KV        persistence.KV
	Blobs     blob.Store
	Roles     RoleSearcher
	Extractor extraction.Extractor
	Generator requirements.Generator
	Logger    *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	cfg         Config
	httpServer  *http.Server
	handler     http.Handler
	kv          persistence.KV
	blobs       blob.Store
	roles       RoleSearcher
	extractor   extraction.Extractor
	generator   requirements.Generator
	rateLimiter *ratelimit.Limiter
	sessions    *registry
	validate    *validator.Validate
	logger      *zap.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.KV == nil {
		return nil, fmt.Errorf("server: a key-value store is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Blobs == nil {
		deps.Blobs = blob.NewMemoryStore()
	}
	if cfg.Flow.Len() == 0 {
		cfg.Flow = wizard.StandardFlow
	}
	if cfg.ExitPolicy == "" {
		cfg.ExitPolicy = wizard.ExitToHost
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}

	s := &Server{
		cfg:         cfg,
		kv:          deps.KV,
		blobs:       deps.Blobs,
		roles:       deps.Roles,
		extractor:   deps.Extractor,
		generator:   deps.Generator,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		sessions:    newRegistry(),
		validate:    validator.New(),
		logger:      deps.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Session lifecycle (mount / unmount)
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.withSession(s.handleDeleteSession))
	mux.HandleFunc("GET /sessions/{id}/screen", s.withSession(s.handleScreen))
	mux.HandleFunc("GET /sessions/{id}/events", s.withSession(s.handleEvents))
	mux.HandleFunc("GET /sessions/{id}/snapshot", s.withSession(s.handleSnapshot))

	// Navigation
	mux.HandleFunc("POST /sessions/{id}/next", s.withSession(s.handleNext))
	mux.HandleFunc("POST /sessions/{id}/back", s.withSession(s.handleBack))
	mux.HandleFunc("POST /sessions/{id}/jump", s.withSession(s.handleJump))
	mux.HandleFunc("POST /sessions/{id}/report", s.withSession(s.handleReport))

	// Selections
	mux.HandleFunc("PUT /sessions/{id}/objective", s.withSession(s.handleSelectObjective))
	mux.HandleFunc("PUT /sessions/{id}/role", s.withSession(s.handleSelectRole))
	mux.HandleFunc("PUT /sessions/{id}/requirement-choice", s.withSession(s.handleSelectRequirementChoice))
	mux.HandleFunc("PUT /sessions/{id}/scenario", s.withSession(s.handleSelectScenario))
	mux.HandleFunc("POST /sessions/{id}/requirements", s.withSession(s.handleSessionRequirements))

	// Uploads
	mux.HandleFunc("POST /sessions/{id}/uploads", s.withSession(s.handleUpload))
	mux.HandleFunc("DELETE /sessions/{id}/uploads/{index}", s.withSession(s.handleRemoveUpload))
	mux.HandleFunc("PUT /sessions/{id}/uploads/selected", s.withSession(s.handleSelectUpload))

	// External services
	mux.HandleFunc("GET /roles", s.handleSearchRoles)
	mux.HandleFunc("POST /requirements/generate", s.handleGenerateRequirements)

	s.handler = s.withRecover(s.withRateLimit(s.withLogging(s.withCORS(mux))))
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then unmounts every session and shuts
// the listener down.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")

		// Unmounting closes SSE streams so Shutdown can drain connections.
		s.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}

// Close unmounts all sessions and stops background work.
func (s *Server) Close() {
	for _, sess := range s.sessions.drain() {
		sess.close()
	}
	s.rateLimiter.Stop()
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients over their budget with 429.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logs. It forwards
// Flush so SSE streams keep working behind the logging middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		if r.status == 0 {
			r.status = http.StatusOK
		}
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// withRecover turns handler panics into 500 responses.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.logger.Error("handler panic", zap.String("path", r.URL.Path), zap.Any("panic", v))
				s.errorResponse(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.len()})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// failure maps err to a status code and writes it. Server-side failures are logged.
func (s *Server) failure(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	s.errorResponse(w, status, err.Error())
}

// clientID identifies the caller by remote IP.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// Package server implements the HTTP server that exposes the resume chat
// pipeline and the collection registry as a JSON REST API.
// The server is started by the `cvchat serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/cvchat-go/internal/chat"
	"github.com/54b3r/cvchat-go/internal/logging"
	"github.com/54b3r/cvchat-go/internal/rag"
)

// New constructs a Server from the provided chatbot, registry, and config.
func New(bot chatter, registry collectionRegistry, cfg *Config) (*Server, error) {
	if bot == nil {
		return nil, fmt.Errorf("server: chatbot must not be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("server: registry must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full chat turn, including generation.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		chatter:  bot,
		registry: registry,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		s.log.Warn("server: CVCHAT_API_KEY not set — API authentication is disabled")
	}

	// protected wraps an API handler with auth, rate limiting, and metrics.
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", protected("chat", s.handleChat))
	mux.Handle("GET /api/collections", protected("collections_list", s.handleCollectionsList))
	mux.Handle("POST /api/collections", protected("collections_create", s.handleCollectionsCreate))
	mux.Handle("POST /api/collections/refresh", protected("collections_refresh", s.handleCollectionsRefresh))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleChat handles POST /api/chat requests. It runs one chat turn against
// the requested collection and returns the grounded answer as JSON.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.chatOutcome("invalid", start)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.CollectionName) == "" {
		s.chatOutcome("invalid", start)
		http.Error(w, "collectionName is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.chatOutcome("invalid", start)
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	answer, err := s.chatter.SendMessage(r.Context(), req.SessionID, req.CollectionName, req.Message)
	if err != nil {
		var verr *chat.ValidationError
		switch {
		case errors.Is(err, rag.ErrUnknownCollection):
			s.chatOutcome("not_found", start)
			http.Error(w, fmt.Sprintf("unknown collection %q", req.CollectionName), http.StatusNotFound)
		case errors.As(err, &verr):
			s.chatOutcome("invalid", start)
			http.Error(w, verr.Error(), http.StatusBadRequest)
		default:
			logging.FromContext(r.Context()).Error("chat turn failed", slog.Any("error", err))
			s.chatOutcome("error", start)
			http.Error(w, "chat turn failed", http.StatusInternalServerError)
		}
		return
	}

	outcome := "ok"
	if answer == chat.DegradedAnswer {
		outcome = "degraded"
	}
	s.chatOutcome(outcome, start)
	writeJSON(w, http.StatusOK, chatResponse{Response: answer})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// chatOutcome records the outcome and duration of one /api/chat request.
func (s *Server) chatOutcome(outcome string, start time.Time) {
	s.metrics.chatTurnsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// instrument wraps next with the shared HTTP request counter and latency
// histogram, labelled by the logical handler name.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yourusername/urengine/pkg/engine"
)

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Host           string        // Host to bind to (default "localhost")
	Port           int           // Port to listen on (default 8080)
	ReadTimeout    time.Duration // default 30s
	WriteTimeout   time.Duration // default 5m; Monte Carlo searches are slow
	IdleTimeout    time.Duration // default 60s
	MaxFastWorkers int           // Max concurrent scoring requests
	MaxSlowWorkers int           // Max concurrent rollouts and searches

	DefaultAI     string // AI used when a request names none
	RolloutTrials int    // Games per rollout when a request gives none
	MaxTrials     int    // Cap on the trials or budget a request asks for
	Workers       int    // Rollout goroutines per request (0 = GOMAXPROCS)
	CacheSize     int    // Seeded move answers remembered (0 = default, negative = off)
}

// DefaultConfig returns a ServerConfig with sensible defaults.
func DefaultConfig() ServerConfig {
	pool := DefaultPoolConfig()
	return ServerConfig{
		Host:           "localhost",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   5 * time.Minute,
		IdleTimeout:    60 * time.Second,
		MaxFastWorkers: pool.MaxFastWorkers,
		MaxSlowWorkers: pool.MaxSlowWorkers,
		DefaultAI:      "#AI_KFE521S3",
		RolloutTrials:  engine.DefaultTrials,
		MaxTrials:      DefaultMaxTrials,
		CacheSize:      DefaultCacheSize,
	}
}

// Server is the HTTP API server.
type Server struct {
	config   ServerConfig
	handlers *Handlers
	server   *http.Server
	pool     *WorkerPool
	logger   zerolog.Logger
	version  string
}

// NewServer creates a server answering with the AIs in reg. The registry may
// be redefined while the server runs.
func NewServer(reg *engine.Registry, config ServerConfig, version string, logger zerolog.Logger) *Server {
	pool := NewWorkerPool(PoolConfig{
		MaxFastWorkers: config.MaxFastWorkers,
		MaxSlowWorkers: config.MaxSlowWorkers,
	})
	handlers := NewHandlers(reg, version, pool, HandlerOptions{
		DefaultAI:     config.DefaultAI,
		RolloutTrials: config.RolloutTrials,
		MaxTrials:     config.MaxTrials,
		Workers:       config.Workers,
		CacheSize:     config.CacheSize,
		Logger:        logger,
	})

	return &Server{
		config:   config,
		handlers: handlers,
		pool:     pool,
		logger:   logger,
		version:  version,
	}
}

// Pool returns the worker pool for monitoring.
func (s *Server) Pool() *WorkerPool {
	return s.pool
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Flush lets streaming handlers work through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrade take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// loggingMiddleware tags every request with an ID and logs it once served.
func loggingMiddleware(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Info().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handlers.Health)
	mux.HandleFunc("GET /api/ais", s.handlers.AIs)
	mux.HandleFunc("POST /api/move", s.handlers.Move)
	mux.HandleFunc("POST /api/score", s.handlers.Score)
	mux.HandleFunc("POST /api/rollout", s.handlers.Rollout)
	mux.HandleFunc("POST /api/review", s.handlers.Review)
	mux.HandleFunc("GET /api/rollout/stream", s.handlers.RolloutSSE)
	mux.HandleFunc("/api/ws", s.handlers.WebSocket)

	return corsMiddleware(loggingMiddleware(s.logger, mux))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info().
		Str("version", s.version).
		Str("addr", addr).
		Str("default_ai", s.config.DefaultAI).
		Int("max_fast", s.config.MaxFastWorkers).
		Int("max_slow", s.config.MaxSlowWorkers).
		Msg("starting urengine API server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// ListenAndServeWithGracefulShutdown serves until SIGINT or SIGTERM, then
// gives in-flight requests 10 seconds to finish.
func (s *Server) ListenAndServeWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		s.logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("server stopped")
	return nil
}

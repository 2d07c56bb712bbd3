// Package server provides the HTTP server for the tailor API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"resumetailor-hq/tailor/pkg/api/handlers"
	"resumetailor-hq/tailor/pkg/api/middleware"
	"resumetailor-hq/tailor/pkg/auth"
	"resumetailor-hq/tailor/pkg/config"
	"resumetailor-hq/tailor/pkg/telemetry/health"
	"resumetailor-hq/tailor/pkg/telemetry/metrics"
)

// Server is the HTTP server for the tailor API.
type Server struct {
	config     *config.Config
	api        *handlers.Handlers
	validator  auth.Validator
	collector  *metrics.Collector
	checker    *health.Checker
	buildInfo  BuildInfo
	logger     *slog.Logger
	httpServer *http.Server

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// BuildInfo is reported by GET /version.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Options carries the optional collaborators of a Server.
type Options struct {
	// Validator verifies bearer tokens. Nil treats every caller as a guest.
	Validator auth.Validator
	// Metrics enables per-route metrics and the metrics endpoint.
	Metrics *metrics.Collector
	// Health serves the liveness and readiness probes.
	Health    *health.Checker
	BuildInfo BuildInfo
	Logger    *slog.Logger
}

// New creates a server for api.
func New(cfg *config.Config, api *handlers.Handlers, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checker := opts.Health
	if checker == nil {
		checker = health.New(cfg.Telemetry.Health.CheckTimeout)
	}
	return &Server{
		config:    cfg,
		api:       api,
		validator: opts.Validator,
		collector: opts.Metrics,
		checker:   checker,
		buildInfo: opts.BuildInfo,
		logger:    logger,
	}
}

// Start serves until ctx is cancelled or the listener fails, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	srvCfg := s.config.Server
	s.httpServer = &http.Server{
		Addr:           srvCfg.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    srvCfg.ReadTimeout,
		WriteTimeout:   srvCfg.WriteTimeout,
		IdleTimeout:    srvCfg.IdleTimeout,
		MaxHeaderBytes: srvCfg.MaxHeaderBytes,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting tailor server", "address", srvCfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight requests up
// to the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running, httpServer := s.isRunning, s.httpServer
		s.mu.RUnlock()
		if !running || httpServer == nil {
			return
		}

		timeout := s.config.Server.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.logger.Info("tailor server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether Start is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	var recorder middleware.HTTPRecorder
	if s.collector != nil {
		recorder = s.collector
	}
	route := func(pattern string, h http.Handler) {
		mux.Handle(pattern, middleware.Metrics(recorder, pattern)(h))
	}

	for _, rt := range s.api.Routes() {
		var h http.Handler = rt.Handler
		if rt.User {
			h = auth.RequireUser(h)
		}
		route(rt.Pattern, h)
	}

	hc := s.config.Telemetry.Health
	mux.Handle("GET "+hc.LivenessPath, s.checker.LivenessHandler())
	mux.Handle("GET "+hc.ReadinessPath, s.checker.ReadinessHandler())
	mux.Handle("GET /version", health.VersionHandler(s.buildInfo.Version, s.buildInfo.Commit, s.buildInfo.BuildTime))
	if s.collector != nil && s.config.Telemetry.Metrics.IsEnabled() {
		mux.Handle("GET "+s.config.Telemetry.Metrics.Path, s.collector.Handler())
	}

	// Innermost first.
	var handler http.Handler = mux
	handler = middleware.Timeout(s.config.Server.RequestTimeout)(handler)
	if s.validator != nil {
		handler = auth.Authenticate(s.validator)(handler)
	}
	handler = middleware.CORS(s.config.Server.CORS)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.ClientAddress(s.config.Server.ForwardedHops())(handler)
	handler = middleware.RequestID(handler)
	if s.collector != nil {
		handler = s.collector.InstrumentHandler(handler)
	}
	handler = middleware.Recovery(s.logger)(handler)
	return handler
}

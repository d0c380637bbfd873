// Package api exposes the dashboard HTTP surface over the tracking core:
// operation listing and inspection, diagnostics, retry derivation, and
// cancellation. Rendering is the dashboard's concern; this package only
// serves snapshots and findings.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/adtrack/adtrack/pkg/config"
	"github.com/adtrack/adtrack/pkg/diagnose"
	"github.com/adtrack/adtrack/pkg/stores"
	"github.com/adtrack/adtrack/pkg/telemetry"
	"github.com/adtrack/adtrack/pkg/tracker"
)

// Deps carries the server's collaborators. Archive is optional: when set,
// reads fall back to it for operations that predate this process.
type Deps struct {
	Tracker  *tracker.Tracker
	Retry    *tracker.RetryEngine
	Analyzer *diagnose.Analyzer
	Archive  stores.Archive
	Logger   *telemetry.Logger
	Metrics  *telemetry.Metrics
	Tracer   *telemetry.Tracer
}

// Server is the dashboard HTTP API server.
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	logger zerolog.Logger
	http   *http.Server
}

// NewServer creates a server with its routes mounted.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	var zlog zerolog.Logger
	if deps.Logger != nil {
		zlog = deps.Logger.NewComponentLogger("api").Zerolog()
	} else {
		zlog = zerolog.Nop()
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: zlog,
	}

	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(s.instrument)

	r.Route("/api", func(r chi.Router) {
		r.Get("/operations", s.handleListOperations)
		r.Route("/operations/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetOperation)
			r.Get("/logs", s.handleGetLogs)
			r.Get("/restore-points", s.handleGetRestorePoints)
			r.Get("/findings", s.handleGetFindings)
			r.Post("/retry", s.handleRetry)
			r.Post("/cancel", s.handleCancel)
		})
	})

	r.Get("/healthz", s.handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the mounted router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("HTTP API listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := s.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}

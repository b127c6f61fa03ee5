// Package worker serves the interview HTTP API.
package worker

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ddokterview/ddokterview/internal/feedback"
	"github.com/ddokterview/ddokterview/internal/interview"
	"github.com/ddokterview/ddokterview/internal/metrics"
	"github.com/ddokterview/ddokterview/internal/progress"
	"github.com/ddokterview/ddokterview/internal/worker/sse"
)

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) Ping(ctx context.Context) error { return f(ctx) }

// Config configures the HTTP service.
type Config struct {
	Addr           string
	Version        string
	MaxUploadBytes int64
}

// Deps are the domain services behind the routes.
type Deps struct {
	Interview   *interview.Service
	Tracker     *progress.Tracker
	Feedback    *feedback.Folder
	Broadcaster *sse.Broadcaster
	Metrics     *metrics.Metrics
	// Checks are pinged by the health endpoint, keyed by name.
	Checks map[string]HealthChecker
}

// Service is the HTTP front of the interview pipeline.
type Service struct {
	version        string
	maxUploadBytes int64

	interview      *interview.Service
	tracker        *progress.Tracker
	feedback       *feedback.Folder
	sseBroadcaster *sse.Broadcaster
	metrics        *metrics.Metrics
	checks         map[string]HealthChecker

	router    *chi.Mux
	server    *http.Server
	startTime time.Time
	ready     atomic.Bool
}

// NewService wires the routes.
func NewService(cfg Config, deps Deps) *Service {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 64 << 20
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = sse.NewBroadcaster()
	}
	svc := &Service{
		version:        cfg.Version,
		maxUploadBytes: cfg.MaxUploadBytes,
		interview:      deps.Interview,
		tracker:        deps.Tracker,
		feedback:       deps.Feedback,
		sseBroadcaster: deps.Broadcaster,
		metrics:        deps.Metrics,
		checks:         deps.Checks,
		router:         chi.NewRouter(),
		startTime:      time.Now(),
	}
	svc.setupRoutes()
	svc.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           svc.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return svc
}

// Handler returns the root handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) setupRoutes() {
	s.router.Use(requestID)
	s.router.Use(s.accessLog)
	s.router.Use(recoverer)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/version", s.handleVersion)
	s.router.Handle("/metrics", s.metrics.Handler())
	s.router.Get("/api/events", s.sseBroadcaster.HandleSSE)

	s.router.Post("/api/generate-questions", s.handleGenerateQuestions)

	s.router.Route("/api/interview", func(r chi.Router) {
		r.Post("/start", s.handleStartInterview)
		r.Post("/upload-answer", s.handleUploadAnswer)
		r.Get("/status/{sessionId}", s.handleStatus)
	})

	s.router.Post("/api/progress/{sessionId}/turns", s.handleRecordTurn)

	s.router.Route("/api/feedback/{sessionId}", func(r chi.Router) {
		r.Get("/", s.handleGetFeedback)
		r.Post("/questions/{questionNumber}", s.handleFoldFeedback)
		r.Post("/collect", s.handleCollectFeedback)
	})
}

// Start serves until the listener fails or Shutdown is called.
func (s *Service) Start() error {
	s.ready.Store(true)
	log.Info().Str("addr", s.server.Addr).Str("version", s.version).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Service) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	s.sseBroadcaster.Broadcast(map[string]string{"type": "shutdown"})
	return s.server.Shutdown(ctx)
}

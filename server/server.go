package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-fermax-cloud/coordinator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const ShutdownTimeout = 15 * time.Second

// Coordinator is the device state the HTTP API serves.
type Coordinator interface {
	GetAllDevices() coordinator.Snapshot
	GetDeviceData(deviceID string) (coordinator.DeviceSnapshot, bool)
	OpenDoor(ctx context.Context, deviceID, doorKey string) error
	Refresh(ctx context.Context) error
	Status() coordinator.Status
}

var _ Coordinator = (*coordinator.Coordinator)(nil)

// RefreshTrigger schedules an asynchronous refresh.
type RefreshTrigger interface {
	TriggerRefresh()
}

type Server struct {
	env         string // Environment (e.g., "DEV", "PROD")
	router      chi.Router
	coordinator Coordinator
	trigger     RefreshTrigger
	gatherer    prometheus.Gatherer
	logger      zerolog.Logger
}

type Option func(*Server)

func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRefreshTrigger makes POST /api/refresh asynchronous unless ?wait=true.
func WithRefreshTrigger(trigger RefreshTrigger) Option {
	return func(s *Server) {
		s.trigger = trigger
	}
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

func New(coord Coordinator, options ...Option) *Server {
	s := &Server{
		coordinator: coord,
		gatherer:    prometheus.DefaultGatherer,
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info().Str("addr", addr).Msg("http server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	_ = chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		s.logger.Info().Msgf("[%-17s] %s", colouredMethod(method), route)
		return nil
	})
}

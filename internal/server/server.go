/*
Package server implements the HTTP transport for meal plan generation.
It wires the echo router, request logging, the optional bearer-token guard
and the static front end, and runs an http.Server with graceful shutdown.
*/
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ai-diet-planner/internal/auth"
	"ai-diet-planner/internal/config"
	"ai-diet-planner/internal/metrics"
	"ai-diet-planner/internal/planner"
	"ai-diet-planner/internal/shared"

	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// MealPlanGenerator produces a structured plan for a dietary profile.
type MealPlanGenerator interface {
	GeneratePlan(ctx context.Context, req planner.MealPlanRequest) (*planner.MealPlan, shared.AgentMeta, error)
}

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	cfg     *config.Config
	planner MealPlanGenerator

	// metrics and tokens are optional.
	metrics *metrics.Store
	tokens  *auth.TokenService
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithMetrics records usage of every generation in store.
func WithMetrics(store *metrics.Store) Option {
	return func(s *Server) { s.metrics = store }
}

// WithTokenService requires a valid bearer token on plan generation.
func WithTokenService(tokens *auth.TokenService) Option {
	return func(s *Server) { s.tokens = tokens }
}

// NewServer creates a Server around a plan generator.
func NewServer(cfg *config.Config, gen MealPlanGenerator, opts ...Option) *Server {
	s := &Server{cfg: cfg, planner: gen}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HTTPServer returns a configured *http.Server. The write timeout leaves
// room for the completion call.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.cfg.LLMTimeout + 30*time.Second,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := s.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("server exited")
	return nil
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-sessions/auth"
	"github.com/jrsteele09/go-auth-sessions/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	env          string // Environment (e.g., "DEV", "PROD")
	mux          *http.ServeMux
	routes       []string
	config       config.Config
	auth         *auth.Service
	guard        *Guard
	gatherer     prometheus.Gatherer
	healthChecks map[string]HealthCheck
	logger       zerolog.Logger
}

type ServerOption func(*Server)

func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer exposes the gatherer's metrics on /metrics.
func WithGatherer(gatherer prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

// WithHealthCheck adds a dependency check to /health.
func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(s *Server) {
		s.healthChecks[name] = check
	}
}

func New(config config.Config, authService *auth.Service, verifier AccessTokenVerifier, options ...ServerOption) (*Server, error) {
	if authService == nil {
		return nil, fmt.Errorf("[Server New] auth service is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("[Server New] access token verifier is required")
	}

	s := &Server{
		env:          config.GetEnv(),
		mux:          http.NewServeMux(),
		config:       config,
		auth:         authService,
		gatherer:     prometheus.DefaultGatherer,
		healthChecks: make(map[string]HealthCheck),
		logger:       log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	s.guard = NewGuard(verifier, GuardConfig{}, WithGuardLogger(s.logger))

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	displayMethod := Gray + fmt.Sprintf(" %-7s", method) + ResetColor
	if color, ok := methodColors[method]; ok {
		displayMethod = color + fmt.Sprintf(" %-7s", method) + ResetColor
	}
	s.logger.Debug().Msgf("[%-19s] %s", displayMethod, path)
}

// Package server exposes themes, computed styles and cache metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opencode-ai/themekit/internal/metrics"
	"github.com/opencode-ai/themekit/internal/style"
	"github.com/opencode-ai/themekit/internal/theme"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// DefaultAddr is the listen address used when Options.Addr is empty.
const DefaultAddr = "127.0.0.1:9464"

const shutdownTimeout = 5 * time.Second

// Options configure the server.
type Options struct {
	Addr string

	// StyleOptions returns the generator options for a component. Required.
	StyleOptions func(component string) style.Options

	// Limiter throttles the API routes. Default: NewRateLimiter().
	Limiter *RateLimiter
}

// Server serves the registry and style factory.
type Server struct {
	registry *theme.Registry
	factory  *style.Factory
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
	opts     Options
	handler  http.Handler
}

// New constructs a server. gatherer backs /metrics.
func New(registry *theme.Registry, factory *style.Factory, gatherer prometheus.Gatherer, logger zerolog.Logger, opts Options) (*Server, error) {
	if registry == nil || factory == nil {
		return nil, errors.New("registry and factory are required")
	}
	if gatherer == nil {
		return nil, errors.New("metrics gatherer is required")
	}
	if opts.StyleOptions == nil {
		return nil, errors.New("style options are required")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Limiter == nil {
		opts.Limiter = NewRateLimiter()
	}

	s := &Server{
		registry: registry,
		factory:  factory,
		gatherer: gatherer,
		logger:   logger,
		opts:     opts,
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	limit := s.opts.Limiter.Middleware

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler(s.gatherer))

	r.With(limit(RouteThemes)).Get("/themes", s.handleListThemes)
	r.With(limit(RouteThemes)).Get("/themes/{id}", s.handleGetTheme)
	r.With(limit(RouteActivate)).Post("/themes/{id}/activate", s.handleActivate)
	r.With(limit(RouteStyles)).Get("/styles/{component}", s.handleStyle)
	return r
}

// Run listens on Options.Addr and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("bind", listener.Addr().String()).Msg("themekit server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("themekit server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	s.logger.Info().Msg("themekit server shutdown complete")
	return nil
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

type healthResponse struct {
	Status     string       `json:"status"`
	Themes     int          `json:"themes"`
	Active     string       `json:"active,omitempty"`
	Generators int          `json:"generators"`
	RateLimits []RouteStats `json:"rate_limits"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Themes:     s.registry.Len(),
		Active:     s.registry.ActiveThemeID(),
		Generators: s.factory.Len(),
		RateLimits: s.opts.Limiter.Stats(),
	})
}

type themeSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Dependencies []string `json:"dependencies,omitempty"`
	Variants     []string `json:"variants,omitempty"`
	Active       bool     `json:"active"`
}

func (s *Server) handleListThemes(w http.ResponseWriter, r *http.Request) {
	activeID := s.registry.ActiveThemeID()
	themes := s.registry.GetAll()
	out := make([]themeSummary, 0, len(themes))
	for _, th := range themes {
		out = append(out, themeSummary{
			ID:           th.ID,
			Name:         th.Name,
			Version:      th.Version,
			Dependencies: s.registry.Dependencies(th.ID),
			Variants:     th.VariantNames(),
			Active:       th.ID == activeID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	th, ok := s.registry.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeErr(w, fmt.Errorf("%w: %q", theme.ErrThemeNotFound, chi.URLParam(r, "id")))
		return
	}
	variant := r.URL.Query().Get("variant")
	if variant != "" {
		if _, ok := th.Variants[variant]; !ok {
			s.writeErr(w, fmt.Errorf("%w: theme %q has no variant %q", style.ErrUnknownVariant, th.ID, variant))
			return
		}
	}
	writeJSON(w, http.StatusOK, style.ResolveVariant(th, variant))
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.SetActiveTheme(id); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": id})
}

func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	props, err := style.ParseAssignments(query["prop"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := style.ParseAssignments(query["state"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var th *theme.ThemeDefinition
	if id := query.Get("theme"); id != "" {
		found, ok := s.registry.Get(id)
		if !ok {
			s.writeErr(w, fmt.Errorf("%w: %q", theme.ErrThemeNotFound, id))
			return
		}
		th = found
	} else {
		active, ok := s.registry.ActiveTheme()
		if !ok {
			s.writeErr(w, style.ErrNoActiveTheme)
			return
		}
		th = active
	}

	component := chi.URLParam(r, "component")
	result, err := s.factory.Compute(th, style.Request{
		Component:  component,
		Variant:    query.Get("variant"),
		Breakpoint: query.Get("breakpoint"),
		Props:      props,
		State:      state,
	}, s.opts.StyleOptions(component))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, theme.ErrThemeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, style.ErrUnknownComponent),
		errors.Is(err, style.ErrUnknownVariant),
		errors.Is(err, style.ErrUnknownBreakpoint):
		status = http.StatusBadRequest
	case errors.Is(err, style.ErrNoActiveTheme):
		status = http.StatusConflict
	default:
		s.logger.Warn().Err(err).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

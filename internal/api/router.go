// Package api serves the bridge's REST and WebSocket interface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"hubitatbridge/internal/auth"
	"hubitatbridge/internal/events"
	"hubitatbridge/internal/hubitat"
	"hubitatbridge/internal/platform"
	"hubitatbridge/internal/storage"
)

// Options holds the collaborators the API server needs
type Options struct {
	Platform      *platform.Platform
	Controllers   []*hubitat.Controller
	Events        *events.Store
	History       storage.Storage
	JWT           *auth.JWTManager
	Authenticator *auth.Authenticator
	RateLimiter   *auth.LoginRateLimiter
	WSTokens      *auth.WSTokenStore
	NoAuth        bool
	Version       string
	Logger        zerolog.Logger
}

// Server represents the API server
type Server struct {
	router *chi.Mux
	opts   Options
	authMw *auth.Middleware
	logger zerolog.Logger
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	if opts.RateLimiter == nil {
		opts.RateLimiter = auth.NewLoginRateLimiter(0, 0, 0)
	}
	if opts.WSTokens == nil {
		opts.WSTokens = auth.NewWSTokenStore()
	}

	s := &Server{
		router: chi.NewRouter(),
		opts:   opts,
		authMw: auth.NewMiddleware(opts.JWT, opts.NoAuth),
		logger: opts.Logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// Create handlers
	authHandler := NewAuthHandler(s.opts.Authenticator, s.opts.JWT, s.opts.WSTokens, s.opts.RateLimiter, s.logger)
	entityHandler := NewEntityHandler(s.opts.Platform)
	eventsHandler := NewEventsHandler(s.opts.Events, s.opts.History)
	healthHandler := NewHealthHandler(s.opts.Controllers, s.opts.Platform, s.opts.Version)
	streamHandler := NewStreamHandler(s.opts.Events, s.opts.WSTokens, s.logger)

	// Public routes
	r.Get("/api/health", healthHandler.Health)
	r.Post("/api/auth/login", authHandler.Login)

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMw.RequireAuth)

		// Auth
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Post("/api/auth/refresh", authHandler.Refresh)
		r.Get("/api/auth/me", authHandler.Me)
		r.Get("/api/auth/ws-token", authHandler.WSToken)

		// Gateways
		r.Get("/api/gateways", healthHandler.Gateways)

		// Entities
		r.Get("/api/entities", entityHandler.List)
		r.Get("/api/entities/{entityID}", entityHandler.Get)

		// Events
		r.Get("/api/events", eventsHandler.List)
		r.Get("/api/events/stream", streamHandler.Connect)
		r.Get("/api/history", eventsHandler.History)

		// Commands
		r.Group(func(r chi.Router) {
			r.Use(s.authMw.RequireAdmin)
			r.Post("/api/entities/{entityID}/turn_on", entityHandler.TurnOn)
			r.Post("/api/entities/{entityID}/turn_off", entityHandler.TurnOff)
		})
	})
}

// Router returns the chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// writeJSON writes JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes {"error": msg}
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Package api provides the REST management interface of the directory.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mextdomen/mextdomen/internal/logger"
	"github.com/mextdomen/mextdomen/pkg/api/handlers"
	"github.com/mextdomen/mextdomen/pkg/api/middleware"
	"github.com/mextdomen/mextdomen/pkg/auth"
	"github.com/mextdomen/mextdomen/pkg/directory"
)

// RouterOptions carries the optional wiring of the router.
type RouterOptions struct {
	// MetricsHandler, when set, is mounted at MetricsEndpoint.
	MetricsHandler  http.Handler
	MetricsEndpoint string
}

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// The middleware stack applies request IDs, real IP extraction, request
// logging, panic recovery, and a request timeout. Read endpoints and
// /api/login are unauthenticated; mutating endpoints require a Bearer token
// validated against tokens.
func NewRouter(service *directory.Service, tokens *auth.TokenService, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(service)
	authHandler := handlers.NewAuthHandler(service, tokens)
	userHandler := handlers.NewUserHandler(service)
	groupHandler := handlers.NewGroupHandler(service)
	ouHandler := handlers.NewOUHandler(service)
	gpoHandler := handlers.NewGPOHandler(service)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", authHandler.Login)

		// Reads - unauthenticated
		r.Get("/users", userHandler.List)
		r.Get("/users/{username}", userHandler.Get)
		r.Get("/groups", groupHandler.List)
		r.Get("/ous", ouHandler.List)
		r.Get("/gpos", gpoHandler.List)

		// Mutations - Bearer token required
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(tokens))

			r.Post("/users", userHandler.Create)
			r.Put("/users/{username}", userHandler.Update)
			r.Delete("/users/{username}", userHandler.Delete)
			r.Post("/groups", groupHandler.Create)
			r.Delete("/groups/{sam}", groupHandler.Delete)
			r.Post("/ous", ouHandler.Create)
			r.Post("/gpos", gpoHandler.Create)
		})
	})

	if opts.MetricsHandler != nil {
		endpoint := opts.MetricsEndpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.Method(http.MethodGet, endpoint, opts.MetricsHandler)
	}

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs request start at DEBUG and completion at INFO with the
// status, bytes written, and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimiddleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}

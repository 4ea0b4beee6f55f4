// Package core holds the cross-cutting pieces of the signup function: the
// error boundary, transport-neutral responses, CORS header sets, request
// validation and the chi router used when running as a local HTTP server.
package core

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// defaultRequestTimeout bounds a request served by the local server.
const defaultRequestTimeout = 29 * time.Second

// Server is the local HTTP chassis around the signup handler. In Lambda mode
// the handler is invoked directly and Server is not used.
type Server struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration

	router *chi.Mux
}

// NewServer creates a Server with an empty router.
func NewServer(logger *slog.Logger) (*Server, error) {
	if logger == nil {
		return nil, errors.New("logger must not be nil")
	}
	return &Server{
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// MountRoutes registers the middleware chain, GET /health and the signup
// handler at / and /signup for every method. The handler answers non-POST
// methods itself.
//
// Middleware order:
//  1. Recoverer      - outermost so it sees every panic.
//  2. ContextTimeout - soft deadline for the whole request.
//  3. RequestLogger  - one info/warn record per request.
func (s *Server) MountRoutes(signup http.Handler) {
	timeout := s.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(timeout))
	s.router.Use(RequestLogger(s.Logger))

	s.router.Get("/health", s.HandleHealth)
	s.router.Handle("/", signup)
	s.router.Handle("/signup", signup)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HandleHealth reports liveness. It never touches the secret store or the
// payment processor.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp, err := PrettyJSON(http.StatusOK, map[string]string{"status": "healthy"}, nil)
	if err != nil {
		Text(http.StatusInternalServerError, ErrorBody, nil).Write(w)
		return
	}
	resp.Write(w)
}

// Shutdown is called after the HTTP server has drained.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}

// Package server exposes a pagination session over HTTP/JSON for the
// browser presentation layer.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docfold/docfold/observability"
	"github.com/docfold/docfold/session"
)

// Server is the HTTP facade over one pagination session.
type Server struct {
	router  chi.Router
	session *session.Session
	log     observability.Logger
	apiKey  string
}

// New creates and configures the HTTP server. An empty apiKey leaves the
// API endpoints unauthenticated.
func New(sess *session.Session, log observability.Logger, apiKey string) *Server {
	if log == nil {
		log = observability.NopLogger{}
	}
	s := &Server{
		session: sess,
		log:     log,
		apiKey:  apiKey,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// API endpoints, authenticated when a key is configured.
	r.Group(func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(AuthMiddleware(s.apiKey))
		}

		r.Get("/api/pages", s.handlePages)
		r.Get("/api/state", s.handleState)
		r.Get("/api/report", s.handleReport)
		r.Put("/api/document", s.handleSetDocument)
		r.Post("/api/breaks", s.handleInsertBreak)
		r.Delete("/api/breaks/{index}", s.handleRemoveBreak)
		r.Post("/api/breaks/undo", s.handleUndoBreak)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

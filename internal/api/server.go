package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/MikeSquared-Agency/confide/internal/processor"
)

type Options struct {
	Port        int
	APIToken    string
	CORSOrigins []string
}

type Server struct {
	router  *chi.Mux
	handler http.Handler
	proc    *processor.Processor
	logger  *slog.Logger
	http    *http.Server
}

func NewServer(opts Options, proc *processor.Processor, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		handler: router,
		proc:    proc,
		logger:  logger,
	}

	router.Get("/health", s.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(opts.APIToken))
		r.Get("/confide/status", s.status)
		r.Get("/survey/experience", s.experienceSurvey)

		r.Post("/sessions", s.startSession)
		r.Route("/sessions/{pid}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Post("/experience", s.submitExperience)
			r.Get("/review", s.review)
			r.Put("/items/{id}/selection", s.setSelection)
			r.Post("/selection/confirm", s.confirmSelection)
			r.Put("/items/{id}/reasoning", s.setReasoning)
			r.Post("/advance", s.advance)
			r.Post("/submit", s.submit)
		})
	})

	if len(opts.CORSOrigins) > 0 {
		s.handler = cors.New(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler(router)
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, including CORS when configured.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":    "confide",
		"pipeline": s.proc.Stats(),
	})
}

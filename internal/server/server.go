// Package server exposes the job API over HTTP: submission, status
// polling and a live server-sent-events stream per job.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docsmith-io/docsmith/internal/service"
)

const shutdownGrace = 5 * time.Second

type Server struct {
	listen string
	sup    *service.Supervisor
}

func New(listen string, sup *service.Supervisor) *Server {
	return &Server{listen: listen, sup: sup}
}

// Handler builds the chi router. Split out from Run so tests can mount
// it on httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", s.handleSubmit)
		r.Get("/jobs", s.handleHistory)
		r.Get("/jobs/{id}", s.handleJob)
		r.Get("/jobs/{id}/events", s.handleEvents)
	})
	return r
}

// Run serves until ctx is cancelled, then drains connections for a
// short grace period. Running jobs are the Supervisor's concern, not
// the HTTP server's.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "listening", "addr", s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

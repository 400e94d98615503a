// Package server assembles the chi router and HTTP server for the mirror
// job API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pakmirror/pakmirror/internal/server/handlers"
	"github.com/pakmirror/pakmirror/internal/server/middleware"
	"github.com/pakmirror/pakmirror/pkg/launcher"
	"github.com/pakmirror/pakmirror/pkg/retry"
)

// Deps carries everything the API surface needs.
type Deps struct {
	Launcher *launcher.Launcher
	Retry    *retry.Engine
	Logger   *zap.Logger
	Handlers handlers.Options

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the HTTP front of the orchestrator.
type Server struct {
	host    string
	port    int
	logger  *zap.Logger
	router  chi.Router
	httpSrv *http.Server
}

func New(host string, port int, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := handlers.New(deps.Launcher, deps.Retry, logger, deps.Handlers)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.NotFound(middleware.NotFound)
	r.MethodNotAllowed(middleware.MethodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.Route("/downloads", func(r chi.Router) {
			r.Post("/", h.CreateDownload)
			r.Get("/", h.ListDownloads)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetDownload)
				r.Delete("/", h.StopDownload)
				r.Patch("/", h.DismissDownload)
				r.Post("/retry", h.RetryDownload)
			})
		})
		r.Post("/platform/mirror", h.PlatformMirror)
		r.Post("/catalog/mirror", h.CatalogMirror)
		r.Get("/logs/{name}", h.GetLogs)
		r.Get("/logs/{name}/stream", h.StreamLogs)
		r.Get("/manifests/{name}", h.GetManifest)
		r.Get("/reports/{name}", h.GetReport)
		r.Get("/components", h.ListComponents)
	})
	r.Get("/health", h.Health)
	r.Get("/version", h.Version)

	srv := &Server{
		host:   host,
		port:   port,
		logger: logger,
		router: r,
	}
	srv.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  deps.ReadTimeout,
		WriteTimeout: deps.WriteTimeout,
		IdleTimeout:  deps.IdleTimeout,
	}
	return srv
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Port returns the configured listen port.
func (s *Server) Port() int { return s.port }

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

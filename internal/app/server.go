package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/Prism/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Prism/internal/api/middlewares"
	"github.com/markdave123-py/Prism/internal/config"
	"github.com/markdave123-py/Prism/internal/core/logger"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// Routes groups the handlers the router needs.
type Routes struct {
	Chat     *handlers.ChatHandler
	Ingest   *handlers.IngestHandler
	Sessions *handlers.SessionHandler
	Cookies  *appMiddleware.Sessions
}

// NewRouter builds the chi router with every route and middleware.
func NewRouter(cfg *config.Config, routes Routes, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appMiddleware.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", handlers.Healthz)

	r.Route("/api", func(api chi.Router) {
		api.Use(routes.Cookies.Middleware)
		api.Get("/status", routes.Sessions.Status)
		api.Post("/process_files", routes.Ingest.ProcessFiles)
		api.Post("/process_youtube", routes.Ingest.ProcessYouTube)
		api.Post("/chat", routes.Chat.Chat)
		api.Post("/clear_database", routes.Sessions.Clear)
	})

	return r
}

func NewServer(cfg *config.Config, handler http.Handler, log *logger.Logger) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}
	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Package web serves the photo workspace as a JSON API with a server-sent
// events notification stream.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/site-photos/internal/cache"
	"github.com/kozaktomas/site-photos/internal/config"
	"github.com/kozaktomas/site-photos/internal/logger"
	"github.com/kozaktomas/site-photos/internal/metrics"
	"github.com/kozaktomas/site-photos/internal/preview"
	"github.com/kozaktomas/site-photos/internal/web/handlers"
	"github.com/kozaktomas/site-photos/internal/web/middleware"
	"github.com/kozaktomas/site-photos/internal/web/workspace"
	"go.uber.org/zap"
)

// Options wires the server's collaborators. Config is required; the rest
// fall back to disabled or in-memory variants.
type Options struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *metrics.Service
	Cache       *cache.Cache
	SessionRepo middleware.SessionRepository
	PinnedSites handlers.PinnedSiteStore
	CaptureDir  string
}

// Server represents the web server
type Server struct {
	config         *config.Config
	logger         *zap.Logger
	metrics        *metrics.Service
	router         *chi.Mux
	httpServer     *http.Server
	sessionManager *middleware.SessionManager
	workspaces     *workspace.Registry
	pinnedSites    handlers.PinnedSiteStore
	spoolDir       string
}

// NewServer creates a new web server
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	previews, err := preview.NewGenerator(cfg.Web.PreviewDir, log.Named("preview"))
	if err != nil {
		return nil, err
	}

	workspaces, err := workspace.NewRegistry(workspace.Options{
		BackendURL: cfg.Backend.URL,
		CaptureDir: opts.CaptureDir,
		Photos:     cfg.Photos,
		Messages:   cfg.Messages,
		Cache:      opts.Cache,
		CacheTTL:   cfg.Redis.TTL,
		Metrics:    opts.Metrics,
		Previewer:  previews,
		Logger:     log.Named("photos"),
	})
	if err != nil {
		return nil, err
	}

	sessionManager := middleware.NewSessionManager(cfg.Web.SessionSecret, opts.SessionRepo, log.Named("sessions"))
	// Logging out or expiring a session releases its staged previews.
	sessionManager.OnDelete(workspaces.Remove)

	r := chi.NewRouter()
	s := &Server{
		config:         cfg,
		logger:         log,
		metrics:        opts.Metrics,
		router:         r,
		sessionManager: sessionManager,
		workspaces:     workspaces,
		pinnedSites:    opts.PinnedSites,
		spoolDir:       filepath.Join(previews.Dir(), "spool"),
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(logger.Middleware(log.Named("http")))
	r.Use(chiMiddleware.Recoverer)
	r.Use(opts.Metrics.Middleware)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // event streams and uploads stay open
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting web server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server and releases every staged
// preview.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")

	s.sessionManager.Stop()
	// Closing the workspaces ends open event streams.
	s.workspaces.CloseAll()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/site-photos/internal/cache"
	"github.com/kozaktomas/site-photos/internal/config"
	"github.com/kozaktomas/site-photos/internal/database/postgres"
	"github.com/kozaktomas/site-photos/internal/logger"
	"github.com/kozaktomas/site-photos/internal/metrics"
	"github.com/kozaktomas/site-photos/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Site Photos web server.

Every signed-in browser session gets its own photo workspace, served as a
JSON API under /api/v1 with a server-sent events stream for notifications
and upload progress. Prometheus metrics are exposed at /metrics.

With DATABASE_URL set, sessions and pinned sites are stored in PostgreSQL;
with REDIS_URL set, report and photo-sheet lists are cached in Redis.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (defaults to WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (defaults to WEB_SESSION_SECRET)")
}

// applyServeFlags lets flags override the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if secret := mustGetString(cmd, "session-secret"); secret != "" {
		cfg.Web.SessionSecret = secret
	}
}

// openStores connects to PostgreSQL when configured. Without a database
// sessions live in memory and preferences are unavailable.
func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger, opts *web.Options) (func(), error) {
	if cfg.Database.URL == "" {
		log.Info("DATABASE_URL not set, sessions are kept in memory")
		return func() {}, nil
	}

	pool, err := postgres.Open(ctx, &cfg.Database, log.Named("postgres"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	opts.SessionRepo = postgres.NewSessionRepository(pool)
	opts.PinnedSites = postgres.NewPinnedSiteRepository(pool)
	log.Info("session persistence enabled (PostgreSQL)")

	return func() {
		if err := pool.Close(); err != nil {
			log.Warn("closing database", zap.Error(err))
		}
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	if cfg.Backend.URL == "" {
		return errors.New("SITE_API_URL environment variable is required")
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	opts := web.Options{
		Config:     cfg,
		Logger:     log,
		Metrics:    metrics.New(),
		CaptureDir: captureDir,
	}

	closeStores, err := openStores(ctx, cfg, log, &opts)
	if err != nil {
		return err
	}
	defer closeStores()

	refCache, err := cache.Connect(ctx, cfg.Redis.URL, log.Named("cache"))
	if err != nil {
		log.Warn("reference cache disabled", zap.Error(err))
		refCache = cache.New(nil, log.Named("cache"))
	}
	defer refCache.Close()
	opts.Cache = refCache

	server, err := web.NewServer(opts)
	if err != nil {
		return err
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", zap.Error(err))
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting Site Photos on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	// Start returns as soon as shutdown begins; wait for open requests.
	<-shutdownDone
	return nil
}

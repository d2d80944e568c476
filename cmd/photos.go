package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kozaktomas/site-photos/internal/cache"
	"github.com/kozaktomas/site-photos/internal/config"
	"github.com/kozaktomas/site-photos/internal/logger"
	"github.com/kozaktomas/site-photos/internal/photos"
	"github.com/kozaktomas/site-photos/internal/siteapi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var photosCmd = &cobra.Command{
	Use:   "photos",
	Short: "Work with the photos of a site",
	Long: `Commands for listing, moving, deleting and uploading the before/after
photos of one construction site.

The site defaults to SITE_ID; the backend is read from SITE_API_URL and
SITE_API_TOKEN.`,
}

func init() {
	rootCmd.AddCommand(photosCmd)
	photosCmd.PersistentFlags().String("site", "", "Site ID (defaults to SITE_ID)")
}

// terminalNotifier prints notifications, errors on stderr.
type terminalNotifier struct {
	out    io.Writer
	errOut io.Writer
}

func (n terminalNotifier) Notify(note photos.Notification) {
	if note.Level == photos.LevelError {
		fmt.Fprintf(n.errOut, "Error: %s\n", note.Message)
		return
	}
	fmt.Fprintln(n.out, note.Message)
}

// cliEnv is what every site command needs: configuration, a logger and a
// client for the site backend.
type cliEnv struct {
	cfg    *config.Config
	logger *zap.Logger
	client *siteapi.Client
	cache  *cache.Cache
	siteID string
}

func (e *cliEnv) Close() {
	if e.cache != nil {
		_ = e.cache.Close()
	}
	_ = e.logger.Sync()
}

// newCLIEnv loads the configuration and connects to the site backend.
func newCLIEnv(cmd *cobra.Command) (*cliEnv, error) {
	cfg := config.Load()
	if cfg.Backend.URL == "" {
		return nil, errors.New("SITE_API_URL environment variable is required")
	}
	if cfg.Backend.Token == "" {
		return nil, errors.New("SITE_API_TOKEN environment variable is required")
	}

	siteID := mustGetString(cmd, "site")
	if siteID == "" {
		siteID = cfg.Backend.SiteID
	}
	if siteID == "" {
		return nil, errors.New("no site given: use --site or set SITE_ID")
	}

	// Keep the terminal for results unless a level was asked for.
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Log.Level = "warn"
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	var opts []siteapi.Option
	if captureDir != "" {
		opts = append(opts, siteapi.WithCaptureDir(captureDir))
	}
	client, err := siteapi.NewClient(cfg.Backend.URL, cfg.Backend.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create site API client: %w", err)
	}

	return &cliEnv{cfg: cfg, logger: log, client: client, siteID: siteID}, nil
}

// referenceSource returns the backend's reference lists, cached in Redis
// when REDIS_URL is set.
func (e *cliEnv) referenceSource(ctx context.Context) photos.ReferenceSource {
	c, err := cache.Connect(ctx, e.cfg.Redis.URL, e.logger.Named("cache"))
	if err != nil {
		e.logger.Warn("reference cache disabled", zap.Error(err))
		return e.client
	}
	e.cache = c
	return cache.NewReferenceSource(e.client, c, e.cfg.Redis.TTL, e.cfg.Backend.Token, nil)
}

// newSession creates a photo session reporting to the terminal. The
// session is not started.
func (e *cliEnv) newSession(cmd *cobra.Command, opts photos.Options) (*photos.Session, error) {
	opts.SiteID = e.siteID
	opts.PageSize = e.cfg.Photos.PageSize
	opts.Concurrency = e.cfg.Photos.Concurrency
	opts.Backend = e.client
	opts.Logger = e.logger.Named("photos")
	opts.Messages = e.cfg.Messages
	if opts.Notifier == nil {
		opts.Notifier = terminalNotifier{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
	}
	return photos.NewSession(opts)
}

// photoLink renders a photo id, as a terminal hyperlink when the admin
// domain is configured.
func (e *cliEnv) photoLink(photoID string) string {
	if link := e.cfg.Backend.PhotoURL(e.siteID, photoID); link != "" {
		return link
	}
	return photoID
}

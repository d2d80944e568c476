// Package workspace keeps one photo session per signed-in web session.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/site-photos/internal/cache"
	"github.com/kozaktomas/site-photos/internal/config"
	"github.com/kozaktomas/site-photos/internal/metrics"
	"github.com/kozaktomas/site-photos/internal/photos"
	"github.com/kozaktomas/site-photos/internal/siteapi"
	"go.uber.org/zap"
)

// startTimeout bounds the first fetch of a new workspace.
const startTimeout = 30 * time.Second

// Identity names the owner of a workspace.
type Identity struct {
	SessionID string
	Token     string
	SiteID    string
}

// Workspace is the photo state of one web session.
type Workspace struct {
	ID        string
	Session   *photos.Session
	Events    *Broadcaster
	Reference *cache.ReferenceSource
}

// Options configures a Registry. BackendURL is required.
type Options struct {
	BackendURL string
	CaptureDir string
	Photos     config.PhotosConfig
	Messages   *config.Messages
	Cache      *cache.Cache
	CacheTTL   time.Duration
	Metrics    *metrics.Service
	Previewer  photos.Previewer
	Logger     *zap.Logger
}

// Registry holds the workspaces of all signed-in sessions.
type Registry struct {
	opts  Options
	mu    sync.Mutex
	items map[string]*Workspace
}

func NewRegistry(opts Options) (*Registry, error) {
	if opts.BackendURL == "" {
		return nil, errors.New("backend URL is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Cache == nil {
		opts.Cache = cache.New(nil, opts.Logger)
	}
	return &Registry{opts: opts, items: make(map[string]*Workspace)}, nil
}

// Get returns the workspace of id, creating and starting it on first use.
func (r *Registry) Get(ctx context.Context, id Identity) (*Workspace, error) {
	r.mu.Lock()
	if ws, ok := r.items[id.SessionID]; ok {
		r.mu.Unlock()
		return ws, nil
	}
	ws, err := r.build(id)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.items[id.SessionID] = ws
	r.opts.Metrics.SetActiveSessions(len(r.items))
	r.mu.Unlock()

	startCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), startTimeout)
	defer cancel()
	if err := ws.Session.Start(startCtx); err != nil {
		// The failure is already in the workspace's error slot.
		r.opts.Logger.Warn("initial photo fetch failed",
			zap.String("site_id", id.SiteID), zap.Error(err))
	}
	return ws, nil
}

func (r *Registry) build(id Identity) (*Workspace, error) {
	if id.SessionID == "" || id.SiteID == "" {
		return nil, errors.New("session and site are required")
	}

	var clientOpts []siteapi.Option
	if r.opts.CaptureDir != "" {
		clientOpts = append(clientOpts, siteapi.WithCaptureDir(r.opts.CaptureDir))
	}
	client, err := siteapi.NewClient(r.opts.BackendURL, id.Token, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating site API client: %w", err)
	}

	// A nil *metrics.Service must not become a non-nil interface.
	var (
		observer photos.Observer
		recorder cache.LookupRecorder
	)
	if r.opts.Metrics != nil {
		observer = r.opts.Metrics
		recorder = r.opts.Metrics
	}

	events := NewBroadcaster()
	ref := cache.NewReferenceSource(client, r.opts.Cache, r.opts.CacheTTL, id.Token, recorder)
	session, err := photos.NewSession(photos.Options{
		SiteID:           id.SiteID,
		PageSize:         r.opts.Photos.PageSize,
		Concurrency:      r.opts.Photos.Concurrency,
		Backend:          client,
		Reference:        ref,
		Previewer:        r.opts.Previewer,
		Notifier:         events,
		Observer:         observer,
		Logger:           r.opts.Logger,
		Messages:         r.opts.Messages,
		OnUploadProgress: events.Progress,
	})
	if err != nil {
		return nil, fmt.Errorf("creating photo session: %w", err)
	}

	return &Workspace{
		ID:        id.SessionID,
		Session:   session,
		Events:    events,
		Reference: ref,
	}, nil
}

// Lookup returns an existing workspace without creating one.
func (r *Registry) Lookup(sessionID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.items[sessionID]
	return ws, ok
}

// Remove closes and forgets the workspace of a session. Staged previews
// are released.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	ws, ok := r.items[sessionID]
	delete(r.items, sessionID)
	r.opts.Metrics.SetActiveSessions(len(r.items))
	r.mu.Unlock()

	if ok {
		r.closeWorkspace(ws)
	}
}

// CloseAll closes every workspace.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*Workspace)
	r.opts.Metrics.SetActiveSessions(0)
	r.mu.Unlock()

	for _, ws := range items {
		r.closeWorkspace(ws)
	}
}

// Len returns the number of open workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Registry) closeWorkspace(ws *Workspace) {
	if err := ws.Session.Close(); err != nil {
		r.opts.Logger.Warn("could not release staged previews",
			zap.String("site_id", ws.Session.SiteID()), zap.Error(err))
	}
	ws.Events.Close()
}

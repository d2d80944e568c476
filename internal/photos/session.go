// Package photos is the photo workspace of one construction site: the
// filtered and paginated collection, the selection, batch move and delete,
// upload staging with local previews, and the read-only reference lists.
//
// A Session is safe for concurrent use. Backend calls run without holding
// the session lock; results are applied afterwards, and a collection
// response is discarded when a newer fetch was issued in the meantime.
package photos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/site-photos/internal/config"
	"github.com/kozaktomas/site-photos/internal/constants"
	"github.com/kozaktomas/site-photos/internal/siteapi"
)

// Backend is the part of the site API the workspace changes data through.
type Backend interface {
	ListPhotos(ctx context.Context, q siteapi.PhotoQuery) (*siteapi.PhotoPage, error)
	UpdatePhotoClassification(ctx context.Context, photoID string, c siteapi.Classification) error
	DeletePhoto(ctx context.Context, photoID string) error
	UploadPhoto(ctx context.Context, u siteapi.PhotoUpload) (*siteapi.Photo, error)
}

// UploadProgress is reported after every uploaded file.
type UploadProgress struct {
	Done     int
	Total    int
	FileName string
}

// Options configures a Session. SiteID and Backend are required.
type Options struct {
	SiteID      string
	PageSize    int
	Concurrency int

	Backend Backend
	// Reference defaults to Backend when it implements ReferenceSource.
	Reference ReferenceSource
	Previewer Previewer
	Notifier  Notifier
	Observer  Observer
	Logger    *zap.Logger
	Messages  *config.Messages

	OnUploadProgress func(UploadProgress)
}

// Session is the photo workspace state of one user for one site.
type Session struct {
	siteID      string
	concurrency int

	backend    Backend
	notifier   Notifier
	observer   Observer
	logger     *zap.Logger
	messages   *config.Messages
	onProgress func(UploadProgress)

	reports     *refLoader[siteapi.Report]
	photoSheets *refLoader[siteapi.PhotoSheet]

	mu        sync.Mutex
	filter    Filter
	store     *Store
	selection *Selection
	staging   *Staging
	form      UploadForm
	panel     PanelState
	uploadErr string
	uploading bool
	closed    bool
}

// NewSession creates a workspace. Nothing is fetched until Start or Fetch.
func NewSession(opts Options) (*Session, error) {
	if opts.SiteID == "" {
		return nil, errors.New("site ID is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = constants.DefaultPageSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = constants.DefaultConcurrency
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Messages == nil {
		opts.Messages = config.DefaultMessages()
	}
	if opts.Reference == nil {
		if ref, ok := opts.Backend.(ReferenceSource); ok {
			opts.Reference = ref
		}
	}

	s := &Session{
		siteID:      opts.SiteID,
		concurrency: opts.Concurrency,
		backend:     opts.Backend,
		notifier:    opts.Notifier,
		observer:    opts.Observer,
		logger:      opts.Logger.With(zap.String("site_id", opts.SiteID)),
		messages:    opts.Messages,
		onProgress:  opts.OnUploadProgress,
		filter:      DefaultFilter(),
		store:       NewStore(opts.PageSize),
		selection:   NewSelection(),
		staging:     NewStaging(opts.Previewer),
		panel:       PanelClosed,
	}

	reportsFn := func(context.Context, string) ([]siteapi.Report, error) { return nil, nil }
	sheetsFn := func(context.Context, string) ([]siteapi.PhotoSheet, error) { return nil, nil }
	if opts.Reference != nil {
		reportsFn = opts.Reference.ListReports
		sheetsFn = opts.Reference.ListPhotoSheets
	}
	s.reports = newRefLoader("reports", reportsFn, s.logger)
	s.photoSheets = newRefLoader("photo_sheets", sheetsFn, s.logger)

	return s, nil
}

// SiteID returns the site the session works on.
func (s *Session) SiteID() string { return s.siteID }

// Start loads the reference lists and the first page of photos.
func (s *Session) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Go(func() { s.RefreshReference(ctx) })
	err := s.Fetch(ctx, 1)
	wg.Wait()
	return err
}

// RefreshReference reloads the reports and photo sheets concurrently.
func (s *Session) RefreshReference(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Go(func() { s.reports.Load(ctx, s.siteID) })
	wg.Go(func() { s.photoSheets.Load(ctx, s.siteID) })
	wg.Wait()
}

// Reports returns the reports photos can be attached to.
func (s *Session) Reports() []siteapi.Report {
	items, _ := s.reports.State()
	return items
}

// PhotoSheets returns the generated photo sheets of the site.
func (s *Session) PhotoSheets() []siteapi.PhotoSheet {
	items, _ := s.photoSheets.State()
	return items
}

// Fetch loads one page of the collection with the current filter. A page
// below 1 is treated as 1. It returns ErrStaleResponse when a newer fetch
// superseded this one.
func (s *Session) Fetch(ctx context.Context, page int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	ticket, query := s.beginFetchLocked(page)
	s.mu.Unlock()

	return s.fetch(ctx, ticket, query, true)
}

func (s *Session) beginFetchLocked(page int) (uint64, siteapi.PhotoQuery) {
	if page < 1 {
		page = 1
	}
	return s.store.begin(), s.filter.Query(s.siteID, page, s.store.PageSize())
}

func (s *Session) fetch(ctx context.Context, ticket uint64, query siteapi.PhotoQuery, clamp bool) error {
	start := time.Now()
	result, err := s.backend.ListPhotos(ctx, query)
	elapsed := time.Since(start)

	s.mu.Lock()
	if err != nil {
		message := s.messages.TranslateFetch(rawMessage(err))
		if !s.store.fail(ticket, query.Page, message) {
			s.mu.Unlock()
			s.observer.ObserveFetch(OutcomeStale, elapsed)
			return ErrStaleResponse
		}
		s.selection.Clear()
		s.mu.Unlock()

		s.observer.ObserveFetch(OutcomeError, elapsed)
		s.logger.Warn("could not fetch photos", zap.Int("page", query.Page), zap.Error(err))
		return fmt.Errorf("could not fetch photos: %w", err)
	}

	// the requested page no longer exists, e.g. after deleting the last page
	if totalPages := result.Pagination.TotalPages; clamp && totalPages >= 1 && query.Page > totalPages {
		if !s.store.current(ticket) {
			s.mu.Unlock()
			s.observer.ObserveFetch(OutcomeStale, elapsed)
			return ErrStaleResponse
		}
		ticket = s.store.begin()
		query.Page = totalPages
		s.mu.Unlock()
		return s.fetch(ctx, ticket, query, false)
	}

	if !s.store.apply(ticket, result) {
		s.mu.Unlock()
		s.observer.ObserveFetch(OutcomeStale, elapsed)
		return ErrStaleResponse
	}
	s.selection.Clear()
	s.mu.Unlock()

	s.observer.ObserveFetch(OutcomeSuccess, elapsed)
	s.logger.Debug("fetched photos",
		zap.Int("page", result.Pagination.Page),
		zap.Int("count", len(result.Photos)),
		zap.Int("total", result.Pagination.Total),
	)
	return nil
}

// Refresh refetches the current page without touching the filter.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	page := s.store.Pagination().Page
	s.mu.Unlock()
	return s.Fetch(ctx, page)
}

// Filter returns the current filter.
func (s *Session) Filter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetFilter replaces the filter and fetches page 1.
func (s *Session) SetFilter(ctx context.Context, f Filter) error {
	return s.updateFilter(ctx, func(Filter) Filter { return f })
}

// MergeFilter applies a partial change to the filter and fetches page 1.
func (s *Session) MergeFilter(ctx context.Context, p FilterPatch) error {
	return s.updateFilter(ctx, func(f Filter) Filter { return f.Merge(p) })
}

// ResetFilters restores the default filter and fetches page 1.
func (s *Session) ResetFilters(ctx context.Context) error {
	return s.updateFilter(ctx, func(Filter) Filter { return DefaultFilter() })
}

func (s *Session) updateFilter(ctx context.Context, change func(Filter) Filter) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	next := change(s.filter).Normalize()
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.filter = next
	ticket, query := s.beginFetchLocked(1)
	s.mu.Unlock()

	return s.fetch(ctx, ticket, query, true)
}

// Toggle flips the selection of a photo in the current collection. An
// empty id is ignored.
func (s *Session) Toggle(id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.Find(id); !ok {
		return false, fmt.Errorf("%w: %s", ErrNotInCollection, id)
	}
	return s.selection.Toggle(id), nil
}

// SelectAll selects or deselects every photo of one classification.
func (s *Session) SelectAll(c siteapi.Classification, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.SetAll(s.store.View(c), checked)
}

// AllSelected reports the select-all checkbox state of a classification.
func (s *Session) AllSelected(c siteapi.Classification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.AllSelected(s.store.View(c))
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Clear()
}

// Selected returns the selected ids in sorted order.
func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.IDs()
}

// Close releases every staged preview. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	// an in-flight submit still reads the staged files; it releases them
	// when it stops
	if s.uploading {
		return nil
	}
	s.panel = PanelClosed
	return s.staging.ClearAll()
}

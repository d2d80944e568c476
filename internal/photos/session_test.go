package photos

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/site-photos/internal/siteapi"
)

type testEnv struct {
	session   *Session
	backend   *fakeBackend
	notifier  *recordingNotifier
	previewer *countingPreviewer
}

func newTestEnv(t *testing.T, backend *fakeBackend, tweak ...func(*Options)) *testEnv {
	t.Helper()
	env := &testEnv{
		backend:   backend,
		notifier:  &recordingNotifier{},
		previewer: &countingPreviewer{},
	}
	opts := Options{
		SiteID:    "site-1",
		Backend:   backend,
		Notifier:  env.notifier,
		Previewer: env.previewer,
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	s, err := NewSession(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	env.session = s
	return env
}

func TestNewSessionRequiresSiteAndBackend(t *testing.T) {
	_, err := NewSession(Options{Backend: newFakeBackend()})
	assert.Error(t, err)
	_, err = NewSession(Options{SiteID: "s"})
	assert.Error(t, err)
}

func TestFetchFirstPageOfLargeCollection(t *testing.T) {
	backend := newFakeBackend(genPhotos("b", 250, siteapi.ClassificationBefore)...)
	env := newTestEnv(t, backend)

	before := ClassificationFilter(siteapi.ClassificationBefore)
	require.NoError(t, env.session.MergeFilter(t.Context(), FilterPatch{Classification: &before}))

	snap := env.session.Snapshot()
	assert.Len(t, snap.Photos, 120)
	for _, p := range snap.Photos {
		assert.Equal(t, siteapi.ClassificationBefore, p.Classification)
	}
	assert.Equal(t, 3, snap.Pagination.TotalPages)
	assert.Equal(t, 250, snap.Pagination.Total)
	assert.Equal(t, 1, snap.Pagination.Page)
	assert.Equal(t, siteapi.ClassificationBefore, backend.lastQuery().Classification)
}

func TestPageSizeOverride(t *testing.T) {
	backend := newFakeBackend(genPhotos("b", 25, siteapi.ClassificationBefore)...)
	env := newTestEnv(t, backend, func(o *Options) { o.PageSize = 10 })

	require.NoError(t, env.session.Fetch(t.Context(), 3))
	snap := env.session.Snapshot()
	assert.Len(t, snap.Photos, 5)
	assert.Equal(t, 10, backend.lastQuery().PageSize)
}

func TestFilterChangeResetsToFirstPage(t *testing.T) {
	backend := newFakeBackend(genPhotos("b", 30, siteapi.ClassificationBefore)...)
	env := newTestEnv(t, backend, func(o *Options) { o.PageSize = 10 })

	require.NoError(t, env.session.Fetch(t.Context(), 2))
	require.NoError(t, env.session.Refresh(t.Context()))
	assert.Equal(t, 2, backend.lastQuery().Page, "refresh keeps the page")

	report := "r1"
	require.NoError(t, env.session.MergeFilter(t.Context(), FilterPatch{ReportID: &report}))
	assert.Equal(t, 1, backend.lastQuery().Page)
	assert.Equal(t, "r1", backend.lastQuery().ReportID)

	require.NoError(t, env.session.ResetFilters(t.Context()))
	assert.Equal(t, DefaultFilter(), env.session.Filter())
	assert.Empty(t, backend.lastQuery().ReportID)
}

func TestRefreshAfterFailedFilterChangeUsesFirstPage(t *testing.T) {
	backend := newFakeBackend(genPhotos("b", 30, siteapi.ClassificationBefore)...)
	env := newTestEnv(t, backend, func(o *Options) { o.PageSize = 10 })

	require.NoError(t, env.session.Fetch(t.Context(), 3))
	assert.Equal(t, 3, backend.lastQuery().Page)

	backend.listErr = errors.New("connection refused")
	report := "r1"
	require.Error(t, env.session.MergeFilter(t.Context(), FilterPatch{ReportID: &report}))
	assert.Equal(t, 1, env.session.Snapshot().Pagination.Page)

	backend.listErr = nil
	require.NoError(t, env.session.Refresh(t.Context()))
	assert.Equal(t, 1, backend.lastQuery().Page)
	assert.Equal(t, "r1", backend.lastQuery().ReportID)
}

func TestSetFilterRejectsInvalid(t *testing.T) {
	backend := newFakeBackend()
	env := newTestEnv(t, backend)

	err := env.session.SetFilter(t.Context(), Filter{Classification: "during"})
	require.ErrorIs(t, err, ErrInvalidFilter)

	lists, _, _, _ := backend.requestCounts()
	assert.Zero(t, lists)
	assert.Equal(t, DefaultFilter(), env.session.Filter())
}

func TestFetchFailureIsTranslated(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"no records", &siteapi.APIError{Status: 406, Message: "PGRST116: no rows"}, "No photos have been registered for this site yet."},
		{"missing table", &siteapi.APIError{Status: 500, Message: `relation "site_photos" does not exist`}, "The photo table has not been set up. Please contact an administrator."},
		{"missing bucket", &siteapi.APIError{Status: 500, Message: "Bucket not found"}, "The photo storage bucket is missing. Please contact an administrator."},
		{"other", errors.New("connection refused"), "Failed to load photos: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend(genPhotos("b", 3, siteapi.ClassificationBefore)...)
			env := newTestEnv(t, backend)
			require.NoError(t, env.session.Fetch(t.Context(), 1))
			_, err := env.session.Toggle("b000")
			require.NoError(t, err)

			backend.listErr = tt.err
			err = env.session.Refresh(t.Context())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)

			snap := env.session.Snapshot()
			assert.Empty(t, snap.Photos)
			assert.Equal(t, siteapi.Counts{}, snap.Counts)
			assert.Empty(t, snap.Selected)
			assert.Equal(t, tt.wantMsg, snap.Error)
			assert.False(t, snap.Loading)

			// a later success clears the error slot
			backend.listErr = nil
			require.NoError(t, env.session.Refresh(t.Context()))
			assert.Empty(t, env.session.Snapshot().Error)
		})
	}
}

func TestLastIssuedFetchWins(t *testing.T) {
	backend := newFakeBackend(
		append(genPhotos("b", 3, siteapi.ClassificationBefore), genPhotos("a", 2, siteapi.ClassificationAfter)...)...,
	)
	env := newTestEnv(t, backend)

	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	backend.gate = func(q siteapi.PhotoQuery) {
		if q.Classification == siteapi.ClassificationBefore {
			close(slowStarted)
			<-releaseSlow
		}
	}

	var wg sync.WaitGroup
	var slowErr error
	before := ClassificationFilter(siteapi.ClassificationBefore)
	wg.Go(func() {
		slowErr = env.session.MergeFilter(context.Background(), FilterPatch{Classification: &before})
	})
	<-slowStarted

	after := ClassificationFilter(siteapi.ClassificationAfter)
	require.NoError(t, env.session.MergeFilter(t.Context(), FilterPatch{Classification: &after}))

	close(releaseSlow)
	wg.Wait()
	require.ErrorIs(t, slowErr, ErrStaleResponse)

	snap := env.session.Snapshot()
	require.Len(t, snap.Photos, 2)
	for _, p := range snap.Photos {
		assert.Equal(t, siteapi.ClassificationAfter, p.Classification)
	}
	assert.False(t, snap.Loading)
}

func TestFetchClampsPastLastPage(t *testing.T) {
	backend := newFakeBackend(genPhotos("b", 12, siteapi.ClassificationBefore)...)
	env := newTestEnv(t, backend, func(o *Options) { o.PageSize = 5 })

	require.NoError(t, env.session.Fetch(t.Context(), 7))
	snap := env.session.Snapshot()
	assert.Equal(t, 3, snap.Pagination.Page)
	assert.Len(t, snap.Photos, 2)
}

func TestFetchEmptyCollectionKeepsPageOne(t *testing.T) {
	env := newTestEnv(t, newFakeBackend())

	require.NoError(t, env.session.Fetch(t.Context(), 4))
	snap := env.session.Snapshot()
	assert.Empty(t, snap.Photos)
	assert.Equal(t, 0, snap.Pagination.TotalPages)
	assert.Equal(t, 1, snap.Pagination.Page)
	assert.Empty(t, snap.Error)
}

func TestSelectionFollowsCollection(t *testing.T) {
	backend := newFakeBackend(
		append(genPhotos("b", 3, siteapi.ClassificationBefore), genPhotos("a", 2, siteapi.ClassificationAfter)...)...,
	)
	env := newTestEnv(t, backend)
	s := env.session
	require.NoError(t, s.Fetch(t.Context(), 1))

	_, err := s.Toggle("nope")
	require.ErrorIs(t, err, ErrNotInCollection)
	selected, err := s.Toggle("")
	require.NoError(t, err)
	assert.False(t, selected)

	s.SelectAll(siteapi.ClassificationBefore, true)
	assert.True(t, s.AllSelected(siteapi.ClassificationBefore))
	assert.False(t, s.AllSelected(siteapi.ClassificationAfter))

	_, err = s.Toggle("a000")
	require.NoError(t, err)
	s.SelectAll(siteapi.ClassificationBefore, false)
	assert.Equal(t, []string{"a000"}, s.Selected())

	// every id in the selection belongs to the collection
	snap := s.Snapshot()
	for _, id := range snap.Selected {
		found := false
		for _, p := range snap.Photos {
			found = found || p.ID == id
		}
		assert.True(t, found, "selected id %s not in collection", id)
	}

	require.NoError(t, s.Refresh(t.Context()))
	assert.Empty(t, s.Selected(), "fetch clears the selection")
}

func TestReferenceLoaders(t *testing.T) {
	backend := newFakeBackend()
	backend.reports = []siteapi.Report{{ID: "r1", Title: "Daily"}}
	backend.sheets = []siteapi.PhotoSheet{{ID: "ps1", Title: "Sheet"}}
	env := newTestEnv(t, backend)

	require.NoError(t, env.session.Start(t.Context()))
	assert.Equal(t, backend.reports, env.session.Reports())
	assert.Equal(t, backend.sheets, env.session.PhotoSheets())

	backend.reportsErr = errors.New("permission denied")
	env.session.RefreshReference(t.Context())
	assert.Empty(t, env.session.Reports())
	assert.NotNil(t, env.session.Reports())
	assert.Len(t, env.session.PhotoSheets(), 1)

	snap := env.session.Snapshot()
	assert.False(t, snap.ReportsLoading)
	assert.False(t, snap.PhotoSheetsLoading)
	assert.Empty(t, snap.Error, "reference failures never reach the error slot")
	assert.Empty(t, env.notifier.byLevel(LevelError))
}

func TestReferenceWithoutSource(t *testing.T) {
	backend := &onlyBackend{fake: newFakeBackend()}
	s, err := NewSession(Options{SiteID: "s", Backend: backend})
	require.NoError(t, err)

	s.RefreshReference(t.Context())
	assert.Empty(t, s.Reports())
	assert.Empty(t, s.PhotoSheets())
}

// onlyBackend hides the reference methods of the fake.
type onlyBackend struct{ fake *fakeBackend }

func (b *onlyBackend) ListPhotos(ctx context.Context, q siteapi.PhotoQuery) (*siteapi.PhotoPage, error) {
	return b.fake.ListPhotos(ctx, q)
}

func (b *onlyBackend) UpdatePhotoClassification(ctx context.Context, id string, c siteapi.Classification) error {
	return b.fake.UpdatePhotoClassification(ctx, id, c)
}

func (b *onlyBackend) DeletePhoto(ctx context.Context, id string) error {
	return b.fake.DeletePhoto(ctx, id)
}

func (b *onlyBackend) UploadPhoto(ctx context.Context, u siteapi.PhotoUpload) (*siteapi.Photo, error) {
	return b.fake.UploadPhoto(ctx, u)
}

func TestClosedSession(t *testing.T) {
	env := newTestEnv(t, newFakeBackend())
	require.NoError(t, env.session.Close())
	require.NoError(t, env.session.Close())

	assert.ErrorIs(t, env.session.Fetch(t.Context(), 1), ErrClosed)
	assert.ErrorIs(t, env.session.Stage(t.Context(), siteapi.ClassificationBefore, []File{jpeg("a.jpg")}), ErrClosed)
}

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/site-photos/internal/siteapi"
)

type countingSource struct {
	reportCalls int
	sheetCalls  int
	err         error
}

func (s *countingSource) ListReports(ctx context.Context, siteID string) ([]siteapi.Report, error) {
	s.reportCalls++
	if s.err != nil {
		return nil, s.err
	}
	return []siteapi.Report{{ID: "r1", Title: "Report for " + siteID}}, nil
}

func (s *countingSource) ListPhotoSheets(ctx context.Context, siteID string) ([]siteapi.PhotoSheet, error) {
	s.sheetCalls++
	return []siteapi.PhotoSheet{{ID: "ps1"}}, s.err
}

type lookups struct{ hits, misses int }

func (l *lookups) RecordCacheLookup(hit bool) {
	if hit {
		l.hits++
	} else {
		l.misses++
	}
}

func TestDisabledCacheIsPassThrough(t *testing.T) {
	c := New(nil, nil)
	assert.False(t, c.Enabled())

	var v []string
	assert.ErrorIs(t, c.Get(t.Context(), "k", &v), ErrMiss)
	require.NoError(t, c.Set(t.Context(), "k", []string{"a"}, time.Minute))
	require.NoError(t, c.DeleteByPattern(t.Context(), "*"))
	require.NoError(t, c.Close())

	src := &countingSource{}
	rec := &lookups{}
	ref := NewReferenceSource(src, c, time.Minute, "token-a", rec)

	for range 2 {
		reports, err := ref.ListReports(t.Context(), "site-1")
		require.NoError(t, err)
		assert.Equal(t, "Report for site-1", reports[0].Title)
	}
	assert.Equal(t, 2, src.reportCalls)
	assert.Equal(t, lookups{}, *rec, "a disabled cache records no lookups")
	require.NoError(t, ref.Invalidate(t.Context(), "site-1"))
}

func TestReferenceSourcePropagatesErrors(t *testing.T) {
	boom := errors.New("backend down")
	ref := NewReferenceSource(&countingSource{err: boom}, New(nil, nil), time.Minute, "", nil)

	_, err := ref.ListReports(t.Context(), "s")
	assert.ErrorIs(t, err, boom)
	_, err = ref.ListPhotoSheets(t.Context(), "s")
	assert.ErrorIs(t, err, boom)
}

func TestReferenceKeysAreScopedPerCredential(t *testing.T) {
	a := credentialScope("token-a")
	b := credentialScope("token-b")

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, credentialScope("token-a"))
	assert.NotContains(t, a, "token-a")
	assert.Equal(t, "anonymous", credentialScope(""))

	key := referenceKey("site-1", a, "reports")
	assert.Equal(t, "site-photos:ref:site-1:"+a+":reports", key)
	assert.Regexp(t, "^"+keyPrefix+"site-1:", key, "site invalidation pattern covers every credential")
}

func TestConnectWithoutURL(t *testing.T) {
	c, err := Connect(t.Context(), "", nil)
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	_, err = Connect(t.Context(), "not a url", nil)
	assert.Error(t, err)
}

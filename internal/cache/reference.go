package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/site-photos/internal/photos"
	"github.com/kozaktomas/site-photos/internal/siteapi"
)

const keyPrefix = "site-photos:ref:"

// LookupRecorder counts cache hits and misses.
type LookupRecorder interface {
	RecordCacheLookup(hit bool)
}

// ReferenceSource caches the report and photo-sheet lists of another
// source. Cache errors fall through to the source. Entries are kept per
// backend credential, since the backend may show different reports to
// different users of the same site.
type ReferenceSource struct {
	source   photos.ReferenceSource
	cache    *Cache
	ttl      time.Duration
	scope    string
	recorder LookupRecorder
}

// NewReferenceSource wraps source, which calls the backend with credential.
// recorder may be nil.
func NewReferenceSource(source photos.ReferenceSource, cache *Cache, ttl time.Duration, credential string, recorder LookupRecorder) *ReferenceSource {
	return &ReferenceSource{source: source, cache: cache, ttl: ttl, scope: credentialScope(credential), recorder: recorder}
}

// credentialScope derives a key segment from a credential without storing
// the credential itself in Redis.
func credentialScope(credential string) string {
	if credential == "" {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:8])
}

func referenceKey(siteID, scope, list string) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, siteID, scope, list)
}

func (r *ReferenceSource) ListReports(ctx context.Context, siteID string) ([]siteapi.Report, error) {
	return cached(ctx, r, siteID, "reports", r.source.ListReports)
}

func (r *ReferenceSource) ListPhotoSheets(ctx context.Context, siteID string) ([]siteapi.PhotoSheet, error) {
	return cached(ctx, r, siteID, "photo-sheets", r.source.ListPhotoSheets)
}

// Invalidate drops the cached lists of one site for every credential.
func (r *ReferenceSource) Invalidate(ctx context.Context, siteID string) error {
	return r.cache.DeleteByPattern(ctx, keyPrefix+siteID+":*")
}

func cached[T any](ctx context.Context, r *ReferenceSource, siteID, list string, load func(context.Context, string) ([]T, error)) ([]T, error) {
	key := referenceKey(siteID, r.scope, list)

	var items []T
	err := r.cache.Get(ctx, key, &items)
	if err == nil {
		r.record(true)
		return items, nil
	}
	if !errors.Is(err, ErrMiss) {
		r.cache.logger.Warn("reference cache read failed", zap.String("key", key), zap.Error(err))
	}
	r.record(false)

	items, err = load(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, items, r.ttl); err != nil {
		r.cache.logger.Warn("reference cache write failed", zap.String("key", key), zap.Error(err))
	}
	return items, nil
}

func (r *ReferenceSource) record(hit bool) {
	if r.recorder != nil && r.cache.Enabled() {
		r.recorder.RecordCacheLookup(hit)
	}
}

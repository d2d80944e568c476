package photos

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kozaktomas/site-photos/internal/siteapi"
)

// ReferenceSource provides the read-only lists shown next to the photos.
type ReferenceSource interface {
	ListReports(ctx context.Context, siteID string) ([]siteapi.Report, error)
	ListPhotoSheets(ctx context.Context, siteID string) ([]siteapi.PhotoSheet, error)
}

// refLoader loads one reference list. It has its own lock so a slow load
// never blocks photo operations. Failures leave an empty list.
type refLoader[T any] struct {
	name   string
	load   func(ctx context.Context, siteID string) ([]T, error)
	logger *zap.Logger

	mu      sync.Mutex
	items   []T
	loading bool
	seq     uint64
}

func newRefLoader[T any](name string, load func(context.Context, string) ([]T, error), logger *zap.Logger) *refLoader[T] {
	return &refLoader[T]{name: name, load: load, logger: logger, items: []T{}}
}

// Load fetches the list. Only the most recent load may store its result.
func (l *refLoader[T]) Load(ctx context.Context, siteID string) {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.loading = true
	l.mu.Unlock()

	items, err := l.load(ctx, siteID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.seq {
		return
	}
	l.loading = false
	if err != nil {
		l.logger.Warn("could not load reference data",
			zap.String("list", l.name),
			zap.String("site_id", siteID),
			zap.Error(err),
		)
		l.items = []T{}
		return
	}
	if items == nil {
		items = []T{}
	}
	l.items = items
}

// State returns a copy of the items and the loading flag.
func (l *refLoader[T]) State() ([]T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out, l.loading
}

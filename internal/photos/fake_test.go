package photos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/site-photos/internal/siteapi"
)

// fakeBackend is an in-memory site backend with failure injection.
type fakeBackend struct {
	mu      sync.Mutex
	photos  []siteapi.Photo
	queries []siteapi.PhotoQuery
	updates []string
	deletes []string
	uploads []siteapi.PhotoUpload
	bodies  []string

	listErr    error
	updateErrs map[string]error
	deleteErrs map[string]error
	uploadErr  func(n int, u siteapi.PhotoUpload) error

	// gate, when set, is consulted before answering a list call and may
	// block until the test releases it
	gate func(q siteapi.PhotoQuery)

	reports    []siteapi.Report
	reportsErr error
	sheets     []siteapi.PhotoSheet
}

func newFakeBackend(photos ...siteapi.Photo) *fakeBackend {
	return &fakeBackend{
		photos:     photos,
		updateErrs: map[string]error{},
		deleteErrs: map[string]error{},
	}
}

func genPhotos(prefix string, n int, c siteapi.Classification) []siteapi.Photo {
	out := make([]siteapi.Photo, n)
	for i := range out {
		out[i] = siteapi.Photo{ID: fmt.Sprintf("%s%03d", prefix, i), Classification: c, FileName: fmt.Sprintf("%s%03d.jpg", prefix, i)}
	}
	return out
}

func (b *fakeBackend) ListPhotos(ctx context.Context, q siteapi.PhotoQuery) (*siteapi.PhotoPage, error) {
	b.mu.Lock()
	b.queries = append(b.queries, q)
	gate := b.gate
	b.mu.Unlock()

	if gate != nil {
		gate(q)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}

	var matching []siteapi.Photo
	counts := siteapi.Counts{}
	for _, p := range b.photos {
		if q.ReportID != "" && p.ReportID != q.ReportID {
			continue
		}
		if p.Classification == siteapi.ClassificationAfter {
			counts.After++
		} else {
			counts.Before++
		}
		if q.Classification != "" && p.Classification != q.Classification {
			continue
		}
		matching = append(matching, p)
	}

	limit := q.PageSize
	page := max(q.Page, 1)
	totalPages := (len(matching) + limit - 1) / limit
	start := min((page-1)*limit, len(matching))
	end := min(page*limit, len(matching))

	return &siteapi.PhotoPage{
		Photos: slices.Clone(matching[start:end]),
		Counts: counts,
		Pagination: siteapi.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      len(matching),
			TotalPages: totalPages,
		},
	}, nil
}

func (b *fakeBackend) UpdatePhotoClassification(ctx context.Context, id string, c siteapi.Classification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, id)
	if err := b.updateErrs[id]; err != nil {
		return err
	}
	for i := range b.photos {
		if b.photos[i].ID == id {
			b.photos[i].Classification = c
			return nil
		}
	}
	return &siteapi.APIError{Status: 404, Message: "photo not found"}
}

func (b *fakeBackend) DeletePhoto(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, id)
	if err := b.deleteErrs[id]; err != nil {
		return err
	}
	b.photos = slices.DeleteFunc(b.photos, func(p siteapi.Photo) bool { return p.ID == id })
	return nil
}

func (b *fakeBackend) UploadPhoto(ctx context.Context, u siteapi.PhotoUpload) (*siteapi.Photo, error) {
	data, err := io.ReadAll(u.Body)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.uploads)
	b.uploads = append(b.uploads, u)
	b.bodies = append(b.bodies, string(data))
	if b.uploadErr != nil {
		if err := b.uploadErr(n, u); err != nil {
			return nil, err
		}
	}
	p := siteapi.Photo{
		ID:             fmt.Sprintf("up%03d", len(b.photos)),
		Classification: u.Classification,
		FileName:       u.FileName,
		ReportID:       u.ReportID,
		Description:    u.Description,
	}
	b.photos = append(b.photos, p)
	return &p, nil
}

func (b *fakeBackend) ListReports(ctx context.Context, siteID string) ([]siteapi.Report, error) {
	return b.reports, b.reportsErr
}

func (b *fakeBackend) ListPhotoSheets(ctx context.Context, siteID string) ([]siteapi.PhotoSheet, error) {
	return b.sheets, nil
}

func (b *fakeBackend) requestCounts() (lists, updates, deletes, uploads int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queries), len(b.updates), len(b.deletes), len(b.uploads)
}

func (b *fakeBackend) lastQuery() siteapi.PhotoQuery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries[len(b.queries)-1]
}

// memFile is an in-memory File.
type memFile struct {
	name        string
	contentType string
	data        []byte
}

func jpeg(name string) *memFile {
	return &memFile{name: name, contentType: "image/jpeg", data: []byte("jpeg:" + name)}
}

func (f *memFile) Name() string        { return f.name }
func (f *memFile) ContentType() string { return f.contentType }
func (f *memFile) Size() int64         { return int64(len(f.data)) }
func (f *memFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// countingPreviewer hands out previews that count their releases.
type countingPreviewer struct {
	mu       sync.Mutex
	created  []*countingPreview
	failName string
	takenAt  *time.Time
}

type countingPreview struct {
	id       string
	mu       sync.Mutex
	releases int
	takenAt  *time.Time
}

func (p *countingPreview) ID() string { return p.id }

func (p *countingPreview) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases++
	return nil
}

func (p *countingPreview) TakenAt() *time.Time { return p.takenAt }

func (p *countingPreview) Dimensions() (int, int) { return 640, 480 }

func (p *countingPreview) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releases
}

func (c *countingPreviewer) Create(ctx context.Context, f File) (Preview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f.Name() == c.failName {
		return nil, fmt.Errorf("cannot decode %s", f.Name())
	}
	p := &countingPreview{id: fmt.Sprintf("preview-%d", len(c.created)), takenAt: c.takenAt}
	c.created = append(c.created, p)
	return p, nil
}

// releaseCounts returns the release count of every preview created so far.
func (c *countingPreviewer) releaseCounts() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, len(c.created))
	for i, p := range c.created {
		out[i] = p.count()
	}
	return out
}

// recordingNotifier keeps every notification.
type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) byLevel(level Level) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.items {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

// concurrencyBackend records the peak number of concurrent updates.
type concurrencyBackend struct {
	*fakeBackend

	cmu     sync.Mutex
	running int
	max     int
}

func (b *concurrencyBackend) UpdatePhotoClassification(ctx context.Context, id string, c siteapi.Classification) error {
	b.cmu.Lock()
	b.running++
	b.max = max(b.max, b.running)
	b.cmu.Unlock()

	time.Sleep(2 * time.Millisecond)

	b.cmu.Lock()
	b.running--
	b.cmu.Unlock()
	return b.fakeBackend.UpdatePhotoClassification(ctx, id, c)
}

func (b *concurrencyBackend) peak() int {
	b.cmu.Lock()
	defer b.cmu.Unlock()
	return b.max
}

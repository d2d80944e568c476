package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/site-photos/internal/siteapi"
)

// File is a local file chosen for upload.
type File interface {
	Name() string
	ContentType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// Preview is the local preview resource of a staged file. Release frees it
// and must be called exactly once.
type Preview interface {
	ID() string
	Release() error
}

// CaptureTimer is implemented by previews that could read the capture time
// of the photo.
type CaptureTimer interface {
	TakenAt() *time.Time
}

// Dimensioner is implemented by previews that decoded the image size.
type Dimensioner interface {
	Dimensions() (int, int)
}

// Previewer creates previews for staged files.
type Previewer interface {
	Create(ctx context.Context, f File) (Preview, error)
}

type idPreview string

func (p idPreview) ID() string     { return string(p) }
func (p idPreview) Release() error { return nil }

type idPreviewer struct{}

func (idPreviewer) Create(context.Context, File) (Preview, error) {
	return idPreview(uuid.NewString()), nil
}

var allowedContentTypes = map[string]bool{
	"image/jpeg":          true,
	"image/jpg":           true,
	"image/pjpeg":         true,
	"image/png":           true,
	"image/webp":          true,
	"image/gif":           true,
	"image/heic":          true,
	"image/heif":          true,
	"image/heic-sequence": true,
	"image/heif-sequence": true,
	"image/avif":          true,
	"image/tiff":          true,
	"image/bmp":           true,
	"image/x-ms-bmp":      true,
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".jfif": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".heic": true,
	".heif": true,
	".avif": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// IsAllowedImage reports whether a file may be staged, judged by its MIME
// type or, failing that, its extension.
func IsAllowedImage(name, contentType string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = strings.ToLower(mediaType)
		if allowedContentTypes[mediaType] || strings.HasPrefix(mediaType, "image/") {
			return true
		}
	}
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// StagedEntry is a staged file together with its preview.
type StagedEntry struct {
	File    File
	Preview Preview

	released bool
}

// release frees the preview once; later calls do nothing.
func (e *StagedEntry) release() error {
	if e.released || e.Preview == nil {
		return nil
	}
	e.released = true
	return e.Preview.Release()
}

// TakenAt returns the capture time read by the preview, if any.
func (e *StagedEntry) TakenAt() *time.Time {
	if ct, ok := e.Preview.(CaptureTimer); ok {
		return ct.TakenAt()
	}
	return nil
}

// Dimensions returns the image size read by the preview, zero when unknown.
func (e *StagedEntry) Dimensions() (int, int) {
	if d, ok := e.Preview.(Dimensioner); ok {
		return d.Dimensions()
	}
	return 0, 0
}

// Staging holds the files waiting for upload, one list per classification.
// It is not safe for concurrent use.
type Staging struct {
	previewer Previewer
	before    []*StagedEntry
	after     []*StagedEntry
}

// NewStaging creates empty staging lists. A nil previewer hands out
// id-only previews.
func NewStaging(previewer Previewer) *Staging {
	if previewer == nil {
		previewer = idPreviewer{}
	}
	return &Staging{previewer: previewer}
}

func (s *Staging) list(c siteapi.Classification) *[]*StagedEntry {
	if c == siteapi.ClassificationAfter {
		return &s.after
	}
	return &s.before
}

// Stage appends files to a classification list. The batch is staged as a
// whole or not at all: one disallowed file rejects every file of the call.
func (s *Staging) Stage(ctx context.Context, c siteapi.Classification, files []File) error {
	if !c.Valid() {
		return fmt.Errorf("invalid classification %q", c)
	}
	for _, f := range files {
		if !IsAllowedImage(f.Name(), f.ContentType()) {
			return fmt.Errorf("%w: %s", ErrUnsupportedFile, f.Name())
		}
	}

	entries := make([]*StagedEntry, 0, len(files))
	for _, f := range files {
		preview, err := s.previewer.Create(ctx, f)
		if err != nil {
			var errs []error
			for _, e := range entries {
				errs = append(errs, e.release())
			}
			return errors.Join(fmt.Errorf("could not create preview for %s: %w", f.Name(), err), errors.Join(errs...))
		}
		entries = append(entries, &StagedEntry{File: f, Preview: preview})
	}

	l := s.list(c)
	*l = append(*l, entries...)
	return nil
}

// Unstage removes and releases the entry at index. An invalid index is a
// no-op and reports false.
func (s *Staging) Unstage(c siteapi.Classification, index int) (bool, error) {
	l := s.list(c)
	if index < 0 || index >= len(*l) {
		return false, nil
	}
	e := (*l)[index]
	*l = slices.Delete(*l, index, index+1)
	return true, e.release()
}

// Reorder swaps the entry at index with its neighbour in direction (-1 or
// +1). Out-of-range moves are no-ops and report false.
func (s *Staging) Reorder(c siteapi.Classification, index, direction int) bool {
	if direction != -1 && direction != 1 {
		return false
	}
	l := *s.list(c)
	target := index + direction
	if index < 0 || index >= len(l) || target < 0 || target >= len(l) {
		return false
	}
	l[index], l[target] = l[target], l[index]
	return true
}

// ClearAll removes and releases every staged entry.
func (s *Staging) ClearAll() error {
	var errs []error
	for _, e := range s.before {
		errs = append(errs, e.release())
	}
	for _, e := range s.after {
		errs = append(errs, e.release())
	}
	s.before = nil
	s.after = nil
	return errors.Join(errs...)
}

// discard removes and releases the given entries wherever they are.
func (s *Staging) discard(done []*StagedEntry) error {
	var errs []error
	for _, l := range []*[]*StagedEntry{&s.before, &s.after} {
		kept := (*l)[:0]
		for _, e := range *l {
			if slices.Contains(done, e) {
				errs = append(errs, e.release())
				continue
			}
			kept = append(kept, e)
		}
		clear((*l)[len(kept):])
		*l = kept
	}
	return errors.Join(errs...)
}

// Entries returns a copy of one classification list.
func (s *Staging) Entries(c siteapi.Classification) []*StagedEntry {
	l := *s.list(c)
	out := make([]*StagedEntry, len(l))
	copy(out, l)
	return out
}

// ordered returns every entry in submission order: before, then after.
func (s *Staging) ordered() []*StagedEntry {
	out := make([]*StagedEntry, 0, s.Len())
	out = append(out, s.before...)
	return append(out, s.after...)
}

type pendingUpload struct {
	entry          *StagedEntry
	classification siteapi.Classification
}

// pending returns every entry with its classification in submission order.
func (s *Staging) pending() []pendingUpload {
	out := make([]pendingUpload, 0, s.Len())
	for _, e := range s.before {
		out = append(out, pendingUpload{entry: e, classification: siteapi.ClassificationBefore})
	}
	for _, e := range s.after {
		out = append(out, pendingUpload{entry: e, classification: siteapi.ClassificationAfter})
	}
	return out
}

// Len returns the number of staged files across both lists.
func (s *Staging) Len() int { return len(s.before) + len(s.after) }

// PreviewByID returns the entry whose preview has the given id.
func (s *Staging) PreviewByID(id string) (*StagedEntry, bool) {
	for _, e := range s.ordered() {
		if e.Preview != nil && e.Preview.ID() == id {
			return e, true
		}
	}
	return nil, false
}

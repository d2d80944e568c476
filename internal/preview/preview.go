// Package preview generates local previews of staged photos: a small JPEG
// thumbnail and the EXIF capture time.
package preview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/site-photos/internal/constants"
	"github.com/kozaktomas/site-photos/internal/photos"
)

// ErrReleased is returned when a preview is released a second time.
var ErrReleased = errors.New("preview already released")

const thumbnailName = "thumb.jpg"

// Generator creates previews in a directory of its own.
type Generator struct {
	dir      string
	maxWidth int
	quality  int
	logger   *zap.Logger
}

// NewGenerator creates a preview generator writing below dir. An empty dir
// uses a directory under the system temp dir.
func NewGenerator(dir string, logger *zap.Logger) (*Generator, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "site-photos-previews")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("could not create preview directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		dir:      dir,
		maxWidth: constants.PreviewMaxWidth,
		quality:  constants.PreviewJPEGQuality,
		logger:   logger,
	}, nil
}

// Dir returns the directory previews are written to.
func (g *Generator) Dir() string { return g.dir }

// Create makes a preview for f. Files that cannot be decoded here (HEIC,
// AVIF) still get a preview, only without a thumbnail.
func (g *Generator) Create(ctx context.Context, f photos.File) (photos.Preview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	dir := filepath.Join(g.dir, id)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("could not create preview directory: %w", err)
	}

	p := &Preview{id: id, dir: dir, source: f}
	p.takenAt = readCaptureTime(f)

	thumbPath := filepath.Join(dir, thumbnailName)
	width, height, err := g.writeThumbnail(f, thumbPath)
	if err != nil {
		g.logger.Debug("no thumbnail for staged file",
			zap.String("file", f.Name()),
			zap.Error(err),
		)
	} else {
		p.thumbPath = thumbPath
		p.width = width
		p.height = height
	}
	return p, nil
}

func (g *Generator) writeThumbnail(f photos.File, dst string) (int, int, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, 0, err
	}
	defer rc.Close()

	img, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, fmt.Errorf("could not decode image: %w", err)
	}

	bounds := img.Bounds()
	thumb := img
	if bounds.Dx() > g.maxWidth {
		thumb = imaging.Resize(img, g.maxWidth, 0, imaging.Lanczos)
	}
	if err := imaging.Save(thumb, dst, imaging.JPEGQuality(g.quality)); err != nil {
		return 0, 0, fmt.Errorf("could not save thumbnail: %w", err)
	}
	return bounds.Dx(), bounds.Dy(), nil
}

// readCaptureTime returns the EXIF capture time, or nil when the file has
// none.
func readCaptureTime(f photos.File) *time.Time {
	rc, err := f.Open()
	if err != nil {
		return nil
	}
	defer rc.Close()

	x, err := exif.Decode(rc)
	if err != nil {
		return nil
	}
	tm, err := x.DateTime()
	if err != nil {
		return nil
	}
	return &tm
}

// Preview is a generated preview on disk.
type Preview struct {
	id        string
	dir       string
	thumbPath string
	width     int
	height    int
	takenAt   *time.Time
	source    photos.File

	mu       sync.Mutex
	released bool
}

func (p *Preview) ID() string { return p.id }

// TakenAt returns the EXIF capture time, if the file had one.
func (p *Preview) TakenAt() *time.Time { return p.takenAt }

// Dimensions returns the size of the original image, zero when it could
// not be decoded.
func (p *Preview) Dimensions() (int, int) { return p.width, p.height }

// ThumbnailPath returns the thumbnail file, if one was generated and the
// preview is still alive.
func (p *Preview) ThumbnailPath() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released || p.thumbPath == "" {
		return "", false
	}
	return p.thumbPath, true
}

// Release deletes the preview directory and, for spooled uploads, the
// spooled source.
func (p *Preview) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrReleased
	}
	p.released = true

	var errs []error
	if err := os.RemoveAll(p.dir); err != nil {
		errs = append(errs, fmt.Errorf("could not remove preview: %w", err))
	}
	if r, ok := p.source.(interface{ Remove() error }); ok {
		errs = append(errs, r.Remove())
	}
	return errors.Join(errs...)
}

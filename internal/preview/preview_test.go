package preview

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/site-photos/internal/photos"
)

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
}

func TestCreateAndReleasePreview(t *testing.T) {
	src := filepath.Join(t.TempDir(), "wall.jpg")
	writeJPEG(t, src, 1200, 600)

	gen, err := NewGenerator(t.TempDir(), nil)
	require.NoError(t, err)

	file, err := OpenDiskFile(src)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", file.ContentType())
	assert.Equal(t, "wall.jpg", file.Name())

	p, err := gen.Create(t.Context(), file)
	require.NoError(t, err)
	pv := p.(*Preview)

	w, h := pv.Dimensions()
	assert.Equal(t, 1200, w)
	assert.Equal(t, 600, h)
	assert.Nil(t, pv.TakenAt(), "generated JPEG has no EXIF")

	thumb, ok := pv.ThumbnailPath()
	require.True(t, ok)
	img, err := imaging.Open(thumb)
	require.NoError(t, err)
	assert.Equal(t, 480, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())

	require.NoError(t, pv.Release())
	_, err = os.Stat(filepath.Dir(thumb))
	assert.True(t, os.IsNotExist(err))
	_, ok = pv.ThumbnailPath()
	assert.False(t, ok)

	assert.ErrorIs(t, pv.Release(), ErrReleased)

	// the user's own file is never deleted
	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestSmallImageIsNotUpscaled(t *testing.T) {
	src := filepath.Join(t.TempDir(), "small.jpg")
	writeJPEG(t, src, 100, 80)

	gen, err := NewGenerator(t.TempDir(), nil)
	require.NoError(t, err)
	file, err := OpenDiskFile(src)
	require.NoError(t, err)

	p, err := gen.Create(t.Context(), file)
	require.NoError(t, err)
	defer p.Release()

	thumb, ok := p.(*Preview).ThumbnailPath()
	require.True(t, ok)
	img, err := imaging.Open(thumb)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestUndecodableFileStillGetsPreview(t *testing.T) {
	dir := t.TempDir()
	spooled, err := Spool(filepath.Join(dir, "spool"), "IMG_0001.HEIC", "image/heic", strings.NewReader("not really heic"))
	require.NoError(t, err)
	assert.Equal(t, "IMG_0001.HEIC", spooled.Name())
	assert.Equal(t, int64(15), spooled.Size())
	assert.True(t, photos.IsAllowedImage(spooled.Name(), spooled.ContentType()))

	gen, err := NewGenerator(filepath.Join(dir, "previews"), nil)
	require.NoError(t, err)

	p, err := gen.Create(t.Context(), spooled)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID())
	_, ok := p.(*Preview).ThumbnailPath()
	assert.False(t, ok)

	require.NoError(t, p.Release())
	_, err = os.Stat(spooled.Path())
	assert.True(t, os.IsNotExist(err), "spooled upload is removed with its preview")
}

func TestSpoolSanitizesName(t *testing.T) {
	dir := t.TempDir()
	f, err := Spool(dir, "../../etc/passwd.png", "", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "passwd.png", f.Name())
	assert.Equal(t, "image/png", f.ContentType())
	assert.Equal(t, dir, filepath.Dir(f.Path()))
	require.NoError(t, f.Remove())
	require.NoError(t, f.Remove(), "removing twice is harmless")
}

func TestOpenDiskFileSniffsUnknownExtension(t *testing.T) {
	src := filepath.Join(t.TempDir(), "photo.unknownext")
	writeJPEG(t, src, 10, 10)

	f, err := OpenDiskFile(src)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", f.ContentType())

	_, err = OpenDiskFile(t.TempDir())
	assert.Error(t, err)
	_, err = OpenDiskFile(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}

func TestCreateHonoursCancelledContext(t *testing.T) {
	gen, err := NewGenerator(t.TempDir(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = gen.Create(ctx, &DiskFile{name: "a.jpg"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeneratorWorksWithStaging(t *testing.T) {
	src := filepath.Join(t.TempDir(), "a.jpg")
	writeJPEG(t, src, 50, 50)
	file, err := OpenDiskFile(src)
	require.NoError(t, err)

	gen, err := NewGenerator(t.TempDir(), nil)
	require.NoError(t, err)

	st := photos.NewStaging(gen)
	require.NoError(t, st.Stage(t.Context(), "before", []photos.File{file}))
	require.NoError(t, st.ClearAll())

	entries, err := os.ReadDir(gen.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

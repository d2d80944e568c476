package preview

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskFile is a local file chosen for upload.
type DiskFile struct {
	path        string
	name        string
	contentType string
	size        int64
}

// OpenDiskFile describes the file at path. The content type comes from the
// extension, or from the first bytes when the extension is unknown.
func OpenDiskFile(path string) (*DiskFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("could not stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType, err = sniffContentType(path)
		if err != nil {
			return nil, err
		}
	}

	return &DiskFile{
		path:        path,
		name:        filepath.Base(path),
		contentType: contentType,
		size:        info.Size(),
	}, nil
}

func sniffContentType(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path chosen by the user
	if err != nil {
		return "", fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("could not read %s: %w", path, err)
	}
	return http.DetectContentType(head[:n]), nil
}

func (f *DiskFile) Name() string        { return f.name }
func (f *DiskFile) ContentType() string { return f.contentType }
func (f *DiskFile) Size() int64         { return f.size }
func (f *DiskFile) Path() string        { return f.path }

func (f *DiskFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// SpoolFile is a received upload copied to disk. It is deleted together
// with its preview.
type SpoolFile struct {
	DiskFile
}

// Spool copies r into a new file under dir, keeping the client's file name
// for display and its declared content type.
func Spool(dir, name, contentType string, r io.Reader) (*SpoolFile, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("could not create spool directory: %w", err)
	}

	safeName := filepath.Base(name)
	path := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(safeName)))
	out, err := os.Create(path) //nolint:gosec // name generated above
	if err != nil {
		return nil, fmt.Errorf("could not create spool file: %w", err)
	}

	size, err := io.Copy(out, r)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("could not spool %s: %w", safeName, err)
	}

	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(safeName)))
	}
	return &SpoolFile{DiskFile: DiskFile{
		path:        path,
		name:        safeName,
		contentType: contentType,
		size:        size,
	}}, nil
}

// Remove deletes the spooled copy.
func (f *SpoolFile) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not remove spool file: %w", err)
	}
	return nil
}

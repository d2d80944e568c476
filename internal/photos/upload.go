package photos

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kozaktomas/site-photos/internal/siteapi"
)

// PanelState is the state of the upload panel.
type PanelState string

const (
	PanelClosed     PanelState = "closed"
	PanelOpen       PanelState = "open"
	PanelSubmitting PanelState = "submitting"
)

// UploadForm is the metadata shared by every file of one submission.
type UploadForm struct {
	ReportID    string `json:"report_id" form:"report_id" validate:"max=64"`
	Description string `json:"description" form:"description" validate:"max=2000"`
}

// OpenUploader opens the upload panel. When seed is set, files are staged
// into that classification, as a drop onto one zone does.
func (s *Session) OpenUploader(ctx context.Context, seed *siteapi.Classification, files []File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.panel = PanelOpen
	s.uploadErr = ""
	if seed != nil && len(files) > 0 {
		return s.stageLocked(ctx, *seed, files)
	}
	return nil
}

// CancelUpload clears the form and the staged files and closes the panel.
// It is refused with ErrSubmitting while a submission is in flight.
func (s *Session) CancelUpload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploading {
		return ErrSubmitting
	}
	s.form = UploadForm{}
	s.panel = PanelClosed
	s.uploadErr = ""
	return s.staging.ClearAll()
}

// SetUploadForm replaces the report and description of the next submission.
func (s *Session) SetUploadForm(form UploadForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.form = form
	return nil
}

// Stage adds files to one classification list. A batch containing any
// non-image file is rejected whole with one notification.
func (s *Session) Stage(ctx context.Context, c siteapi.Classification, files []File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	return s.stageLocked(ctx, c, files)
}

func (s *Session) stageLocked(ctx context.Context, c siteapi.Classification, files []File) error {
	err := s.staging.Stage(ctx, c, files)
	if errors.Is(err, ErrUnsupportedFile) {
		s.notifier.Notify(Notification{Level: LevelError, Message: s.messages.Text("unsupported_file")})
	}
	return err
}

// Unstage removes the file at index and releases its preview. An invalid
// index is a no-op.
func (s *Session) Unstage(c siteapi.Classification, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	_, err := s.staging.Unstage(c, index)
	return err
}

// Reorder moves the file at index one position up (-1) or down (+1).
func (s *Session) Reorder(c siteapi.Classification, index, direction int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.staging.Reorder(c, index, direction)
	return nil
}

// ClearStaging removes every staged file and releases all previews.
func (s *Session) ClearStaging() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	return s.staging.ClearAll()
}

// StagedPreview returns the staged entry owning the preview id.
func (s *Session) StagedPreview(id string) (*StagedEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staging.PreviewByID(id)
}

func (s *Session) editableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.uploading {
		return ErrSubmitting
	}
	return nil
}

// Submit uploads every staged file, before files first, one at a time. The
// first failure stops the sequence and leaves the panel open; files already
// uploaded are unstaged so a retry sends only the rest. On success the form
// is cleared, the panel closes and page 1 is refetched. It returns the
// number of uploaded files.
func (s *Session) Submit(ctx context.Context) (int, error) {
	s.mu.Lock()
	if err := s.editableLocked(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if s.form.ReportID == "" {
		s.uploadErr = s.messages.Text("upload_missing_report")
		s.mu.Unlock()
		s.notifier.Notify(Notification{Level: LevelError, Message: s.messages.Text("upload_missing_report")})
		return 0, ErrNoReport
	}
	if s.staging.Len() == 0 {
		s.uploadErr = s.messages.Text("upload_missing_files")
		s.mu.Unlock()
		s.notifier.Notify(Notification{Level: LevelError, Message: s.messages.Text("upload_missing_files")})
		return 0, ErrNoFiles
	}

	form := s.form
	pending := s.staging.pending()
	s.uploading = true
	s.panel = PanelSubmitting
	s.uploadErr = ""
	s.mu.Unlock()

	var uploaded []*StagedEntry
	var cause error
	var failedName string
	for _, p := range pending {
		if s.isClosed() {
			break
		}
		if err := s.uploadEntry(ctx, p.entry, p.classification, form); err != nil {
			cause = err
			failedName = p.entry.File.Name()
			break
		}
		uploaded = append(uploaded, p.entry)
		if s.onProgress != nil {
			s.onProgress(UploadProgress{Done: len(uploaded), Total: len(pending), FileName: p.entry.File.Name()})
		}
	}

	s.mu.Lock()
	s.uploading = false
	if s.closed {
		releaseErr := s.staging.ClearAll()
		s.panel = PanelClosed
		s.mu.Unlock()
		return len(uploaded), errors.Join(ErrClosed, releaseErr)
	}
	if cause != nil {
		releaseErr := s.staging.discard(uploaded)
		message := s.messages.TranslateUpload(rawMessage(cause))
		s.uploadErr = message
		s.panel = PanelOpen
		s.mu.Unlock()

		s.observer.ObserveUpload(OutcomeError)
		s.logger.Warn("upload failed",
			zap.String("file", failedName),
			zap.Int("uploaded", len(uploaded)),
			zap.Int("total", len(pending)),
			zap.Error(cause),
		)
		s.notifier.Notify(Notification{Level: LevelError, Message: s.messages.Text("upload_failed", message)})
		return len(uploaded), errors.Join(fmt.Errorf("could not upload %s: %w", failedName, cause), releaseErr)
	}

	releaseErr := s.staging.ClearAll()
	s.form = UploadForm{}
	s.panel = PanelClosed
	s.mu.Unlock()

	s.observer.ObserveUpload(OutcomeSuccess)
	s.logger.Info("photos uploaded", zap.Int("count", len(uploaded)), zap.String("report_id", form.ReportID))
	s.notifier.Notify(Notification{Level: LevelSuccess, Message: s.messages.Text("upload_success", len(uploaded))})

	if err := s.Fetch(ctx, 1); err != nil && !errors.Is(err, ErrStaleResponse) {
		s.logger.Warn("could not refresh photos after upload", zap.Error(err))
	}
	if releaseErr != nil {
		return len(uploaded), fmt.Errorf("could not release previews: %w", releaseErr)
	}
	return len(uploaded), nil
}

func (s *Session) uploadEntry(ctx context.Context, e *StagedEntry, c siteapi.Classification, form UploadForm) error {
	rc, err := e.File.Open()
	if err != nil {
		return fmt.Errorf("could not open file: %w", err)
	}
	defer rc.Close()

	_, err = s.backend.UploadPhoto(ctx, siteapi.PhotoUpload{
		SiteID:         s.siteID,
		FileName:       e.File.Name(),
		ContentType:    e.File.ContentType(),
		Body:           rc,
		Classification: c,
		ReportID:       form.ReportID,
		Description:    form.Description,
		TakenAt:        e.TakenAt(),
	})
	return err
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

package photos

import (
	"time"

	"github.com/kozaktomas/site-photos/internal/siteapi"
)

// StagedFile describes a staged file for display.
type StagedFile struct {
	Index       int        `json:"index"`
	Name        string     `json:"name"`
	ContentType string     `json:"content_type"`
	Size        int64      `json:"size"`
	PreviewID   string     `json:"preview_id"`
	Width       int        `json:"width,omitempty"`
	Height      int        `json:"height,omitempty"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
}

// Snapshot is a consistent copy of the whole workspace state.
type Snapshot struct {
	SiteID       string             `json:"site_id"`
	Filter       Filter             `json:"filter"`
	Photos       []siteapi.Photo    `json:"photos"`
	BeforePhotos []siteapi.Photo    `json:"before_photos"`
	AfterPhotos  []siteapi.Photo    `json:"after_photos"`
	Counts       siteapi.Counts     `json:"counts"`
	Pagination   siteapi.Pagination `json:"pagination"`
	Error        string             `json:"error,omitempty"`

	Selected          []string `json:"selected"`
	AllBeforeSelected bool     `json:"all_before_selected"`
	AllAfterSelected  bool     `json:"all_after_selected"`
	CanMoveToBefore   bool     `json:"can_move_to_before"`
	CanMoveToAfter    bool     `json:"can_move_to_after"`

	StagedBefore []StagedFile `json:"staged_before"`
	StagedAfter  []StagedFile `json:"staged_after"`
	Form         UploadForm   `json:"form"`
	Panel        PanelState   `json:"panel"`
	UploadError  string       `json:"upload_error,omitempty"`

	Reports     []siteapi.Report     `json:"reports"`
	PhotoSheets []siteapi.PhotoSheet `json:"photo_sheets"`

	Loading            bool `json:"loading"`
	Uploading          bool `json:"uploading"`
	ReportsLoading     bool `json:"reports_loading"`
	PhotoSheetsLoading bool `json:"photo_sheets_loading"`
}

// Snapshot returns the current workspace state.
func (s *Session) Snapshot() Snapshot {
	reports, reportsLoading := s.reports.State()
	sheets, sheetsLoading := s.photoSheets.State()

	s.mu.Lock()
	defer s.mu.Unlock()

	photos := make([]siteapi.Photo, len(s.store.Photos()))
	copy(photos, s.store.Photos())
	before, after := partition(photos)

	return Snapshot{
		SiteID:       s.siteID,
		Filter:       s.filter,
		Photos:       photos,
		BeforePhotos: before,
		AfterPhotos:  after,
		Counts:       s.store.Counts(),
		Pagination:   s.store.Pagination(),
		Error:        s.store.Err(),

		Selected:          s.selection.IDs(),
		AllBeforeSelected: s.selection.AllSelected(before),
		AllAfterSelected:  s.selection.AllSelected(after),
		CanMoveToBefore:   len(s.movableLocked(siteapi.ClassificationBefore)) > 0,
		CanMoveToAfter:    len(s.movableLocked(siteapi.ClassificationAfter)) > 0,

		StagedBefore: stagedFiles(s.staging.Entries(siteapi.ClassificationBefore)),
		StagedAfter:  stagedFiles(s.staging.Entries(siteapi.ClassificationAfter)),
		Form:         s.form,
		Panel:        s.panel,
		UploadError:  s.uploadErr,

		Reports:     reports,
		PhotoSheets: sheets,

		Loading:            s.store.Loading(),
		Uploading:          s.uploading,
		ReportsLoading:     reportsLoading,
		PhotoSheetsLoading: sheetsLoading,
	}
}

func stagedFiles(entries []*StagedEntry) []StagedFile {
	out := make([]StagedFile, 0, len(entries))
	for i, e := range entries {
		f := StagedFile{
			Index:       i,
			Name:        e.File.Name(),
			ContentType: e.File.ContentType(),
			Size:        e.File.Size(),
		}
		if e.Preview != nil {
			f.PreviewID = e.Preview.ID()
		}
		f.Width, f.Height = e.Dimensions()
		if t := e.TakenAt(); t != nil {
			f.TakenAt = t
		}
		out = append(out, f)
	}
	return out
}

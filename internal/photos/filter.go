package photos

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/site-photos/internal/siteapi"
)

// ClassificationFilter is before, after or all.
type ClassificationFilter string

// ClassificationAll means no classification constraint.
const ClassificationAll ClassificationFilter = "all"

const dateLayout = "2006-01-02"

// Filter is the current collection query. Zero-value fields are unset.
type Filter struct {
	Classification ClassificationFilter `json:"classification" form:"classification" validate:"omitempty,oneof=all before after"`
	From           string               `json:"from,omitempty" form:"from" validate:"omitempty,datetime=2006-01-02"`
	To             string               `json:"to,omitempty" form:"to" validate:"omitempty,datetime=2006-01-02"`
	ReportID       string               `json:"report_id,omitempty" form:"report_id"`
	UploaderID     string               `json:"uploader_id,omitempty" form:"uploader_id"`
	Search         string               `json:"search,omitempty" form:"q"`
}

// DefaultFilter returns the initial filter, which matches every photo.
func DefaultFilter() Filter {
	return Filter{Classification: ClassificationAll}
}

// FilterPatch changes only the fields that are set.
type FilterPatch struct {
	Classification *ClassificationFilter `json:"classification,omitempty"`
	From           *string               `json:"from,omitempty"`
	To             *string               `json:"to,omitempty"`
	ReportID       *string               `json:"report_id,omitempty"`
	UploaderID     *string               `json:"uploader_id,omitempty"`
	Search         *string               `json:"search,omitempty"`
}

// Merge returns f with the patch applied.
func (f Filter) Merge(p FilterPatch) Filter {
	if p.Classification != nil {
		f.Classification = *p.Classification
	}
	if p.From != nil {
		f.From = *p.From
	}
	if p.To != nil {
		f.To = *p.To
	}
	if p.ReportID != nil {
		f.ReportID = *p.ReportID
	}
	if p.UploaderID != nil {
		f.UploaderID = *p.UploaderID
	}
	if p.Search != nil {
		f.Search = *p.Search
	}
	return f
}

// Normalize trims every field, defaults the classification to all and
// normalises the search text.
func (f Filter) Normalize() Filter {
	f.Classification = ClassificationFilter(strings.ToLower(strings.TrimSpace(string(f.Classification))))
	if f.Classification == "" {
		f.Classification = ClassificationAll
	}
	f.From = strings.TrimSpace(f.From)
	f.To = strings.TrimSpace(f.To)
	f.ReportID = strings.TrimSpace(f.ReportID)
	f.UploaderID = strings.TrimSpace(f.UploaderID)
	f.Search = NormalizeSearch(f.Search)
	return f
}

// Validate checks the classification and the date bounds.
func (f Filter) Validate() error {
	switch f.Classification {
	case ClassificationAll, ClassificationFilter(siteapi.ClassificationBefore), ClassificationFilter(siteapi.ClassificationAfter):
	default:
		return fmt.Errorf("%w: classification %q", ErrInvalidFilter, f.Classification)
	}

	var from, to time.Time
	var err error
	if f.From != "" {
		if from, err = time.Parse(dateLayout, f.From); err != nil {
			return fmt.Errorf("%w: from date %q", ErrInvalidFilter, f.From)
		}
	}
	if f.To != "" {
		if to, err = time.Parse(dateLayout, f.To); err != nil {
			return fmt.Errorf("%w: to date %q", ErrInvalidFilter, f.To)
		}
	}
	if f.From != "" && f.To != "" && to.Before(from) {
		return fmt.Errorf("%w: to date is before from date", ErrInvalidFilter)
	}
	return nil
}

// Query builds the backend request for one page. The all sentinel and unset
// fields are left out.
func (f Filter) Query(siteID string, page, pageSize int) siteapi.PhotoQuery {
	q := siteapi.PhotoQuery{
		SiteID:     siteID,
		Page:       page,
		PageSize:   pageSize,
		From:       f.From,
		To:         f.To,
		ReportID:   f.ReportID,
		UploaderID: f.UploaderID,
		Search:     f.Search,
	}
	if c := siteapi.Classification(f.Classification); c.Valid() {
		q.Classification = c
	}
	return q
}

// NormalizeSearch trims the search text, collapses inner whitespace and
// brings it to NFC so composed and decomposed input match the same photos.
func NormalizeSearch(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

package siteapi

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Classification tags a photo as taken before or after the work.
type Classification string

const (
	ClassificationBefore Classification = "before"
	ClassificationAfter  Classification = "after"
)

// Classifications lists the valid values in display order.
var Classifications = []Classification{ClassificationBefore, ClassificationAfter}

// Valid reports whether c is one of the two known classifications.
func (c Classification) Valid() bool {
	return c == ClassificationBefore || c == ClassificationAfter
}

// ParseClassification parses "before" or "after" (case-insensitive).
func ParseClassification(s string) (Classification, error) {
	c := Classification(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("invalid classification %q: must be before or after", s)
	}
	return c, nil
}

// Photo represents one uploaded site photo.
type Photo struct {
	ID             string         `json:"id,omitempty"`
	Classification Classification `json:"classification"`
	FileName       string         `json:"file_name"`
	URL            string         `json:"url,omitempty"`
	StoragePath    string         `json:"storage_path,omitempty"`
	WorkDate       string         `json:"work_date,omitempty"` // YYYY-MM-DD
	TakenAt        *time.Time     `json:"taken_at,omitempty"`
	UploaderID     string         `json:"uploader_id,omitempty"`
	UploaderName   string         `json:"uploader_name,omitempty"`
	ReportID       string         `json:"report_id,omitempty"`
	Description    string         `json:"description,omitempty"`
	Metadata       Metadata       `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Normalize narrows the classification to one of the two valid values.
// Unknown or missing values are treated as before.
func (p *Photo) Normalize() {
	c, err := ParseClassification(string(p.Classification))
	if err != nil {
		c = ClassificationBefore
	}
	p.Classification = c
}

// Metadata is the typed view of the free-form metadata object the backend
// stores with each photo. Only the keys the workspace renders are kept;
// values of the wrong type are dropped.
type Metadata struct {
	Component string   `json:"component,omitempty"`
	Process   string   `json:"process,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Width     int      `json:"width,omitempty"`
	Height    int      `json:"height,omitempty"`
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// null or a non-object payload carries nothing we can use
		*m = Metadata{}
		return nil //nolint:nilerr // invalid metadata is ignored, not fatal
	}
	_ = json.Unmarshal(raw["component"], &m.Component)
	_ = json.Unmarshal(raw["process"], &m.Process)
	_ = json.Unmarshal(raw["width"], &m.Width)
	_ = json.Unmarshal(raw["height"], &m.Height)

	var tags []any
	if err := json.Unmarshal(raw["tags"], &tags); err == nil {
		for _, t := range tags {
			if s, ok := t.(string); ok && s != "" {
				m.Tags = append(m.Tags, s)
			}
		}
	}
	return nil
}

// Counts holds the number of matching photos per classification.
type Counts struct {
	Before int `json:"before"`
	After  int `json:"after"`
}

// Pagination is the pagination block of the response envelope.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// PhotoPage is one page of the photo collection.
type PhotoPage struct {
	Photos     []Photo
	Counts     Counts
	Pagination Pagination
}

// PhotoQuery describes a collection request. Empty fields are not sent.
type PhotoQuery struct {
	SiteID         string
	Page           int
	PageSize       int
	Classification Classification
	From           string
	To             string
	ReportID       string
	UploaderID     string
	Search         string
}

// Values serializes the query; only set fields become constraints.
func (q PhotoQuery) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("limit", strconv.Itoa(q.PageSize))
	}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("classification", string(q.Classification))
	set("from", q.From)
	set("to", q.To)
	set("report_id", q.ReportID)
	set("uploader_id", q.UploaderID)
	set("q", q.Search)
	return v
}

// Report is a daily work report photos can be attached to.
type Report struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	WorkDate string `json:"work_date,omitempty"`
	Status   string `json:"status,omitempty"`
}

// PhotoSheet is a generated photo sheet (before/after comparison document) for a site.
type PhotoSheet struct {
	ID          string    `json:"id"`
	ReportID    string    `json:"report_id,omitempty"`
	Title       string    `json:"title"`
	PhotoCount  int       `json:"photo_count"`
	FileURL     string    `json:"file_url,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

package photos

import (
	"slices"

	"github.com/kozaktomas/site-photos/internal/siteapi"
)

// Store holds the fetched page of the photo collection. It is not safe for
// concurrent use; the Session serializes access.
type Store struct {
	pageSize   int
	photos     []siteapi.Photo
	counts     siteapi.Counts
	pagination siteapi.Pagination
	err        string

	// ticket is the number of the most recently issued fetch. Only the
	// response carrying it may be applied.
	ticket  uint64
	loading bool
}

// NewStore creates an empty store with a fixed page size.
func NewStore(pageSize int) *Store {
	return &Store{
		pageSize:   pageSize,
		pagination: siteapi.Pagination{Page: 1, Limit: pageSize},
	}
}

// begin issues a ticket for a new fetch, superseding all earlier ones.
func (s *Store) begin() uint64 {
	s.ticket++
	s.loading = true
	return s.ticket
}

func (s *Store) current(ticket uint64) bool {
	return ticket == s.ticket
}

// apply replaces the held page with a response. It reports false and changes
// nothing when the ticket has been superseded.
func (s *Store) apply(ticket uint64, page *siteapi.PhotoPage) bool {
	if !s.current(ticket) {
		return false
	}
	s.photos = page.Photos
	if s.photos == nil {
		s.photos = []siteapi.Photo{}
	}
	s.counts = page.Counts
	s.pagination = page.Pagination
	s.pagination.Limit = s.pageSize
	if s.pagination.Page < 1 || s.pagination.TotalPages == 0 {
		s.pagination.Page = 1
	}
	s.err = ""
	s.loading = false
	return true
}

// fail clears the held page and records a user-facing message. The
// requested page is kept so a refresh retries the same request.
func (s *Store) fail(ticket uint64, page int, message string) bool {
	if !s.current(ticket) {
		return false
	}
	s.pagination.Page = max(page, 1)
	s.photos = []siteapi.Photo{}
	s.counts = siteapi.Counts{}
	s.pagination.Total = 0
	s.pagination.TotalPages = 0
	s.err = message
	s.loading = false
	return true
}

// remove drops records by id, used after a confirmed delete.
func (s *Store) remove(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.photos = slices.DeleteFunc(s.photos, func(p siteapi.Photo) bool {
		if p.ID == "" || !slices.Contains(ids, p.ID) {
			return false
		}
		if p.Classification == siteapi.ClassificationAfter {
			s.counts.After = max(s.counts.After-1, 0)
		} else {
			s.counts.Before = max(s.counts.Before-1, 0)
		}
		s.pagination.Total = max(s.pagination.Total-1, 0)
		return true
	})
}

func (s *Store) PageSize() int                  { return s.pageSize }
func (s *Store) Photos() []siteapi.Photo        { return s.photos }
func (s *Store) Counts() siteapi.Counts         { return s.counts }
func (s *Store) Pagination() siteapi.Pagination { return s.pagination }
func (s *Store) Err() string                    { return s.err }
func (s *Store) Loading() bool                  { return s.loading }

// Before returns the records classified as before.
func (s *Store) Before() []siteapi.Photo {
	before, _ := partition(s.photos)
	return before
}

// After returns the records classified as after.
func (s *Store) After() []siteapi.Photo {
	_, after := partition(s.photos)
	return after
}

// View returns the records of one classification.
func (s *Store) View(c siteapi.Classification) []siteapi.Photo {
	if c == siteapi.ClassificationAfter {
		return s.After()
	}
	return s.Before()
}

// Find returns the record with the given id.
func (s *Store) Find(id string) (siteapi.Photo, bool) {
	if id == "" {
		return siteapi.Photo{}, false
	}
	for _, p := range s.photos {
		if p.ID == id {
			return p, true
		}
	}
	return siteapi.Photo{}, false
}

// partition splits records into before and after. Every record lands in
// exactly one side; anything not after counts as before.
func partition(photos []siteapi.Photo) (before, after []siteapi.Photo) {
	before = []siteapi.Photo{}
	after = []siteapi.Photo{}
	for _, p := range photos {
		if p.Classification == siteapi.ClassificationAfter {
			after = append(after, p)
		} else {
			before = append(before, p)
		}
	}
	return before, after
}

package photos

import (
	"slices"

	"github.com/kozaktomas/site-photos/internal/siteapi"
)

// Selection is the set of photo ids chosen for a bulk action. Empty ids
// never enter the set.
type Selection struct {
	ids map[string]struct{}
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// Toggle flips membership of id and reports whether it is now selected.
func (s *Selection) Toggle(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// SetAll adds or removes every identified record of the given list. Ids
// outside the list are not touched.
func (s *Selection) SetAll(records []siteapi.Photo, checked bool) {
	for _, p := range records {
		if p.ID == "" {
			continue
		}
		if checked {
			s.ids[p.ID] = struct{}{}
		} else {
			delete(s.ids, p.ID)
		}
	}
}

// AllSelected reports whether records is non-empty and each of its
// identified records is selected.
func (s *Selection) AllSelected(records []siteapi.Photo) bool {
	found := false
	for _, p := range records {
		if p.ID == "" {
			continue
		}
		if _, ok := s.ids[p.ID]; !ok {
			return false
		}
		found = true
	}
	return found
}

func (s *Selection) Clear() { clear(s.ids) }

func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) Len() int { return len(s.ids) }

// IDs returns the selected ids in sorted order.
func (s *Selection) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

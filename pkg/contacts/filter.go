package contacts

import (
	"slices"
	"strings"

	"github.com/garnizeh/contactdesk/pkg/models"
)

// Filter derives the displayed view from records: text search, then service
// filter, then a stable sort on created_at. records is not modified.
func Filter(records []models.Contact, q models.Query) []models.Contact {
	q = q.Normalize()
	needle := strings.ToLower(q.Search)

	out := make([]models.Contact, 0, len(records))
	for _, r := range records {
		if needle != "" && !matches(r, needle) {
			continue
		}
		if q.Service != models.ServiceAll && r.Service != q.Service {
			continue
		}
		out = append(out, r)
	}

	if q.SortBy == models.SortOldest {
		slices.SortStableFunc(out, func(a, b models.Contact) int { return a.CreatedAt.Compare(b.CreatedAt.Time) })
	} else {
		slices.SortStableFunc(out, func(a, b models.Contact) int { return b.CreatedAt.Compare(a.CreatedAt.Time) })
	}
	return out
}

// matches reports whether needle (already lower-cased) occurs in any
// searchable field.
func matches(r models.Contact, needle string) bool {
	fields := [...]string{r.Name, r.Email, r.Service, deref(r.Company), deref(r.Phone)}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// Services returns the distinct service labels in first-seen order, for
// building a filter menu.
func Services(records []models.Contact) []string {
	seen := make(map[string]struct{}, len(records))
	var out []string
	for _, r := range records {
		if r.Service == "" {
			continue
		}
		if _, ok := seen[r.Service]; ok {
			continue
		}
		seen[r.Service] = struct{}{}
		out = append(out, r.Service)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

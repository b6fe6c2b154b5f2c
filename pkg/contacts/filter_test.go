package contacts_test

import (
	"strings"
	"testing"
	"time"

	"github.com/garnizeh/contactdesk/pkg/contacts"
	"github.com/garnizeh/contactdesk/pkg/models"
)

func strp(s string) *string { return &s }

func at(day int) models.Timestamp {
	return models.Timestamp{Time: time.Date(2024, 3, day, 9, 0, 0, 0, time.UTC)}
}

func fixture() []models.Contact {
	return []models.Contact{
		{ID: 1, Name: "Ana Lima", Email: "ana@lima.com", Service: "Roofing", Company: strp("Lima Homes"), CreatedAt: at(2)},
		{ID: 2, Name: "Bruno", Email: "bruno@example.com", Service: "Waterproofing", Phone: strp("+1 555 0101"), CreatedAt: at(5)},
		{ID: 3, Name: "Carla", Email: "carla@example.com", Service: "Roofing", CreatedAt: at(5)},
		{ID: 4, Name: "Dan", Email: "dan@example.com", Service: "Basement Repair", Company: strp("ACME Build"), Phone: strp("555-0199"), CreatedAt: at(1)},
		{ID: 5, Name: "Eve", Email: "eve@example.com", Service: "Roofing", CreatedAt: at(5)},
	}
}

func ids(cs []models.Contact) []int64 {
	out := make([]int64, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilter_Search(t *testing.T) {
	cases := []struct {
		search string
		want   []int64
	}{
		{search: "", want: []int64{2, 3, 5, 1, 4}},
		{search: "ROOF", want: []int64{3, 5, 1}},
		{search: "acme", want: []int64{4}},
		{search: "lima", want: []int64{1}},
		{search: "0101", want: []int64{2}},
		{search: "555", want: []int64{2, 4}},
		{search: "@example.com", want: []int64{2, 3, 5, 4}},
		{search: "nobody", want: []int64{}},
	}
	for _, tc := range cases {
		got := ids(contacts.Filter(fixture(), models.Query{Search: tc.search}))
		if !equalIDs(got, tc.want) {
			t.Fatalf("search %q: want %v got %v", tc.search, tc.want, got)
		}
	}
}

// Every record in the view matches the search in some field, and every record
// left out matches in none.
func TestFilter_SearchIsExact(t *testing.T) {
	all := fixture()
	for _, s := range []string{"a", "E", "roof", "5", "build", "x"} {
		view := contacts.Filter(all, models.Query{Search: s})
		in := make(map[int64]bool)
		for _, r := range view {
			in[r.ID] = true
		}
		for _, r := range all {
			fields := []string{r.Name, r.Email, r.Service}
			if r.Company != nil {
				fields = append(fields, *r.Company)
			}
			if r.Phone != nil {
				fields = append(fields, *r.Phone)
			}
			match := false
			for _, f := range fields {
				if strings.Contains(strings.ToLower(f), strings.ToLower(s)) {
					match = true
				}
			}
			if match != in[r.ID] {
				t.Fatalf("search %q record %d: match=%v in view=%v", s, r.ID, match, in[r.ID])
			}
		}
	}
}

func TestFilter_Service(t *testing.T) {
	got := ids(contacts.Filter(fixture(), models.Query{Service: models.ServiceAll}))
	if len(got) != 5 {
		t.Fatalf("service all should keep everything, got %v", got)
	}

	got = ids(contacts.Filter(fixture(), models.Query{Service: "Roofing"}))
	if !equalIDs(got, []int64{3, 5, 1}) {
		t.Fatalf("unexpected roofing view %v", got)
	}

	// exact match only
	if got := contacts.Filter(fixture(), models.Query{Service: "roofing"}); len(got) != 0 {
		t.Fatalf("service filter must be exact, got %v", ids(got))
	}

	got = ids(contacts.Filter(fixture(), models.Query{Search: "carla", Service: "Roofing"}))
	if !equalIDs(got, []int64{3}) {
		t.Fatalf("search and service combined: %v", got)
	}
}

func TestFilter_SortStable(t *testing.T) {
	newest := ids(contacts.Filter(fixture(), models.Query{SortBy: models.SortNewest}))
	// 2, 3 and 5 share a timestamp and keep their input order
	if !equalIDs(newest, []int64{2, 3, 5, 1, 4}) {
		t.Fatalf("unexpected newest order %v", newest)
	}

	oldest := ids(contacts.Filter(fixture(), models.Query{SortBy: models.SortOldest}))
	if !equalIDs(oldest, []int64{4, 1, 2, 3, 5}) {
		t.Fatalf("unexpected oldest order %v", oldest)
	}

	view := contacts.Filter(fixture(), models.Query{SortBy: models.SortOldest})
	for i := 1; i < len(view); i++ {
		if view[i].CreatedAt.Before(view[i-1].CreatedAt.Time) {
			t.Fatalf("oldest view not non-decreasing at %d", i)
		}
	}
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	in := fixture()
	_ = contacts.Filter(in, models.Query{SortBy: models.SortOldest})
	if !equalIDs(ids(in), []int64{1, 2, 3, 4, 5}) {
		t.Fatalf("input reordered: %v", ids(in))
	}
}

func TestServices(t *testing.T) {
	got := contacts.Services(fixture())
	want := []string{"Roofing", "Waterproofing", "Basement Repair"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected services %v", got)
	}
}

func TestSummarize(t *testing.T) {
	recs := fixture()
	recs[0].IsRead = true
	recs[1].Budget = strp("$10k-$25k")
	recs[2].Budget = strp("")

	now := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	s := contacts.Summarize(recs, now)

	if s.Total != 5 || s.Unread != 4 {
		t.Fatalf("unexpected totals %#v", s)
	}
	if s.ByService["Roofing"] != 3 || s.ByService["Basement Repair"] != 1 {
		t.Fatalf("unexpected by service %#v", s.ByService)
	}
	if s.ByBudget["$10k-$25k"] != 1 || s.ByBudget["unspecified"] != 4 {
		t.Fatalf("unexpected by budget %#v", s.ByBudget)
	}
	if s.LastWeek != 5 {
		t.Fatalf("expected all 5 within the last week, got %d", s.LastWeek)
	}
	if s.NewestAt == nil || !s.NewestAt.Equal(at(5).Time) {
		t.Fatalf("unexpected newest %v", s.NewestAt)
	}

	later := contacts.Summarize(recs, now.Add(5*24*time.Hour))
	if later.LastWeek != 3 {
		t.Fatalf("expected 3 records in window ending Mar 12, got %d", later.LastWeek)
	}
}

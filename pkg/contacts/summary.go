package contacts

import (
	"time"

	"github.com/garnizeh/contactdesk/pkg/models"
)

const unspecifiedBudget = "unspecified"

// Summarize computes the dashboard counters over records as of now.
func Summarize(records []models.Contact, now time.Time) models.Summary {
	s := models.Summary{
		Total:      len(records),
		ByService:  make(map[string]int),
		ByBudget:   make(map[string]int),
		ComputedAt: now,
	}
	weekAgo := now.Add(-7 * 24 * time.Hour)

	for _, r := range records {
		if !r.IsRead {
			s.Unread++
		}
		s.ByService[r.Service]++

		budget := unspecifiedBudget
		if r.Budget != nil && *r.Budget != "" {
			budget = *r.Budget
		}
		s.ByBudget[budget]++

		if r.CreatedAt.IsZero() {
			continue
		}
		if !r.CreatedAt.Before(weekAgo) && !r.CreatedAt.After(now) {
			s.LastWeek++
		}
		if s.NewestAt == nil || r.CreatedAt.After(*s.NewestAt) {
			t := r.CreatedAt.Time
			s.NewestAt = &t
		}
	}
	return s
}

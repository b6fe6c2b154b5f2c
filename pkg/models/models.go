package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Domain models matching the admin contacts API and db/migrations/0001_init.sql

type Contact struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Company   *string   `json:"company" db:"company"`
	Phone     *string   `json:"phone" db:"phone"`
	Service   string    `json:"service" db:"service"`
	Budget    *string   `json:"budget" db:"budget"`
	Message   string    `json:"message" db:"message"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	CreatedAt Timestamp `json:"created_at" db:"created_at"`
}

type User struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Admin is the stored form of a User, used by the development API.
type Admin struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	IsAdmin      bool   `json:"is_admin" db:"is_admin"`
	Updated      int64  `json:"updated" db:"updated"`
}

func (a Admin) User() User {
	return User{ID: a.ID, Name: a.Name, Email: a.Email, IsAdmin: a.IsAdmin}
}

type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// ServiceAll disables the service filter.
const ServiceAll = "all"

// Query holds the search, filter and sort parameters for a contact listing.
type Query struct {
	Search  string    `json:"search"`
	Service string    `json:"service"`
	SortBy  SortOrder `json:"sort"`
}

// Normalize fills the defaults: all services, newest first.
func (q Query) Normalize() Query {
	if q.Service == "" {
		q.Service = ServiceAll
	}
	if q.SortBy != SortOldest {
		q.SortBy = SortNewest
	}
	return q
}

// Summary is the dashboard view over a contact collection.
type Summary struct {
	Total      int            `json:"total"`
	Unread     int            `json:"unread"`
	LastWeek   int            `json:"last_week"`
	ByService  map[string]int `json:"by_service"`
	ByBudget   map[string]int `json:"by_budget"`
	NewestAt   *time.Time     `json:"newest_at,omitempty"`
	ComputedAt time.Time      `json:"computed_at"`
}

// Timestamp decodes the formats the contacts backend emits for created_at.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("created_at: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}

	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

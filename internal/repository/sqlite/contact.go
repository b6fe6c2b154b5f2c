package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garnizeh/contactdesk/pkg/models"
)

const contactColumns = `id, name, email, company, phone, service, budget, message, is_read, created_at`

func (r *SQLiteRepo) CreateContact(ctx context.Context, c *models.Contact) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("contact is nil")
	}

	created := c.CreatedAt.Time
	if created.IsZero() {
		created = time.Now()
	}

	res, err := r.conn.Exec(ctx,
		`INSERT INTO contacts (name, email, company, phone, service, budget, message, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Email, nullable(c.Company), nullable(c.Phone), c.Service, nullable(c.Budget), c.Message, boolInt(c.IsRead), created.UTC().UnixMilli())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetContact(ctx context.Context, id int64) (*models.Contact, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ListContacts applies the listing query in SQL. Ties on created_at keep
// insertion order.
func (r *SQLiteRepo) ListContacts(ctx context.Context, q models.Query) ([]models.Contact, error) {
	q = q.Normalize()

	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		where = append(where, `(lower(name) LIKE ? ESCAPE '\' OR lower(email) LIKE ? ESCAPE '\' OR lower(service) LIKE ? ESCAPE '\' OR lower(coalesce(company, '')) LIKE ? ESCAPE '\' OR lower(coalesce(phone, '')) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like, like, like)
	}
	if q.Service != models.ServiceAll {
		where = append(where, `service = ?`)
		args = append(args, q.Service)
	}

	query := `SELECT ` + contactColumns + ` FROM contacts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	if q.SortBy == models.SortOldest {
		query += ` ORDER BY created_at ASC, id ASC`
	} else {
		query += ` ORDER BY created_at DESC, id ASC`
	}

	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) DeleteContact(ctx context.Context, id int64) (bool, error) {
	res, err := r.conn.Exec(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SQLiteRepo) DeleteContacts(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := r.conn.Exec(ctx, `DELETE FROM contacts WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepo) SetRead(ctx context.Context, id int64, read bool) (bool, error) {
	res, err := r.conn.Exec(ctx, `UPDATE contacts SET is_read = ? WHERE id = ?`, boolInt(read), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SQLiteRepo) CountContacts(ctx context.Context) (int64, error) {
	var n int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM contacts`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(s scanner) (*models.Contact, error) {
	var (
		c                      models.Contact
		company, phone, budget sql.NullString
		isRead                 int
		created                int64
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Email, &company, &phone, &c.Service, &budget, &c.Message, &isRead, &created); err != nil {
		return nil, err
	}
	c.Company = optional(company)
	c.Phone = optional(phone)
	c.Budget = optional(budget)
	c.IsRead = isRead != 0
	c.CreatedAt = models.Timestamp{Time: time.UnixMilli(created).UTC()}
	return &c, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func optional(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

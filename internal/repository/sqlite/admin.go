package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/contactdesk/pkg/models"
)

func (r *SQLiteRepo) CreateAdmin(ctx context.Context, a *models.Admin) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("admin is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO admins (name, email, password_hash, is_admin, updated) VALUES (?, ?, ?, ?, ?)`,
		a.Name, a.Email, a.PasswordHash, boolInt(a.IsAdmin), now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	return r.getAdmin(ctx, `SELECT id, name, email, password_hash, is_admin, updated FROM admins WHERE email = ?`, email)
}

func (r *SQLiteRepo) GetAdminByID(ctx context.Context, id int64) (*models.Admin, error) {
	return r.getAdmin(ctx, `SELECT id, name, email, password_hash, is_admin, updated FROM admins WHERE id = ?`, id)
}

func (r *SQLiteRepo) getAdmin(ctx context.Context, query string, arg any) (*models.Admin, error) {
	row := r.conn.QueryRow(ctx, query, arg)
	var (
		a       models.Admin
		isAdmin int
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &isAdmin, &a.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}
	a.IsAdmin = isAdmin != 0

	return &a, nil
}

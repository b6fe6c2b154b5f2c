package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
)

// RevokeToken stores jti until expires (unix milliseconds).
func (r *SQLiteRepo) RevokeToken(ctx context.Context, jti string, expires int64) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO revoked_tokens (jti, expires) VALUES (?, ?) ON CONFLICT(jti) DO UPDATE SET expires = excluded.expires`, jti, expires)
	return err
}

func (r *SQLiteRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var one int
	err := r.conn.QueryRow(ctx, `SELECT 1 FROM revoked_tokens WHERE jti = ?`, jti).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *SQLiteRepo) PurgeExpired(ctx context.Context, now int64) (int64, error) {
	res, err := r.conn.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires <= ?`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if n > 0 {
		r.logger.Debug("sqlite: purged revoked tokens", slog.Int64("count", n))
	}
	return n, err
}

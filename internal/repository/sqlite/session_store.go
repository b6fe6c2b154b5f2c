package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/contactdesk/internal/db"
)

const upsertSession = `INSERT INTO session_store (key, value, updated) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated = excluded.updated`

// SessionStore persists the admin session keys in the session_store table so
// a restarted panel keeps its login.
type SessionStore struct {
	conn *db.DB
}

func NewSessionStore(conn *db.DB) *SessionStore {
	return &SessionStore{conn: conn}
}

func (s *SessionStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.conn.QueryRow(ctx, `SELECT value FROM session_store WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SessionStore) Set(ctx context.Context, key, value string) error {
	_, err := s.conn.Exec(ctx, upsertSession, key, value, now())
	return err
}

// SetAll upserts every key in one transaction.
func (s *SessionStore) SetAll(ctx context.Context, kv map[string]string) error {
	at := now()
	return s.conn.WithTx(ctx, func(tx *sql.Tx) error {
		for k, v := range kv {
			if _, err := tx.ExecContext(ctx, upsertSession, k, v, at); err != nil {
				return fmt.Errorf("set %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *SessionStore) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if _, err := s.conn.Exec(ctx, `DELETE FROM session_store WHERE key = ?`, k); err != nil {
			return err
		}
	}
	return nil
}

package sqlite

import (
	"io"
	"log/slog"
	"time"

	"github.com/garnizeh/contactdesk/internal/db"
	"github.com/garnizeh/contactdesk/pkg/repository"
	"github.com/garnizeh/contactdesk/pkg/session"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.ContactRepo = (*SQLiteRepo)(nil)
var _ repository.AdminRepo = (*SQLiteRepo)(nil)
var _ repository.TokenRepo = (*SQLiteRepo)(nil)
var _ session.BatchStore = (*SessionStore)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

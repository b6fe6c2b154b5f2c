package db_test

import (
	"context"
	"testing"
	"testing/fstest"

	dbfs "github.com/garnizeh/contactdesk/db"
	"github.com/garnizeh/contactdesk/internal/db"
)

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()

	d, err := db.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	defer d.Close()

	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	var count int
	row := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("scan schema_migrations count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 migration recorded, got %d", count)
	}

	for _, table := range []string{"session_store", "admins", "contacts", "revoked_tokens"} {
		var name string
		r := d.QueryRow(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table)
		if err := r.Scan(&name); err != nil {
			t.Fatalf("expected %s table exists: %v", table, err)
		}
	}
}

func TestMigrate_OrderAndFailure(t *testing.T) {
	ctx := context.Background()
	d, err := db.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	good := fstest.MapFS{
		"migrations/0002_b.sql": {Data: []byte(`ALTER TABLE a ADD COLUMN note TEXT;`)},
		"migrations/0001_a.sql": {Data: []byte(`CREATE TABLE a (id INTEGER PRIMARY KEY);`)},
		"migrations/README.txt": {Data: []byte(`ignored`)},
		"migrations/sub/x.sql":  {Data: []byte(`not sql at all`)},
	}
	if err := db.Migrate(ctx, d, good); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := d.Exec(ctx, `INSERT INTO a (id, note) VALUES (1, 'ok')`); err != nil {
		t.Fatalf("migrations applied out of order: %v", err)
	}

	bad := fstest.MapFS{"migrations/0003_bad.sql": {Data: []byte(`THIS IS NOT SQL`)}}
	if err := db.Migrate(ctx, d, bad); err == nil {
		t.Fatalf("expected error for invalid migration")
	}

	if err := db.Migrate(ctx, d, fstest.MapFS{}); err == nil {
		t.Fatalf("expected error for missing migrations dir")
	}
}

package client

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	if err != nil {
		t.Fatalf("tableExists query failed: %v", err)
	}
	return n > 0
}

func TestInitDatabase_CreatesSchema(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "notes.db")

	db, err := InitDatabase(ctx, dsn)
	if err != nil {
		t.Fatalf("InitDatabase error: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"goose_db_version", "notes", "session"} {
		if !tableExists(t, db, table) {
			t.Fatalf("expected %s table to exist after migrations", table)
		}
	}
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "notes.db")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("sql.Open error: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("RunMigrations (first) error: %v", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("RunMigrations (second) should be idempotent, got error: %v", err)
	}
}

func TestNewRepositories_SharesDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := InitDatabase(ctx, filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	defer db.Close()

	repos := NewRepositories(db)
	require.NoError(t, repos.Notes.Put(ctx, &models.Note{ID: "n1", UserID: "u1", UpdatedAt: 1}))
	require.NoError(t, repos.Session.Save(ctx, &models.Session{UserID: "u1"}))

	s, err := repos.Session.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "u1", s.UserID)

	n, err := repos.Notes.Get(ctx, "n1")
	require.NoError(t, err)
	require.Equal(t, "u1", n.UserID)
}

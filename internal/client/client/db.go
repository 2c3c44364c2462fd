package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/client/migrations"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/notes"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/session"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

type Repositories struct {
	Notes   notes.Repository
	Session session.Repository
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Notes:   notes.NewSQLiteRepository(db),
		Session: session.NewSQLiteRepository(db),
	}
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the local SQLite store and migrates it. A single
// connection makes every statement atomic with respect to the others.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

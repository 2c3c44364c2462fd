// Package session persists the signed-in session so it can be restored on
// the next start. Values live in a small key/value table.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/dbx"
)

const (
	keyUserID       = "user_id"
	keyEmail        = "email"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

type Repository interface {
	// Load returns nil when no session is stored.
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Clear(ctx context.Context) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func get(ctx context.Context, db dbx.DBTX, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session[%s]: %w", key, err)
	}
	return value, nil
}

func set(ctx context.Context, db dbx.DBTX, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO session (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set session[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Load(ctx context.Context) (*models.Session, error) {
	s := &models.Session{}
	fields := []struct {
		key string
		dst *string
	}{
		{keyUserID, &s.UserID},
		{keyEmail, &s.Email},
		{keyAccessToken, &s.AccessToken},
		{keyRefreshToken, &s.RefreshToken},
	}
	for _, f := range fields {
		v, err := get(ctx, r.db, f.key)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	if !s.Authenticated() {
		return nil, nil
	}
	return s, nil
}

// Save replaces the stored session atomically.
func (r *SQLiteRepository) Save(ctx context.Context, s *models.Session) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session`); err != nil {
			return fmt.Errorf("failed to reset session: %w", err)
		}
		for key, value := range map[string]string{
			keyUserID:       s.UserID,
			keyEmail:        s.Email,
			keyAccessToken:  s.AccessToken,
			keyRefreshToken: s.RefreshToken,
		} {
			if err := set(ctx, tx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

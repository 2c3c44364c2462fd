package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/server/models"
)

const columns = `id, user_id, content, created_at, updated_at, is_deleted, server_updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*models.Note, error) {
	n := &models.Note{}
	if err := s.Scan(&n.ID, &n.UserID, &n.Content, &n.CreatedAt, &n.UpdatedAt, &n.IsDeleted, &n.ServerUpdatedAt); err != nil {
		return nil, err
	}
	return n, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, n *models.Note) (*models.Note, bool, error) {

	// created_at is kept from the first insert
	query := `
		INSERT INTO notes (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at,
			is_deleted = EXCLUDED.is_deleted,
			server_updated_at = EXCLUDED.server_updated_at
		WHERE notes.user_id = EXCLUDED.user_id
		  AND EXCLUDED.updated_at >= notes.updated_at
		RETURNING ` + columns

	row := r.db.QueryRowContext(ctx, query,
		n.ID, n.UserID, n.Content, n.CreatedAt, n.UpdatedAt, n.IsDeleted, n.ServerUpdatedAt)

	stored, err := scanNote(row)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	// the guard rejected the write: either a foreign row or a newer copy
	current, err := r.Get(ctx, n.ID)
	if err != nil {
		return nil, false, err
	}
	if current.UserID != n.UserID {
		return nil, false, common.ErrForeignRecord
	}
	return current, false, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Note, error) {
	query := `SELECT ` + columns + ` FROM notes WHERE id = $1`

	n, err := scanNote(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.Note, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) SelectUpdatedSince(ctx context.Context, userID string, after int64) ([]*models.Note, error) {
	query := `SELECT ` + columns + ` FROM notes
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at`
	return r.query(ctx, query, userID, after)
}

func (r *PostgresRepository) SelectLive(ctx context.Context, userID string) ([]*models.Note, error) {
	query := `SELECT ` + columns + ` FROM notes
		WHERE user_id = $1 AND NOT is_deleted
		ORDER BY created_at`
	return r.query(ctx, query, userID)
}

func (r *PostgresRepository) PurgeTombstones(ctx context.Context, before int64) (int64, error) {
	query := `DELETE FROM notes WHERE is_deleted AND server_updated_at < $1`

	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res)
}

package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/dbx"
)

const noteColumns = `id, content, created_at, updated_at, is_synced, is_deleted, server_updated_at, last_synced_at, user_id`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*models.Note, error) {
	n := &models.Note{}
	err := s.Scan(&n.ID, &n.Content, &n.CreatedAt, &n.UpdatedAt, &n.IsSynced, &n.IsDeleted,
		&n.ServerUpdatedAt, &n.LastSyncedAt, &n.UserID)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *SQLiteRepository) queryNotes(ctx context.Context, query string, args ...any) ([]*models.Note, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select notes: %w", err)
	}
	defer rows.Close()

	var result []*models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Note, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note %s: %w", id, err)
	}
	return n, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, n *models.Note) error {
	query := `INSERT INTO notes (` + noteColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			is_synced = excluded.is_synced,
			is_deleted = excluded.is_deleted,
			server_updated_at = excluded.server_updated_at,
			last_synced_at = excluded.last_synced_at,
			user_id = excluded.user_id`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.Content, n.CreatedAt, n.UpdatedAt,
		dbx.BoolToInt(n.IsSynced), dbx.BoolToInt(n.IsDeleted),
		n.ServerUpdatedAt, n.LastSyncedAt, n.UserID)
	if err != nil {
		return fmt.Errorf("failed to put note %s: %w", n.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, u models.NoteUpdate) error {
	if u.Empty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if u.Content != nil {
		add("content", *u.Content)
	}
	if u.UpdatedAt != nil {
		add("updated_at", *u.UpdatedAt)
	}
	if u.IsSynced != nil {
		add("is_synced", dbx.BoolToInt(*u.IsSynced))
	}
	if u.IsDeleted != nil {
		add("is_deleted", dbx.BoolToInt(*u.IsDeleted))
	}
	if u.ServerUpdatedAt != nil {
		add("server_updated_at", *u.ServerUpdatedAt)
	}
	if u.LastSyncedAt != nil {
		add("last_synced_at", *u.LastSyncedAt)
	}
	args = append(args, id)

	query := `UPDATE notes SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update note %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) QueryByFlag(ctx context.Context, userID string, flag models.Field, value bool) ([]*models.Note, error) {
	if !flag.IsFlag() {
		return nil, fmt.Errorf("%w: %q is not a flag column", common.ErrorValidation, flag)
	}
	query := `SELECT ` + noteColumns + ` FROM notes WHERE user_id = ? AND ` + string(flag) + ` = ? ORDER BY updated_at`
	return r.queryNotes(ctx, query, userID, dbx.BoolToInt(value))
}

func (r *SQLiteRepository) MaxByField(ctx context.Context, userID string, field models.Field) (*models.Note, error) {
	if !field.IsOrdered() {
		return nil, fmt.Errorf("%w: %q is not an ordered column", common.ErrorValidation, field)
	}
	query := `SELECT ` + noteColumns + ` FROM notes WHERE user_id = ? ORDER BY ` + string(field) + ` DESC LIMIT 1`
	n, err := scanNote(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get max %s: %w", field, err)
	}
	return n, nil
}

func (r *SQLiteRepository) ListOrderedBy(ctx context.Context, userID string, field models.Field, desc bool) ([]*models.Note, error) {
	if !field.IsOrdered() {
		return nil, fmt.Errorf("%w: %q is not an ordered column", common.ErrorValidation, field)
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	query := `SELECT ` + noteColumns + ` FROM notes WHERE user_id = ? AND is_deleted = 0 ORDER BY ` + string(field) + ` ` + dir + `, id`
	return r.queryNotes(ctx, query, userID)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, uploadedUpdatedAt, serverUpdatedAt, syncedAt int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notes SET is_synced = 1, server_updated_at = ?, last_synced_at = ? WHERE id = ? AND updated_at = ?`,
		serverUpdatedAt, syncedAt, id, uploadedUpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark note %s synced: %w", id, err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

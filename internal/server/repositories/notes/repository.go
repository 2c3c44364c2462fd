// Package notes is the server-side store of note records, scoped per user.
package notes

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/server/models"
)

type Repository interface {
	// Upsert writes n unless the stored copy is newer. It returns the row as
	// stored afterwards and whether n was applied. An id owned by another
	// user yields common.ErrForeignRecord.
	Upsert(ctx context.Context, n *models.Note) (*models.Note, bool, error)
	// Get returns the row regardless of owner, or common.ErrorNotFound.
	Get(ctx context.Context, id string) (*models.Note, error)
	// SelectUpdatedSince returns the user's rows, tombstones included, whose
	// updated_at is strictly greater than after, oldest first.
	SelectUpdatedSince(ctx context.Context, userID string, after int64) ([]*models.Note, error)
	// SelectLive returns the user's non-deleted rows ordered by creation.
	SelectLive(ctx context.Context, userID string) ([]*models.Note, error)
	// PurgeTombstones hard-deletes tombstones acknowledged before the cutoff.
	PurgeTombstones(ctx context.Context, before int64) (int64, error)
}

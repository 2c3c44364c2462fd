package notes

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/client/models"
)

// Repository is the local store contract used by the sync engine and the
// note service.
type Repository interface {
	Get(ctx context.Context, id string) (*models.Note, error)

	// Put inserts the record or overwrites it wholesale.
	Put(ctx context.Context, n *models.Note) error

	// Update applies the non-nil fields of u. Missing id is a no-op.
	Update(ctx context.Context, id string, u models.NoteUpdate) error

	// Delete hard-removes the record. Missing id is a no-op.
	Delete(ctx context.Context, id string) error

	// QueryByFlag returns the user's records whose boolean column equals value.
	QueryByFlag(ctx context.Context, userID string, flag models.Field, value bool) ([]*models.Note, error)

	// MaxByField returns the user's record holding the greatest value of field.
	MaxByField(ctx context.Context, userID string, field models.Field) (*models.Note, error)

	// ListOrderedBy returns the user's non-deleted records ordered by field.
	ListOrderedBy(ctx context.Context, userID string, field models.Field, desc bool) ([]*models.Note, error)

	// MarkSynced flags the record clean only if its updated_at still equals
	// uploadedUpdatedAt. It reports whether the row was changed.
	MarkSynced(ctx context.Context, id string, uploadedUpdatedAt, serverUpdatedAt, syncedAt int64) (bool, error)
}

package syncengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/common"
	"go.uber.org/multierr"
)

func (e *Engine) upload(ctx context.Context, userID string) error {
	dirty, err := e.local.QueryByFlag(ctx, userID, models.FieldIsSynced, false)
	if err != nil {
		return fmt.Errorf("query dirty notes: %w", err)
	}

	var errs error
	for _, d := range dirty {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if err := e.uploadOne(ctx, userID, d.ID); err != nil {
			e.log.Warn(ctx, "note upload failed", "id", d.ID, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("upload %s: %w", d.ID, err))
		}
	}
	return errs
}

// uploadOne re-reads the record so that the payload is never older than the
// latest local write, and marks it clean only if it was not edited again
// while the upsert was in flight.
func (e *Engine) uploadOne(ctx context.Context, userID, id string) error {
	e.setInflight(id, true)
	defer e.setInflight(id, false)

	cur, err := e.local.Get(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if cur.IsSynced || cur.UserID != userID {
		return nil
	}

	stored, err := e.remote.Upsert(ctx, &models.Note{
		ID:        cur.ID,
		Content:   cur.Content,
		CreatedAt: cur.CreatedAt,
		UpdatedAt: cur.UpdatedAt,
		IsDeleted: cur.IsDeleted,
		UserID:    userID,
	})
	if err != nil {
		return err
	}

	// The server keeps its copy when it is strictly newer and returns it;
	// reconcile it like any other remote version.
	if stored != nil && stored.UpdatedAt > cur.UpdatedAt {
		_, err := e.reconcile(ctx, userID, stored, true)
		return err
	}

	now := e.now()
	serverUpdatedAt := now
	if stored != nil && stored.ServerUpdatedAt != 0 {
		serverUpdatedAt = stored.ServerUpdatedAt
	}
	ok, err := e.local.MarkSynced(ctx, id, cur.UpdatedAt, serverUpdatedAt, now)
	if err != nil {
		return err
	}
	if !ok {
		e.log.Debug(ctx, "note edited during upload, left dirty", "id", id)
		return nil
	}
	e.log.Debug(ctx, "note uploaded", "id", id, "updated_at", cur.UpdatedAt, "server_updated_at", serverUpdatedAt)
	return nil
}

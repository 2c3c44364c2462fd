package syncengine

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/client/models"
)

// HandleRemoteChange applies one pushed change event. Events carrying no
// record, events for another user and events received while signed out
// are ignored.
func (e *Engine) HandleRemoteChange(ctx context.Context, ev models.ChangeEvent) error {
	rec := ev.Record()
	if rec == nil || rec.ID == "" {
		e.log.Debug(ctx, "empty change event ignored", "kind", ev.Kind)
		return nil
	}

	userID := e.UserID()
	if userID == "" {
		return nil
	}

	remote := rec
	if ev.Kind == models.EventDelete {
		remote = rec.Clone()
		remote.IsDeleted = true
	}

	_, err := e.reconcile(ctx, userID, remote, false)
	return err
}

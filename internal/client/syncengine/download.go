package syncengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/common"
	"go.uber.org/multierr"
)

func (e *Engine) download(ctx context.Context, userID string, watermark int64) error {
	remote, err := e.remote.SelectUpdatedSince(ctx, userID, watermark)
	if err != nil {
		return err
	}

	var errs error
	for _, r := range remote {
		if _, err := e.reconcile(ctx, userID, r, true); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", r.ID, err))
		}
	}
	return errs
}

// reconcile applies one remote version to the local store according to
// Resolve. Records owned by another user are ignored. last_synced_at is the
// download watermark, so only the download path (stamp) moves it; pushed
// versions keep the local value.
func (e *Engine) reconcile(ctx context.Context, userID string, remote *models.Note, stamp bool) (Decision, error) {
	if remote.UserID != "" && remote.UserID != userID {
		return DecisionKeepLocal, nil
	}

	local, err := e.local.Get(ctx, remote.ID)
	if errors.Is(err, common.ErrorNotFound) {
		local = nil
	} else if err != nil {
		return DecisionKeepLocal, err
	}

	d := Resolve(local, remote)
	switch d {
	case DecisionDelete:
		if local != nil {
			if err := e.local.Delete(ctx, remote.ID); err != nil {
				return d, err
			}
		}
	case DecisionApplyRemote:
		n := remote.Clone()
		n.UserID = userID
		n.IsSynced = true
		n.IsDeleted = false
		n.LastSyncedAt = 0
		switch {
		case stamp:
			n.LastSyncedAt = e.now()
		case local != nil:
			n.LastSyncedAt = local.LastSyncedAt
		}
		if err := e.local.Put(ctx, n); err != nil {
			return d, err
		}
	}

	e.log.Debug(ctx, "remote version reconciled", "id", remote.ID, "decision", d)
	return d, nil
}

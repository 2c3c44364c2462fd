package client

import (
	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/rpc"
)

// uploadPayload carries only the fields the server stores from a client.
func uploadPayload(n *models.Note) *rpc.Note {
	return &rpc.Note{
		ID:        n.ID,
		UserID:    n.UserID,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		IsDeleted: n.IsDeleted,
	}
}

func noteFromWire(n *rpc.Note) *models.Note {
	if n == nil {
		return nil
	}
	return &models.Note{
		ID:              n.ID,
		UserID:          n.UserID,
		Content:         n.Content,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
		IsDeleted:       n.IsDeleted,
		ServerUpdatedAt: n.ServerUpdatedAt,
	}
}

func eventFromWire(e rpc.Event) models.ChangeEvent {
	return models.ChangeEvent{
		Kind: models.EventKind(e.Kind),
		New:  noteFromWire(e.New),
		Old:  noteFromWire(e.Old),
	}
}

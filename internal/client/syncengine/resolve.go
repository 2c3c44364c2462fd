package syncengine

import "github.com/dmitrijs2005/notesync/internal/client/models"

type Decision int

const (
	DecisionKeepLocal Decision = iota
	DecisionApplyRemote
	DecisionDelete
)

func (d Decision) String() string {
	switch d {
	case DecisionKeepLocal:
		return "keep-local"
	case DecisionApplyRemote:
		return "apply-remote"
	case DecisionDelete:
		return "delete"
	}
	return "unknown"
}

// Resolve decides how a remote version of a record affects the local one.
// local may be nil when the id is not known locally.
func Resolve(local, remote *models.Note) Decision {
	if remote.IsDeleted {
		return DecisionDelete
	}
	if local == nil || remote.UpdatedAt > local.UpdatedAt {
		return DecisionApplyRemote
	}
	return DecisionKeepLocal
}

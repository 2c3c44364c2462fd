package models

// Note is the remote copy of a note. Timestamps are ms since epoch; all but
// ServerUpdatedAt come from the client that last wrote the row.
type Note struct {
	ID        string
	UserID    string
	Content   string
	CreatedAt int64
	UpdatedAt int64
	IsDeleted bool
	// ServerUpdatedAt is set by the server on every accepted write.
	ServerUpdatedAt int64
}

// ChangeOp is the statement kind reported by the notes trigger.
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// Change is one committed modification of a notes row. For deletes only
// Old is set and carries the last known state.
type Change struct {
	Op     ChangeOp
	UserID string
	New    *Note
	Old    *Note
}

// Package models defines the client-side note record and its companions.
package models

// Note is the single synchronized record. Timestamps are ms since epoch.
type Note struct {
	// ID is a uuid generated on the client when the note is created.
	ID      string
	Content string

	CreatedAt int64
	// UpdatedAt is refreshed by every local mutation and decides conflicts.
	UpdatedAt int64

	// IsSynced is true iff the local copy matches what was last confirmed
	// written to the server.
	IsSynced bool
	// IsDeleted marks a tombstone awaiting propagation; never listed.
	IsDeleted bool

	// ServerUpdatedAt is the server acknowledgement time (informational).
	ServerUpdatedAt int64
	// LastSyncedAt is the local wall clock of the last reconciliation that
	// touched the record. Its maximum is the download watermark.
	LastSyncedAt int64

	UserID string
}

// Clone returns a shallow copy; Note has no reference fields.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// Title is the first line of the content, trimmed for listings.
func (n *Note) Title(max int) string {
	line := n.Content
	for i, r := range line {
		if r == '\n' {
			line = line[:i]
			break
		}
	}
	if max > 0 && len([]rune(line)) > max {
		return string([]rune(line)[:max]) + "…"
	}
	return line
}

// NoteUpdate is a partial update; nil fields are left untouched.
type NoteUpdate struct {
	Content         *string
	UpdatedAt       *int64
	IsSynced        *bool
	IsDeleted       *bool
	ServerUpdatedAt *int64
	LastSyncedAt    *int64
}

func (u NoteUpdate) Empty() bool {
	return u.Content == nil && u.UpdatedAt == nil && u.IsSynced == nil &&
		u.IsDeleted == nil && u.ServerUpdatedAt == nil && u.LastSyncedAt == nil
}

// Field names a queryable column of the notes table.
type Field string

const (
	FieldCreatedAt    Field = "created_at"
	FieldUpdatedAt    Field = "updated_at"
	FieldIsSynced     Field = "is_synced"
	FieldIsDeleted    Field = "is_deleted"
	FieldLastSyncedAt Field = "last_synced_at"
)

// IsFlag reports whether f is a boolean column usable with QueryByFlag.
func (f Field) IsFlag() bool {
	return f == FieldIsSynced || f == FieldIsDeleted
}

// IsOrdered reports whether f is a timestamp column usable for ordering
// and MaxByField.
func (f Field) IsOrdered() bool {
	switch f {
	case FieldCreatedAt, FieldUpdatedAt, FieldLastSyncedAt:
		return true
	}
	return false
}

// SyncStatus is the per-note indicator shown to the user.
type SyncStatus string

const (
	StatusSynced   SyncStatus = "synced"
	StatusSyncing  SyncStatus = "syncing"
	StatusUnsynced SyncStatus = "unsynced"
)

type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

// ChangeEvent is a remote change notification. New carries the record state
// after an insert or update, Old the prior state for a delete.
type ChangeEvent struct {
	Kind EventKind
	New  *Note
	Old  *Note
}

// Record returns the record the event is about, preferring New.
func (e ChangeEvent) Record() *Note {
	if e.New != nil {
		return e.New
	}
	return e.Old
}

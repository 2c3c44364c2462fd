// Package syncengine reconciles the local note store with the remote store
// under last-write-wins.
//
// # Passes
//
// Synchronize runs one pass for the bound user: every dirty record is
// re-read, uploaded and marked clean (upload phase), then every remote
// record updated after the watermark is reconciled locally (download
// phase). HandleRemoteChange applies a single pushed change event.
//
// # Conflict rule
//
// Both paths go through Resolve. A remote version replaces the local one
// only when its UpdatedAt is strictly greater; equal timestamps keep the
// local copy. Tombstones always win and hard-delete the local record.
// Two edits within the same millisecond, or clock skew between devices,
// can therefore silently drop one side's edit.
//
// # Session
//
// The engine follows the session through Rebind: binding a user replaces
// the push subscription and runs a pass; unbinding tears the subscription
// down and turns Synchronize into a no-op.
package syncengine

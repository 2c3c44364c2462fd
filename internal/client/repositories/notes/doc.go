// Package notes is the local store for note records.
//
// SQLiteRepository keeps notes in the `notes` table created by the client
// migrations. Every listing and query is scoped to a user id; Get, Put,
// Update and Delete address records by their globally unique id.
//
// Missing records are not errors for Update and Delete: a record may have
// been hard-deleted by a concurrent reconciliation, so both are no-ops.
// Get and MaxByField report absence with common.ErrorNotFound.
//
// Column names passed as models.Field are checked against a whitelist
// before being spliced into SQL.
package notes

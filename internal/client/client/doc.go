// Package client contains the client-side building blocks that talk to the
// notesync server and bootstrap local persistence.
//
// # Overview
//
// The package provides:
//  1. The Client contract: the remote store used by the sync engine
//     (Upsert, SelectUpdatedSince, Subscribe) plus Register, Login, Ping
//     and ExportNotes.
//  2. GRPCClient, a gRPC implementation that injects the access token via
//     an interceptor, transparently refreshes expired tokens, keeps the
//     change-feed stream alive with exponential backoff and maps gRPC
//     status codes to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations,
//     NewRepositories) wiring SQLite and the embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrNotSignedIn, and the
// common package's ErrorNotFound, ErrorAlreadyExists and ErrorValidation.
//
// Concurrency & Contexts
//
// GRPCClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation; a subscription lives until
// Unsubscribe or until its context is cancelled.
package client

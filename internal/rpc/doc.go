// Package rpc declares the notesync gRPC contract.
//
// The service is registered by hand rather than generated: every request,
// response and stream message is a google.protobuf.Struct, so the default
// proto codec carries it without any compiled .proto descriptors. wire.go
// maps the Go-side records onto those structs and back.
//
// Methods:
//
//	Register, Login, RefreshToken   credentials and token rotation
//	Ping                            liveness probe used by the online watcher
//	UpsertNote, SelectNotes         remote store operations used by sync
//	ExportNotes                     S3 backup, returns a presigned GET URL
//	Subscribe (server stream)       per-user change feed
package rpc

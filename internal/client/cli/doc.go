// Package cli provides the interactive notesync command-line client.
//
// It wires configuration, the local SQLite store, the gRPC client, the sync
// engine and the debounced editor behind a small REPL. Notes are always
// written locally first; the engine uploads them when the server is
// reachable and applies remote changes as they are pushed.
//
// Commands:
//   - register / login / logout
//   - new, list (l), open <id>, edit, show [id], delete <id>
//   - sync, status, export [dir]
//   - exit / quit
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli

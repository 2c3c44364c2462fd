package client

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/client/syncengine"
)

// Client is the full remote API used by the CLI: the remote store consumed
// by the sync engine plus account and maintenance calls.
type Client interface {
	syncengine.RemoteStore

	Close() error
	Register(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password string) (userID string, err error)
	Ping(ctx context.Context) error
	ExportNotes(ctx context.Context) (key, url string, err error)

	// SetTokens installs a restored token pair; Tokens returns the current one.
	SetTokens(access, refresh string)
	Tokens() (access, refresh string)
	// OnTokensRefreshed is called after a transparent token rotation.
	OnTokensRefreshed(fn func(access, refresh string))
}

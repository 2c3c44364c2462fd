package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := ""
	if a.userName != "" {
		s = a.userName + " "
	}
	if a.mode != "" {
		s = s + string(a.mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Root restores a saved session and runs the REPL until the user exits.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to notesync (type 'help' for commands)")
	a.restoreSession(ctx)
	runREPL(ctx, a, a.getStatus, a.in)
}

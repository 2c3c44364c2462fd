package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	New(ctx context.Context) error
	List(ctx context.Context) error
	Open(ctx context.Context, id string) error
	Edit(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Export(ctx context.Context, dir string) error
}

const (
	helpSignedOut = "Available commands: register, login, status, exit"
	helpSignedIn  = "Available commands: new, (l)ist, open <id>, edit, show [id], delete <id>, sync, status, export [dir], logout, exit"
)

// runREPL starts the read–eval–print loop for the notesync CLI.
//
// It reads a line, parses the first token as the command and the second as
// an optional note id, and dispatches to methods on 'a'. Commands that need
// a session are refused while signed out. The loop exits on scanner EOF or
// when the user types "exit" or "quit". Handler errors are printed and the
// loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("notes %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		arg := ""
		if len(parts) > 1 {
			arg = parts[1]
		}

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpSignedIn)
			} else {
				printlnFn(helpSignedOut)
			}
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		case "register":
			err = a.Register(ctx)
		case "login":
			err = a.Login(ctx)
		case "status":
			err = a.Status(ctx)
		case "logout", "new", "l", "list", "open", "edit", "show", "delete", "sync", "export":
			if !a.isLoggedIn() {
				printlnFn("Please login first")
				continue
			}
			err = dispatchSignedIn(ctx, a, cmd, arg)
		default:
			printlnFn("Unknown command:", cmd)
			continue
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}

func dispatchSignedIn(ctx context.Context, a execIface, cmd, arg string) error {
	switch cmd {
	case "logout":
		return a.Logout(ctx)
	case "new":
		return a.New(ctx)
	case "l", "list":
		return a.List(ctx)
	case "open":
		return a.Open(ctx, arg)
	case "edit":
		return a.Edit(ctx)
	case "show":
		return a.Show(ctx, arg)
	case "delete":
		return a.Delete(ctx, arg)
	case "sync":
		return a.Sync(ctx)
	case "export":
		return a.Export(ctx, arg)
	}
	return nil
}

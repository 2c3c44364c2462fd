package cli

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	calls    []string
	failSync bool
}

func (f *fakeExec) rec(s string) error { f.calls = append(f.calls, s); return nil }

func (f *fakeExec) isLoggedIn() bool                        { return f.loggedIn }
func (f *fakeExec) Register(context.Context) error          { return f.rec("register") }
func (f *fakeExec) Login(context.Context) error             { f.loggedIn = true; return f.rec("login") }
func (f *fakeExec) Logout(context.Context) error            { f.loggedIn = false; return f.rec("logout") }
func (f *fakeExec) New(context.Context) error               { return f.rec("new") }
func (f *fakeExec) List(context.Context) error              { return f.rec("list") }
func (f *fakeExec) Open(_ context.Context, id string) error { return f.rec("open " + id) }
func (f *fakeExec) Edit(context.Context) error              { return f.rec("edit") }
func (f *fakeExec) Show(_ context.Context, id string) error { return f.rec("show " + id) }
func (f *fakeExec) Delete(_ context.Context, id string) error {
	return f.rec("delete " + id)
}
func (f *fakeExec) Status(context.Context) error               { return f.rec("status") }
func (f *fakeExec) Export(_ context.Context, dir string) error { return f.rec("export " + dir) }
func (f *fakeExec) Sync(context.Context) error {
	f.rec("sync")
	if f.failSync {
		return errors.New("offline")
	}
	return nil
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	out := captureOutput(t)

	input := strings.Join([]string{
		"help",
		"new",
		"login",
		"help",
		"new",
		"l",
		"open abc",
		"edit",
		"show",
		"show abc",
		"delete abc",
		"sync",
		"status",
		"export backups",
		"foobar",
		"logout",
		"list",
		"exit",
		"login",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewScanner(strings.NewReader(input)))

	assert.Equal(t, []string{
		"login", "new", "list", "open abc", "edit", "show ", "show abc",
		"delete abc", "sync", "status", "export backups", "logout",
	}, exec.calls)

	joined := strings.Join(*out, "\n")
	assert.Contains(t, joined, helpSignedOut)
	assert.Contains(t, joined, helpSignedIn)
	assert.Contains(t, joined, "Please login first")
	assert.Contains(t, joined, "Unknown command: foobar")
	assert.Contains(t, joined, "Bye!")
}

func TestRunREPL_PrintsHandlerErrors(t *testing.T) {
	out := captureOutput(t)

	exec := &fakeExec{loggedIn: true, failSync: true}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("sync\n\n")))

	assert.Equal(t, []string{"sync"}, exec.calls)
	assert.Contains(t, *out, "Error: offline")
}

func TestRunREPL_StopsAtEOF(t *testing.T) {
	captureOutput(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("")))
	assert.Empty(t, exec.calls)
}

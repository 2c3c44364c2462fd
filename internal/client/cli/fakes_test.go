package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/notesync/internal/client/config"
	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
)

// captureOutput replaces printlnFn and returns the collected lines.
func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var mu sync.Mutex
	lines := &[]string{}
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		parts := make([]string, 0, len(a))
		for _, v := range a {
			parts = append(parts, toString(v))
		}
		*lines = append(*lines, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return lines
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(_ io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}

type fakeAuth struct {
	signUpEmail string
	signInEmail string
	password    string
	signInErr   error
	signUpErr   error
	signedOut   bool
	restoreRet  string
	pingErr     error
	pings       int
	mu          sync.Mutex
}

func (f *fakeAuth) SignUp(_ context.Context, email, password string) error {
	f.signUpEmail, f.password = email, password
	return f.signUpErr
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) error {
	f.signInEmail, f.password = email, password
	return f.signInErr
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.signedOut = true
	return nil
}

func (f *fakeAuth) Restore(context.Context) (string, error) { return f.restoreRet, nil }

func (f *fakeAuth) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.pingErr
}

func (f *fakeAuth) setPingErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

func (f *fakeAuth) Close(context.Context) error { return nil }

type fakeNotes struct {
	notes    map[string]*models.Note
	order    []string
	synced   int
	syncErr  error
	exported bool
	pending  int
}

func newFakeNotes() *fakeNotes {
	return &fakeNotes{notes: map[string]*models.Note{}}
}

func (f *fakeNotes) add(n *models.Note) {
	f.notes[n.ID] = n
	f.order = append(f.order, n.ID)
}

func (f *fakeNotes) List(context.Context) ([]*models.Note, error) {
	var out []*models.Note
	for _, id := range f.order {
		if n, ok := f.notes[id]; ok && !n.IsDeleted {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotes) Get(_ context.Context, id string) (*models.Note, error) {
	n, ok := f.notes[id]
	if !ok || n.IsDeleted {
		return nil, common.ErrorNotFound
	}
	return n, nil
}

func (f *fakeNotes) Create(_ context.Context, content string) (*models.Note, error) {
	n := &models.Note{ID: "new-1", Content: content}
	f.add(n)
	return n, nil
}

func (f *fakeNotes) Update(_ context.Context, id, content string) error {
	if n, ok := f.notes[id]; ok {
		n.Content = content
	}
	return nil
}

func (f *fakeNotes) Delete(_ context.Context, id string) error {
	if n, ok := f.notes[id]; ok {
		n.IsDeleted = true
	}
	return nil
}

func (f *fakeNotes) Sync(context.Context) error {
	f.synced++
	return f.syncErr
}

func (f *fakeNotes) Status(n *models.Note) models.SyncStatus {
	if n.IsSynced {
		return models.StatusSynced
	}
	return models.StatusUnsynced
}

func (f *fakeNotes) Pending(context.Context) (int, error) { return f.pending, nil }

func (f *fakeNotes) Export(context.Context) (string, string, error) {
	f.exported = true
	return "notes/u1/1.json", "https://example/presigned", nil
}

// fakeEditor saves synchronously on Flush and records every input.
type fakeEditor struct {
	notes   *fakeNotes
	id      string
	inputs  []string
	pending *string
	flushes int
	closed  bool
}

func (e *fakeEditor) Open(id string) {
	e.id = id
	e.pending = nil
}

func (e *fakeEditor) NoteID() string { return e.id }

func (e *fakeEditor) Input(content string) {
	e.inputs = append(e.inputs, content)
	e.pending = &content
}

func (e *fakeEditor) Flush(ctx context.Context) error {
	e.flushes++
	if e.pending == nil {
		return nil
	}
	c := *e.pending
	e.pending = nil
	return e.notes.Update(ctx, e.id, c)
}

func (e *fakeEditor) Close() { e.closed = true }

type countingTrigger struct {
	mu sync.Mutex
	n  int
}

func (c *countingTrigger) Trigger() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *countingTrigger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type testApp struct {
	*App
	auth    *fakeAuth
	notes   *fakeNotes
	editor  *fakeEditor
	trigger *countingTrigger
}

func newTestApp(input string) *testApp {
	notes := newFakeNotes()
	ta := &testApp{
		auth:    &fakeAuth{},
		notes:   notes,
		editor:  &fakeEditor{notes: notes},
		trigger: &countingTrigger{},
	}
	ta.App = &App{
		config:  &config.Config{},
		log:     logging.Nop(),
		auth:    ta.auth,
		notes:   notes,
		editor:  ta.editor,
		trigger: ta.trigger,
		in:      bufio.NewScanner(strings.NewReader(input)),
		out:     &bytes.Buffer{},
		mode:    ModeOffline,
	}
	return ta
}

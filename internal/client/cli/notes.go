package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/filex"
	"github.com/dmitrijs2005/notesync/internal/netx"
)

const titleWidth = 40

var errNoNoteOpen = errors.New("no note is open, use: open <id>")

func (a *App) printNote(n *models.Note) {
	printlnFn(fmt.Sprintf("%s [%s]", n.ID, a.notes.Status(n)))
	printlnFn(n.Content)
}

// New creates an empty note and opens it; its body is written with edit.
func (a *App) New(ctx context.Context) error {
	n, err := a.notes.Create(ctx, "")
	if err != nil {
		return err
	}
	a.switchTo(ctx, n.ID)
	printlnFn("Created " + n.ID + ", use edit to write it")
	return nil
}

// List prints the live notes, newest first, with their sync indicator.
func (a *App) List(ctx context.Context) error {
	list, err := a.notes.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		printlnFn("No notes")
		return nil
	}
	for _, n := range list {
		printlnFn(fmt.Sprintf("%s  %-8s  %s", n.ID, a.notes.Status(n), n.Title(titleWidth)))
	}
	return nil
}

// switchTo saves whatever is pending for the current note, then points the
// editor at id.
func (a *App) switchTo(ctx context.Context, id string) {
	if err := a.editor.Flush(ctx); err != nil {
		a.log.Warn(ctx, "pending edit not saved", "error", err)
	}
	a.editor.Open(id)
}

// Open makes id the note being edited and prints it.
func (a *App) Open(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("usage: open <id>")
	}
	n, err := a.notes.Get(ctx, id)
	if err != nil {
		return err
	}
	a.switchTo(ctx, id)
	a.printNote(n)
	return nil
}

// Edit replaces the open note's body line by line. Each line is fed to the
// debounced editor; the last state is saved when editing ends.
func (a *App) Edit(ctx context.Context) error {
	id := a.editor.NoteID()
	if id == "" {
		return errNoNoteOpen
	}
	if _, err := ReadEditLines(a.in, a.out, a.editor.Input); err != nil {
		return err
	}
	if err := a.editor.Flush(ctx); err != nil {
		return err
	}
	printlnFn("Saved " + id)
	return nil
}

// Show prints a note; without an id it shows the open one.
func (a *App) Show(ctx context.Context, id string) error {
	if id == "" {
		id = a.editor.NoteID()
	}
	if id == "" {
		return errNoNoteOpen
	}
	n, err := a.notes.Get(ctx, id)
	if err != nil {
		return err
	}
	a.printNote(n)
	return nil
}

// Delete removes a note; a pending edit of it is dropped.
func (a *App) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("usage: delete <id>")
	}
	if a.editor.NoteID() == id {
		a.editor.Open("")
	}
	if err := a.notes.Delete(ctx, id); err != nil {
		return err
	}
	printlnFn("Deleted " + id)
	return nil
}

// Sync runs a pass in the foreground.
func (a *App) Sync(ctx context.Context) error {
	if err := a.editor.Flush(ctx); err != nil {
		return err
	}
	if err := a.notes.Sync(ctx); err != nil {
		return err
	}
	printlnFn("Synchronized")
	return nil
}

// Status prints connectivity, the signed-in user and the upload backlog.
func (a *App) Status(ctx context.Context) error {
	var b strings.Builder
	fmt.Fprintf(&b, "mode: %s", a.currentMode())

	a.mu.Lock()
	user := a.userName
	a.mu.Unlock()
	if user == "" {
		b.WriteString(", signed out")
		printlnFn(b.String())
		return nil
	}

	pending, err := a.notes.Pending(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(&b, ", user: %s, pending: %d", user, pending)
	printlnFn(b.String())
	return nil
}

var downloadFn = netx.Download

// Export asks the server for a backup and prints the download link. With a
// directory the backup is also downloaded there.
func (a *App) Export(ctx context.Context, dir string) error {
	key, url, err := a.notes.Export(ctx)
	if err != nil {
		return err
	}
	printlnFn("Backup " + key)
	printlnFn(url)

	if dir == "" {
		return nil
	}
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return err
	}
	target := filepath.Join(abs, path.Base(key))
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	n, err := downloadFn(ctx, url, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(target)
		return fmt.Errorf("download backup: %w", err)
	}
	printlnFn(fmt.Sprintf("Saved %d bytes to %s", n, target))
	return nil
}

// Package editor debounces saves of the note currently being edited.
//
// Every Input restarts a timer; when it fires the latest content is written
// through the Saver. Opening another note or closing the editor bumps a
// generation counter so a timer armed for the previous note never writes.
package editor

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/notesync/internal/logging"
)

// DefaultDelay is used when New is given a non-positive delay.
const DefaultDelay = time.Second

// Saver persists note content; services.NoteService satisfies it.
type Saver interface {
	Update(ctx context.Context, id, content string) error
}

type Editor struct {
	saver Saver
	delay time.Duration
	log   logging.Logger

	mu      sync.Mutex
	gen     uint64
	noteID  string
	content string
	dirty   bool
	timer   *time.Timer
	closed  bool

	wg sync.WaitGroup
}

func New(saver Saver, delay time.Duration, log logging.Logger) *Editor {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Editor{saver: saver, delay: delay, log: log.With("module", "editor")}
}

// Open switches the editor to id, discarding any pending write of the
// previous note.
func (e *Editor) Open(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.invalidateLocked()
	e.noteID = id
	e.content = ""
	e.dirty = false
}

// NoteID returns the note being edited, empty when none is open.
func (e *Editor) NoteID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.noteID
}

// Input records the new content and restarts the debounce timer.
func (e *Editor) Input(content string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.noteID == "" {
		return
	}
	e.content = content
	e.dirty = true

	e.stopLocked()
	e.gen++
	gen := e.gen
	e.wg.Add(1)
	e.timer = time.AfterFunc(e.delay, func() {
		defer e.wg.Done()
		e.fire(gen)
	})
}

// Flush writes pending content immediately.
func (e *Editor) Flush(ctx context.Context) error {
	e.mu.Lock()
	e.stopLocked()
	id, content, ok := e.takeLocked()
	e.mu.Unlock()

	if !ok {
		return nil
	}
	return e.saver.Update(ctx, id, content)
}

// Close discards pending input and waits for an in-flight write to end.
func (e *Editor) Close() {
	e.mu.Lock()
	e.closed = true
	e.invalidateLocked()
	e.noteID = ""
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Editor) fire(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.closed {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	id, content, ok := e.takeLocked()
	e.mu.Unlock()

	if !ok {
		return
	}
	ctx := context.Background()
	if err := e.saver.Update(ctx, id, content); err != nil {
		e.log.Warn(ctx, "debounced save failed", "id", id, "error", err)
	}
}

func (e *Editor) takeLocked() (string, string, bool) {
	if !e.dirty || e.noteID == "" {
		return "", "", false
	}
	e.dirty = false
	return e.noteID, e.content, true
}

func (e *Editor) stopLocked() {
	if e.timer != nil && e.timer.Stop() {
		e.wg.Done()
	}
	e.timer = nil
}

func (e *Editor) invalidateLocked() {
	e.gen++
	e.stopLocked()
	e.dirty = false
}

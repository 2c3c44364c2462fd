package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/client"
	"github.com/dmitrijs2005/notesync/internal/client/config"
	"github.com/dmitrijs2005/notesync/internal/client/editor"
	"github.com/dmitrijs2005/notesync/internal/client/services"
	"github.com/dmitrijs2005/notesync/internal/client/session"
	"github.com/dmitrijs2005/notesync/internal/client/syncengine"
	"github.com/dmitrijs2005/notesync/internal/filex"
	"github.com/dmitrijs2005/notesync/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// noteEditor is the editor surface used by the commands.
type noteEditor interface {
	Open(id string)
	NoteID() string
	Input(content string)
	Flush(ctx context.Context) error
	Close()
}

// syncTrigger schedules a background pass; the watcher uses it when the
// server comes back.
type syncTrigger interface {
	Trigger()
}

type App struct {
	config  *config.Config
	log     logging.Logger
	auth    services.AuthService
	notes   services.NoteService
	editor  noteEditor
	trigger syncTrigger
	closers []func() error

	in  *bufio.Scanner
	out io.Writer

	mu       sync.Mutex
	mode     Mode
	userName string
}

// NewApp wires the local store, the gRPC client, the sync engine and the
// services. The engine follows every session transition through Rebind.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.New(logging.Options{Level: c.LogLevel, File: c.LogFile})

	if err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, fmt.Errorf("error preparing database dir: %w", err)
	}

	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	api, err := client.NewNoteSyncClient(c.ServerEndpointAddr, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	repos := client.NewRepositories(db)
	sess := session.New()
	engine := syncengine.New(repos.Notes, api, log)
	api.OnReconnect(engine.Trigger)
	sess.OnChange(func(ctx context.Context, userID string) {
		if err := engine.Rebind(ctx, userID); err != nil {
			log.Warn(ctx, "initial sync failed", "user_id", userID, "error", err)
		}
	})

	auth := services.NewAuthService(api, repos.Session, sess, log)
	notes := services.NewNoteService(repos.Notes, engine, sess, api)
	ed := editor.New(notes, c.DebounceInterval, log)

	return &App{
		config:  c,
		log:     log.With("module", "cli"),
		auth:    auth,
		notes:   notes,
		editor:  ed,
		trigger: engine,
		closers: []func() error{
			func() error { ed.Close(); return nil },
			func() error { engine.Close(); return nil },
			func() error { return auth.Close(ctx) },
			db.Close,
		},
		in:   bufio.NewScanner(os.Stdin),
		out:  os.Stdout,
		mode: ModeOffline,
	}, nil
}

// Run restores the saved session, starts the online watcher and blocks in
// the REPL until the user exits. Everything is released on return.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		a.shutdown(context.Background())
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	}()

	a.Root(ctx)
}

func (a *App) shutdown(ctx context.Context) {
	if err := a.editor.Flush(ctx); err != nil {
		a.log.Warn(ctx, "pending edit not saved", "error", err)
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn(ctx, "close failed", "error", err)
		}
	}
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userName != ""
}

func (a *App) setUser(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userName = name
}

func (a *App) currentMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// setMode records the connectivity mode and reports whether it changed.
func (a *App) setMode(mode Mode) bool {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.log.Info(context.Background(), "connectivity changed", "mode", mode)
	}
	return changed
}

// checkOnline pings the server once. Coming back online schedules a sync so
// edits made offline are uploaded.
func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.auth.Ping(ctx)
	cancel()

	if err != nil {
		a.setMode(ModeOffline)
		return
	}
	if a.setMode(ModeOnline) && a.isLoggedIn() {
		a.trigger.Trigger()
	}
}

// StartOnlineStatusWatcher probes the server every interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	a.checkOnline(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

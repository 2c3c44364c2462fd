package syncengine

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/dmitrijs2005/notesync/internal/client/migrations"
	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/notes"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

const serverNow = 5000

var errNetwork = errors.New("network down")

type fakeSub struct {
	userID       string
	onEvent      func(models.ChangeEvent)
	unsubscribed bool
}

func (s *fakeSub) Unsubscribe() { s.unsubscribed = true }

// fakeRemote is an in-memory remote store. With keepNewer set it refuses to
// overwrite a strictly newer row, like the real server.
type fakeRemote struct {
	mu         sync.Mutex
	rows       map[string]*models.Note
	failUpsert map[string]error
	selectErr  error
	keepNewer  bool
	upserts    []*models.Note
	subs       []*fakeSub
	beforeUp   func(n *models.Note)
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rows: map[string]*models.Note{}, failUpsert: map[string]error{}}
}

func (f *fakeRemote) Upsert(_ context.Context, n *models.Note) (*models.Note, error) {
	if f.beforeUp != nil {
		f.beforeUp(n)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upserts = append(f.upserts, n.Clone())
	if err := f.failUpsert[n.ID]; err != nil {
		return nil, err
	}
	if cur, ok := f.rows[n.ID]; ok && f.keepNewer && cur.UpdatedAt > n.UpdatedAt {
		return cur.Clone(), nil
	}
	stored := n.Clone()
	stored.ServerUpdatedAt = serverNow
	f.rows[n.ID] = stored
	return stored.Clone(), nil
}

func (f *fakeRemote) SelectUpdatedSince(_ context.Context, userID string, after int64) ([]*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.selectErr != nil {
		return nil, f.selectErr
	}
	var out []*models.Note
	for _, n := range f.rows {
		if n.UserID == userID && n.UpdatedAt > after {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRemote) Subscribe(_ context.Context, userID string, onEvent func(models.ChangeEvent)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSub{userID: userID, onEvent: onEvent}
	f.subs = append(f.subs, s)
	return s, nil
}

func (f *fakeRemote) put(n *models.Note) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[n.ID] = n.Clone()
}

func (f *fakeRemote) row(id string) *models.Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].Clone()
}

func (f *fakeRemote) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

type clock struct {
	mu  sync.Mutex
	now int64
}

func (c *clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = v
}

func newLocal(t *testing.T) *notes.SQLiteRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(context.Background(), db, "."))
	return notes.NewSQLiteRepository(db)
}

type fixture struct {
	local  *notes.SQLiteRepository
	remote *fakeRemote
	clock  *clock
	engine *Engine
}

// newFixture builds an engine bound to u1 without going through Rebind, so
// no pass or subscription happens during setup.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		local:  newLocal(t),
		remote: newFakeRemote(),
		clock:  &clock{now: 1000},
	}
	f.engine = New(f.local, f.remote, logging.Nop(), WithClock(f.clock.Now))
	f.engine.userID = "u1"
	t.Cleanup(f.engine.Close)
	return f
}

func (f *fixture) putLocal(t *testing.T, n *models.Note) {
	t.Helper()
	if n.UserID == "" {
		n.UserID = "u1"
	}
	require.NoError(t, f.local.Put(context.Background(), n))
}

func (f *fixture) getLocal(t *testing.T, id string) *models.Note {
	t.Helper()
	n, err := f.local.Get(context.Background(), id)
	require.NoError(t, err)
	return n
}

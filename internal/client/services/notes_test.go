package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/notesync/internal/client/client"
	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/notes"
	"github.com/dmitrijs2005/notesync/internal/client/session"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noteFixture struct {
	svc     *noteService
	repo    *notes.SQLiteRepository
	engine  *fakeSyncer
	session *session.Session
	now     int64
}

func newNoteFixture(t *testing.T) *noteFixture {
	t.Helper()
	f := &noteFixture{
		repo:    notes.NewSQLiteRepository(setupDB(t)),
		engine:  &fakeSyncer{},
		session: session.New(),
		now:     1000,
	}
	f.svc = NewNoteService(f.repo, f.engine, f.session, exporterFunc(func(context.Context) (string, string, error) {
		return "notes/u1/1.json", "https://example/presigned", nil
	})).(*noteService)
	f.svc.now = func() int64 { return f.now }
	f.session.Bind(context.Background(), "u1")
	return f
}

func TestCreate_DirtyAndTriggers(t *testing.T) {
	f := newNoteFixture(t)
	ctx := context.Background()

	n, err := f.svc.Create(ctx, "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)

	got, err := f.repo.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, int64(1000), got.CreatedAt)
	assert.Equal(t, int64(1000), got.UpdatedAt)
	assert.False(t, got.IsSynced)
	assert.False(t, got.IsDeleted)
	assert.Equal(t, 1, f.engine.triggerCount())
}

func TestSignedOut_Rejected(t *testing.T) {
	f := newNoteFixture(t)
	ctx := context.Background()
	f.session.Clear(ctx)

	_, err := f.svc.Create(ctx, "x")
	require.ErrorIs(t, err, client.ErrNotSignedIn)
	_, err = f.svc.List(ctx)
	require.ErrorIs(t, err, client.ErrNotSignedIn)
	require.ErrorIs(t, f.svc.Sync(ctx), client.ErrNotSignedIn)
	assert.Zero(t, f.engine.syncs)
}

func TestUpdate_RefreshesTimestampAndMarksDirty(t *testing.T) {
	f := newNoteFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Put(ctx, &models.Note{ID: "n1", UserID: "u1", Content: "a",
		CreatedAt: 1, UpdatedAt: 1, IsSynced: true}))

	f.now = 2000
	require.NoError(t, f.svc.Update(ctx, "n1", "b"))

	got, err := f.repo.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Content)
	assert.Equal(t, int64(2000), got.UpdatedAt)
	assert.Equal(t, int64(1), got.CreatedAt)
	assert.False(t, got.IsSynced)
	assert.Equal(t, 1, f.engine.triggerCount())
}

func TestUpdate_MissingIsNoop(t *testing.T) {
	f := newNoteFixture(t)
	require.NoError(t, f.svc.Update(context.Background(), "ghost", "x"))
	assert.Zero(t, f.engine.triggerCount())
}

func TestDelete_Tombstones(t *testing.T) {
	f := newNoteFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Put(ctx, &models.Note{ID: "n1", UserID: "u1", Content: "a",
		CreatedAt: 1, UpdatedAt: 1, IsSynced: true}))

	f.now = 3000
	require.NoError(t, f.svc.Delete(ctx, "n1"))

	got, err := f.repo.Get(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.False(t, got.IsSynced)
	assert.Equal(t, int64(3000), got.UpdatedAt)

	_, err = f.svc.Get(ctx, "n1")
	require.ErrorIs(t, err, common.ErrorNotFound)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	pending, err := f.svc.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestGet_ForeignNoteHidden(t *testing.T) {
	f := newNoteFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Put(ctx, &models.Note{ID: "x", UserID: "u2", UpdatedAt: 1}))

	_, err := f.svc.Get(ctx, "x")
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, f.svc.Delete(ctx, "x"))

	got, err := f.repo.Get(ctx, "x")
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)
}

func TestList_NewestFirst(t *testing.T) {
	f := newNoteFixture(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, f.repo.Put(ctx, &models.Note{ID: id, UserID: "u1", UpdatedAt: int64(i + 1)}))
	}
	require.NoError(t, f.repo.Put(ctx, &models.Note{ID: "other", UserID: "u2", UpdatedAt: 9}))

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, n := range list {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
}

func TestSyncAndStatus_Delegate(t *testing.T) {
	f := newNoteFixture(t)

	require.NoError(t, f.svc.Sync(context.Background()))
	assert.Equal(t, 1, f.engine.syncs)
	assert.Equal(t, models.StatusSynced, f.svc.Status(&models.Note{IsSynced: true}))
	assert.Equal(t, models.StatusUnsynced, f.svc.Status(&models.Note{}))
}

type exporterFunc func(ctx context.Context) (string, string, error)

func (f exporterFunc) ExportNotes(ctx context.Context) (string, string, error) { return f(ctx) }

func TestExport(t *testing.T) {
	f := newNoteFixture(t)
	ctx := context.Background()

	key, url, err := f.svc.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "notes/u1/1.json", key)
	assert.Equal(t, "https://example/presigned", url)

	f.session.Clear(ctx)
	_, _, err = f.svc.Export(ctx)
	require.ErrorIs(t, err, client.ErrNotSignedIn)
}

package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/dmitrijs2005/notesync/internal/client/client"
	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/client/syncengine"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeClient implements client.Client for AuthService tests.
type fakeClient struct {
	mu sync.Mutex

	RegisterErr error
	LoginErr    error
	LoginUserID string
	LoginTokens [2]string
	PingErr     error
	CloseErr    error

	LastRegisterEmail string
	LastLoginEmail    string
	Closed            bool

	access, refresh string
	onRefresh       func(access, refresh string)
}

func (f *fakeClient) Upsert(context.Context, *models.Note) (*models.Note, error) {
	return nil, nil
}

func (f *fakeClient) SelectUpdatedSince(context.Context, string, int64) ([]*models.Note, error) {
	return nil, nil
}

func (f *fakeClient) Subscribe(context.Context, string, func(models.ChangeEvent)) (syncengine.Subscription, error) {
	return nil, nil
}

func (f *fakeClient) Close() error {
	f.Closed = true
	return f.CloseErr
}

func (f *fakeClient) Register(_ context.Context, email, _ string) error {
	f.LastRegisterEmail = email
	return f.RegisterErr
}

func (f *fakeClient) Login(_ context.Context, email, _ string) (string, error) {
	f.LastLoginEmail = email
	if f.LoginErr != nil {
		return "", f.LoginErr
	}
	f.SetTokens(f.LoginTokens[0], f.LoginTokens[1])
	return f.LoginUserID, nil
}

func (f *fakeClient) Ping(context.Context) error { return f.PingErr }

func (f *fakeClient) ExportNotes(context.Context) (string, string, error) {
	return "", "", nil
}

func (f *fakeClient) SetTokens(access, refresh string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access, f.refresh = access, refresh
}

func (f *fakeClient) Tokens() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access, f.refresh
}

func (f *fakeClient) OnTokensRefreshed(fn func(access, refresh string)) {
	f.onRefresh = fn
}

// rotate simulates a transparent refresh inside the client.
func (f *fakeClient) rotate(access, refresh string) {
	f.SetTokens(access, refresh)
	if f.onRefresh != nil {
		f.onRefresh(access, refresh)
	}
}

// fakeSyncer records what the note service asks of the engine.
type fakeSyncer struct {
	mu       sync.Mutex
	triggers int
	syncs    int
	syncErr  error
}

func (f *fakeSyncer) Synchronize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	return f.syncErr
}

func (f *fakeSyncer) Trigger() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
}

func (f *fakeSyncer) Status(n *models.Note) models.SyncStatus {
	if n.IsSynced {
		return models.StatusSynced
	}
	return models.StatusUnsynced
}

func (f *fakeSyncer) triggerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggers
}

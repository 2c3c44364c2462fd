package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/server/config"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	notesrepo "github.com/dmitrijs2005/notesync/internal/server/repositories/notes"
	refreshtokensrepo "github.com/dmitrijs2005/notesync/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/notesync/internal/server/repositories/users"
	"golang.org/x/crypto/bcrypt"
)

var errBoom = errors.New("boom")

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newUserService(t *testing.T, db *sql.DB, rm repomanager.RepositoryManager) *UserService {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
	s := NewUserService(db, rm, cfg)
	s.hashCost = bcrypt.MinCost
	return s
}

type fakeUsersRepo struct {
	byEmail   map[string]*models.User
	createErr error
	getErr    error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.byEmail == nil {
		f.byEmail = map[string]*models.User{}
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	u.ID = "u-" + u.Email
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeUsersRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type fakeRefreshRepo struct {
	findOut   *models.RefreshToken
	findErr   error
	delErr    error
	createErr error

	created []string
	deleted []string
	expired int64
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, token)
	return nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, token)
	return nil
}

func (f *fakeRefreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return f.expired, nil
}

// fakeNotesRepo applies the same last-write-wins guard as the SQL upsert.
type fakeNotesRepo struct {
	rows     map[string]*models.Note
	err      error
	purgedAt int64
	purged   int64
}

func newFakeNotesRepo() *fakeNotesRepo {
	return &fakeNotesRepo{rows: map[string]*models.Note{}}
}

func (f *fakeNotesRepo) Upsert(ctx context.Context, n *models.Note) (*models.Note, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	cur, ok := f.rows[n.ID]
	if ok && cur.UserID != n.UserID {
		return nil, false, common.ErrForeignRecord
	}
	if ok && n.UpdatedAt < cur.UpdatedAt {
		c := *cur
		return &c, false, nil
	}
	c := *n
	if ok {
		c.CreatedAt = cur.CreatedAt
	}
	f.rows[n.ID] = &c
	out := c
	return &out, true, nil
}

func (f *fakeNotesRepo) Get(ctx context.Context, id string) (*models.Note, error) {
	if f.err != nil {
		return nil, f.err
	}
	n, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *n
	return &c, nil
}

func (f *fakeNotesRepo) SelectUpdatedSince(ctx context.Context, userID string, after int64) ([]*models.Note, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Note
	for _, n := range f.rows {
		if n.UserID == userID && n.UpdatedAt > after {
			c := *n
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeNotesRepo) SelectLive(ctx context.Context, userID string) ([]*models.Note, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Note
	for _, n := range f.rows {
		if n.UserID == userID && !n.IsDeleted {
			c := *n
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeNotesRepo) PurgeTombstones(ctx context.Context, before int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.purgedAt = before
	return f.purged, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
	n *fakeNotesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }
func (m *fakeRepoManager) Notes(db dbx.DBTX) notesrepo.Repository                 { return m.n }

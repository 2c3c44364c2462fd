package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/client/client"
	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/notes"
	"github.com/dmitrijs2005/notesync/internal/client/session"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/google/uuid"
)

// Syncer is the part of the sync engine the note service drives.
type Syncer interface {
	Synchronize(ctx context.Context) error
	Trigger()
	Status(n *models.Note) models.SyncStatus
}

// Exporter asks the server to write a backup of the user's notes.
type Exporter interface {
	ExportNotes(ctx context.Context) (key, url string, err error)
}

// NoteService is the CRUD facade used by the UI. Every mutation marks the
// record dirty with a fresh UpdatedAt and schedules a background sync.
type NoteService interface {
	List(ctx context.Context) ([]*models.Note, error)
	Get(ctx context.Context, id string) (*models.Note, error)
	Create(ctx context.Context, content string) (*models.Note, error)
	Update(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
	Sync(ctx context.Context) error
	Status(n *models.Note) models.SyncStatus
	Pending(ctx context.Context) (int, error)
	Export(ctx context.Context) (key, url string, err error)
}

type noteService struct {
	repo    notes.Repository
	engine  Syncer
	session *session.Session
	export  Exporter
	now     func() int64
}

func NewNoteService(repo notes.Repository, engine Syncer, s *session.Session, export Exporter) NoteService {
	return &noteService{repo: repo, engine: engine, session: s, export: export, now: common.NowMillis}
}

func (s *noteService) userID() (string, error) {
	id := s.session.UserID()
	if id == "" {
		return "", client.ErrNotSignedIn
	}
	return id, nil
}

// List returns the user's notes, most recently updated first.
func (s *noteService) List(ctx context.Context) ([]*models.Note, error) {
	userID, err := s.userID()
	if err != nil {
		return nil, err
	}
	return s.repo.ListOrderedBy(ctx, userID, models.FieldUpdatedAt, true)
}

// Get returns a live note of the current user, or common.ErrorNotFound.
func (s *noteService) Get(ctx context.Context, id string) (*models.Note, error) {
	userID, err := s.userID()
	if err != nil {
		return nil, err
	}
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.IsDeleted || n.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return n, nil
}

func (s *noteService) Create(ctx context.Context, content string) (*models.Note, error) {
	userID, err := s.userID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	n := &models.Note{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    userID,
	}
	if err := s.repo.Put(ctx, n); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	s.engine.Trigger()
	return n, nil
}

// Update replaces the content. A note that vanished or was deleted in the
// meantime is left alone.
func (s *noteService) Update(ctx context.Context, id, content string) error {
	if _, err := s.Get(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}

	now := s.now()
	dirty := false
	if err := s.repo.Update(ctx, id, models.NoteUpdate{Content: &content, UpdatedAt: &now, IsSynced: &dirty}); err != nil {
		return fmt.Errorf("saving error: %w", err)
	}
	s.engine.Trigger()
	return nil
}

// Delete tombstones the note; the tombstone is removed once the deletion
// comes back from the server.
func (s *noteService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}

	now := s.now()
	deleted, dirty := true, false
	if err := s.repo.Update(ctx, id, models.NoteUpdate{IsDeleted: &deleted, IsSynced: &dirty, UpdatedAt: &now}); err != nil {
		return fmt.Errorf("deleting error: %w", err)
	}
	s.engine.Trigger()
	return nil
}

// Sync runs a pass in the foreground.
func (s *noteService) Sync(ctx context.Context) error {
	if _, err := s.userID(); err != nil {
		return err
	}
	return s.engine.Synchronize(ctx)
}

func (s *noteService) Status(n *models.Note) models.SyncStatus {
	return s.engine.Status(n)
}

// Pending counts the user's records awaiting upload, tombstones included.
func (s *noteService) Pending(ctx context.Context) (int, error) {
	userID, err := s.userID()
	if err != nil {
		return 0, err
	}
	dirty, err := s.repo.QueryByFlag(ctx, userID, models.FieldIsSynced, false)
	if err != nil {
		return 0, err
	}
	return len(dirty), nil
}

// Export uploads a server-side backup and returns its object key and a
// temporary download link.
func (s *noteService) Export(ctx context.Context) (string, string, error) {
	if _, err := s.userID(); err != nil {
		return "", "", err
	}
	key, url, err := s.export.ExportNotes(ctx)
	if err != nil {
		return "", "", fmt.Errorf("export error: %w", err)
	}
	return key, url, nil
}

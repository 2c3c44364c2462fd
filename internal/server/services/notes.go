package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/server/backup"
	"github.com/dmitrijs2005/notesync/internal/server/metrics"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

type NoteService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	exporter    backup.Exporter
	metrics     *metrics.Manager
	now         func() time.Time
}

func NewNoteService(db *sql.DB, m repomanager.RepositoryManager, exporter backup.Exporter, mm *metrics.Manager) *NoteService {
	return &NoteService{
		db:          db,
		repomanager: m,
		exporter:    exporter,
		metrics:     mm,
		now:         time.Now,
	}
}

func validateNote(n *models.Note) error {
	switch {
	case n == nil:
		return fmt.Errorf("%w: empty note", common.ErrorValidation)
	case n.ID == "":
		return fmt.Errorf("%w: note id is required", common.ErrorValidation)
	case n.UpdatedAt <= 0:
		return fmt.Errorf("%w: updated_at is required", common.ErrorValidation)
	case n.CreatedAt <= 0:
		return fmt.Errorf("%w: created_at is required", common.ErrorValidation)
	}
	return nil
}

// Upsert stores n on behalf of userID unless the server already holds a
// newer copy. Either way the stored row is returned, so the caller can tell
// whether its write won by comparing updated_at.
func (s *NoteService) Upsert(ctx context.Context, userID string, n *models.Note) (*models.Note, error) {
	if err := validateNote(n); err != nil {
		return nil, err
	}
	if n.UserID != "" && n.UserID != userID {
		return nil, common.ErrForeignRecord
	}

	in := *n
	in.UserID = userID
	in.ServerUpdatedAt = s.now().UnixMilli()

	stored, applied, err := s.repomanager.Notes(s.db).Upsert(ctx, &in)
	if err != nil {
		return nil, err
	}

	result := metrics.UpsertApplied
	if !applied {
		result = metrics.UpsertStale
	}
	s.metrics.CounterUpserts.WithLabelValues(result).Inc()

	return stored, nil
}

func (s *NoteService) SelectUpdatedSince(ctx context.Context, userID string, after int64) ([]*models.Note, error) {
	return s.repomanager.Notes(s.db).SelectUpdatedSince(ctx, userID, after)
}

// Get returns the note if it belongs to userID.
func (s *NoteService) Get(ctx context.Context, userID, id string) (*models.Note, error) {
	n, err := s.repomanager.Notes(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return n, nil
}

// PurgeTombstones hard-deletes notes that were deleted longer than
// retention ago.
func (s *NoteService) PurgeTombstones(ctx context.Context, retention time.Duration) (int64, error) {
	before := s.now().Add(-retention).UnixMilli()
	n, err := s.repomanager.Notes(s.db).PurgeTombstones(ctx, before)
	if err != nil {
		return 0, err
	}
	s.metrics.CounterTombstonesPurged.Add(float64(n))
	return n, nil
}

type exportedNote struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type exportDocument struct {
	UserID     string         `json:"user_id"`
	ExportedAt int64          `json:"exported_at"`
	Notes      []exportedNote `json:"notes"`
}

// ExportKey is the object key a backup of userID is stored under.
func ExportKey(userID string, at time.Time) string {
	return fmt.Sprintf("exports/%s/%s-%s.json", userID, at.UTC().Format("20060102T150405Z"), uuid.NewString())
}

// Export writes the user's live notes to object storage and returns the
// object key and a temporary download link.
func (s *NoteService) Export(ctx context.Context, userID string) (string, string, error) {
	if s.exporter == nil {
		return "", "", errors.New("export storage is not configured")
	}

	live, err := s.repomanager.Notes(s.db).SelectLive(ctx, userID)
	if err != nil {
		return "", "", err
	}

	now := s.now()
	doc := exportDocument{UserID: userID, ExportedAt: now.UnixMilli(), Notes: make([]exportedNote, 0, len(live))}
	for _, n := range live {
		doc.Notes = append(doc.Notes, exportedNote{ID: n.ID, Content: n.Content, CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt})
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encode export: %w", err)
	}

	key := ExportKey(userID, now)
	url, err := s.exporter.Export(ctx, key, body)
	if err != nil {
		return "", "", fmt.Errorf("export notes: %w", err)
	}
	s.metrics.CounterExports.Inc()
	return key, url, nil
}

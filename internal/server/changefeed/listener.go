package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Channel is the notification channel the notes trigger publishes on.
const Channel = "notes_changes"

// notificationConn is the part of *pgx.Conn the listener uses.
type notificationConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

var connect = func(ctx context.Context, dsn string) (notificationConn, error) {
	return pgx.Connect(ctx, dsn)
}

// NoteReader loads the current row for a notification.
type NoteReader interface {
	Get(ctx context.Context, userID, id string) (*models.Note, error)
}

type Publisher interface {
	Publish(c models.Change)
}

type Listener struct {
	dsn       string
	notes     NoteReader
	publisher Publisher
	log       logging.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewListener(dsn string, notes NoteReader, publisher Publisher, log logging.Logger) *Listener {
	return &Listener{
		dsn:        dsn,
		notes:      notes,
		publisher:  publisher,
		log:        log.With("module", "changefeed"),
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Run follows the notification channel until ctx is cancelled, reconnecting
// with exponential backoff when the connection drops.
func (l *Listener) Run(ctx context.Context) error {
	delay := l.minBackoff
	for {
		err := l.listenOnce(ctx, func() { delay = l.minBackoff })
		if ctx.Err() != nil {
			return nil
		}

		l.log.Warn(ctx, "change listener disconnected", "error", err, "retry_in", delay)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		delay = min(delay*2, l.maxBackoff)
	}
}

func (l *Listener) listenOnce(ctx context.Context, connected func()) error {
	conn, err := connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	connected()
	l.log.Info(ctx, "listening for note changes", "channel", Channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.handle(ctx, n.Payload)
	}
}

type payload struct {
	Op        models.ChangeOp `json:"op"`
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
}

// parsePayload decodes a trigger notification.
func parsePayload(raw string) (payload, error) {
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return payload{}, err
	}
	switch p.Op {
	case models.OpInsert, models.OpUpdate, models.OpDelete:
	default:
		return payload{}, fmt.Errorf("unknown op %q", p.Op)
	}
	if p.ID == "" || p.UserID == "" {
		return payload{}, errors.New("missing id or user_id")
	}
	return p, nil
}

func (l *Listener) handle(ctx context.Context, raw string) {
	p, err := parsePayload(raw)
	if err != nil {
		l.log.Warn(ctx, "bad change notification", "payload", raw, "error", err)
		return
	}

	change := models.Change{Op: p.Op, UserID: p.UserID}
	if p.Op == models.OpDelete {
		change.Old = &models.Note{
			ID:        p.ID,
			UserID:    p.UserID,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
			IsDeleted: true,
		}
	} else {
		n, err := l.notes.Get(ctx, p.UserID, p.ID)
		if err != nil {
			// purged between the write and the read; the delete follows
			if !errors.Is(err, common.ErrorNotFound) {
				l.log.Error(ctx, "reading changed note", "id", p.ID, "error", err)
			}
			return
		}
		change.New = n
	}

	l.log.Debug(ctx, "note changed", "op", p.Op, "id", p.ID, "user_id", p.UserID)
	l.publisher.Publish(change)
}

package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/notes"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"go.uber.org/multierr"
)

// RemoteStore is the server side of reconciliation.
type RemoteStore interface {
	// Upsert writes the record keyed by id and returns it as stored.
	Upsert(ctx context.Context, n *models.Note) (*models.Note, error)

	// SelectUpdatedSince returns the user's records with UpdatedAt > after.
	SelectUpdatedSince(ctx context.Context, userID string, after int64) ([]*models.Note, error)

	// Subscribe delivers the user's change events to onEvent, one at a time,
	// until the subscription is torn down.
	Subscribe(ctx context.Context, userID string, onEvent func(models.ChangeEvent)) (Subscription, error)
}

type Subscription interface {
	Unsubscribe()
}

type Option func(*Engine)

// WithClock replaces the ms wall clock.
func WithClock(now func() int64) Option {
	return func(e *Engine) { e.now = now }
}

type Engine struct {
	local  notes.Repository
	remote RemoteStore
	log    logging.Logger
	now    func() int64

	ctx    context.Context
	cancel context.CancelFunc

	// passMu serializes passes; rebindMu serializes session transitions.
	passMu   sync.Mutex
	rebindMu sync.Mutex

	mu       sync.Mutex
	userID   string
	sub      Subscription
	inflight map[string]struct{}
	queued   bool
	closed   bool

	wg sync.WaitGroup
}

func New(local notes.Repository, remote RemoteStore, log logging.Logger, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		local:    local,
		remote:   remote,
		log:      log.With("module", "syncengine"),
		now:      common.NowMillis,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// UserID returns the bound user, or "" when signed out.
func (e *Engine) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// Rebind switches the engine to userID. The previous subscription is always
// torn down first. For a non-empty id a new subscription is opened and a
// pass runs before Rebind returns; its error is returned.
func (e *Engine) Rebind(ctx context.Context, userID string) error {
	e.rebindMu.Lock()
	defer e.rebindMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	prev := e.sub
	e.sub = nil
	e.userID = userID
	e.mu.Unlock()

	if prev != nil {
		prev.Unsubscribe()
	}
	if userID == "" {
		e.log.Info(ctx, "session cleared, sync disabled")
		return nil
	}

	sub, err := e.remote.Subscribe(e.ctx, userID, e.onPush)
	if err != nil {
		e.log.Warn(ctx, "subscribe failed", "user_id", userID, "error", err)
	} else {
		e.mu.Lock()
		e.sub = sub
		e.mu.Unlock()
	}

	e.log.Info(ctx, "session bound", "user_id", userID)
	return e.Synchronize(ctx)
}

func (e *Engine) onPush(ev models.ChangeEvent) {
	if err := e.HandleRemoteChange(e.ctx, ev); err != nil {
		e.log.Warn(e.ctx, "remote change not applied", "kind", ev.Kind, "error", err)
	}
}

// Synchronize runs one upload+download pass for the bound user. It is a
// no-op when no user is bound. Per-record upload failures leave the record
// dirty and are returned combined with any download failure; both are
// transient and retried by the next pass.
func (e *Engine) Synchronize(ctx context.Context) error {
	e.passMu.Lock()
	defer e.passMu.Unlock()
	return e.pass(ctx)
}

func (e *Engine) pass(ctx context.Context) error {
	userID := e.UserID()
	if userID == "" {
		return nil
	}

	// The watermark is taken before uploading so that records we mark
	// synced in this pass do not hide remote changes made in the meantime.
	watermark, err := e.watermark(ctx, userID)
	if err != nil {
		return err
	}

	uploadErr := e.upload(ctx, userID)

	if err := e.download(ctx, userID, watermark); err != nil {
		e.log.Warn(ctx, "download failed", "watermark", watermark, "error", err)
		return multierr.Append(uploadErr, fmt.Errorf("download: %w", err))
	}
	return uploadErr
}

func (e *Engine) watermark(ctx context.Context, userID string) (int64, error) {
	n, err := e.local.MaxByField(ctx, userID, models.FieldLastSyncedAt)
	if errors.Is(err, common.ErrorNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("watermark: %w", err)
	}
	return n.LastSyncedAt, nil
}

// Trigger schedules a background pass. Triggers arriving while a pass is
// already queued are coalesced into it.
func (e *Engine) Trigger() {
	e.mu.Lock()
	if e.closed || e.queued {
		e.mu.Unlock()
		return
	}
	e.queued = true
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()

		e.passMu.Lock()
		defer e.passMu.Unlock()

		e.mu.Lock()
		e.queued = false
		e.mu.Unlock()

		if err := e.pass(e.ctx); err != nil {
			e.log.Warn(e.ctx, "background sync incomplete", "error", err)
		}
	}()
}

// Wait blocks until every triggered pass has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Status reports the indicator for n.
func (e *Engine) Status(n *models.Note) models.SyncStatus {
	if n.IsSynced {
		return models.StatusSynced
	}
	e.mu.Lock()
	_, uploading := e.inflight[n.ID]
	e.mu.Unlock()
	if uploading {
		return models.StatusSyncing
	}
	return models.StatusUnsynced
}

func (e *Engine) setInflight(id string, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if on {
		e.inflight[id] = struct{}{}
	} else {
		delete(e.inflight, id)
	}
}

// Close tears the subscription down, cancels background work and waits for
// triggered passes to finish.
func (e *Engine) Close() {
	e.rebindMu.Lock()
	defer e.rebindMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	sub := e.sub
	e.sub = nil
	e.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	e.cancel()
	e.wg.Wait()
}

package client

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/client/syncengine"
	"github.com/dmitrijs2005/notesync/internal/rpc"
)

// Subscription is a live change-feed stream kept open in the background.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Unsubscribe stops the stream and waits until no more events can be
// delivered. It must not be called from inside the event callback.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Subscribe opens the user's change feed. Connection failures are not
// returned: the stream is re-established with exponential backoff until
// Unsubscribe is called or ctx is cancelled. Events are delivered to
// onEvent one at a time; malformed ones are dropped.
func (s *GRPCClient) Subscribe(ctx context.Context, userID string, onEvent func(models.ChangeEvent)) (syncengine.Subscription, error) {
	if userID == "" {
		return nil, ErrNotSignedIn
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		s.subscribeLoop(ctx, userID, onEvent)
	}()
	return sub, nil
}

func (s *GRPCClient) subscribeLoop(ctx context.Context, userID string, onEvent func(models.ChangeEvent)) {
	delay := s.minBackoff
	refreshed := false
	dropped := false

	for {
		received, err := s.streamOnce(ctx, userID, onEvent, func() {
			if dropped {
				s.reconnected()
			}
		})
		if ctx.Err() != nil {
			return
		}
		if received {
			delay = s.minBackoff
			refreshed = false
		}

		dropped = true

		if isTokenExpired(err) && !refreshed {
			refreshed = true
			if rerr := s.refresh(ctx); rerr == nil {
				continue
			}
		}

		s.log.Warn(ctx, "change feed disconnected", "user_id", userID, "error", err, "retry_in", delay)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		delay = min(delay*2, s.maxBackoff)
	}
}

// streamOnce runs a single stream until it fails. connected runs once the
// stream is open; received reports whether at least one message arrived.
func (s *GRPCClient) streamOnce(ctx context.Context, userID string, onEvent func(models.ChangeEvent), connected func()) (received bool, err error) {
	access, _ := s.Tokens()
	stream, err := s.client.Subscribe(withAccessToken(ctx, access), rpc.EncodeString(rpc.FieldUserID, userID))
	if err != nil {
		return false, err
	}
	s.log.Debug(ctx, "change feed connected", "user_id", userID)
	connected()

	for {
		msg, err := stream.Recv()
		if err != nil {
			return received, err
		}
		received = true

		ev, err := rpc.DecodeEvent(msg)
		if err != nil {
			s.log.Debug(ctx, "malformed change event dropped", "error", err)
			continue
		}
		onEvent(eventFromWire(ev))
	}
}

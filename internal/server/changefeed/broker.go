// Package changefeed turns committed note changes into per-user event
// streams. A Listener follows Postgres notifications and feeds a Broker,
// which fans them out to the open Subscribe streams of the owning user.
package changefeed

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/metrics"
	"github.com/dmitrijs2005/notesync/internal/server/models"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Subscriber receives the changes of one user. Its channel is closed when
// the subscriber is removed, either by Close or because it fell behind.
type Subscriber struct {
	userID  string
	ch      chan models.Change
	broker  *Broker
	lagging bool
}

func (s *Subscriber) Events() <-chan models.Change { return s.ch }

// Lagging reports whether the broker dropped the subscriber for not keeping
// up. Only meaningful once Events is closed.
func (s *Subscriber) Lagging() bool {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	return s.lagging
}

func (s *Subscriber) Close() {
	s.broker.remove(s, false)
}

type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscriber]struct{}
	buffer int
	closed bool

	metrics *metrics.Manager
	log     logging.Logger
}

func NewBroker(buffer int, mm *metrics.Manager, log logging.Logger) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:    make(map[string]map[*Subscriber]struct{}),
		buffer:  buffer,
		metrics: mm,
		log:     log.With("module", "broker"),
	}
}

// Subscribe registers a subscriber for userID. On a closed broker the
// returned subscriber's channel is already closed.
func (b *Broker) Subscribe(userID string) *Subscriber {
	s := &Subscriber{userID: userID, ch: make(chan models.Change, b.buffer), broker: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	set, ok := b.subs[userID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.subs[userID] = set
	}
	set[s] = struct{}{}
	b.metrics.GaugeSubscribers.Inc()
	return s
}

// Publish queues c for every subscriber of c.UserID without blocking.
// A subscriber whose queue is full is dropped.
func (b *Broker) Publish(c models.Change) {
	b.mu.Lock()
	var lagging []*Subscriber
	for s := range b.subs[c.UserID] {
		select {
		case s.ch <- c:
			b.metrics.CounterEventsPublished.Inc()
		default:
			lagging = append(lagging, s)
		}
	}
	b.mu.Unlock()

	for _, s := range lagging {
		b.metrics.CounterEventsDropped.Inc()
		b.log.Warn(context.Background(), "dropping lagging subscriber", "user_id", s.userID)
		b.remove(s, true)
	}
}

func (b *Broker) remove(s *Subscriber, lagging bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[s.userID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(b.subs, s.userID)
	}
	s.lagging = lagging
	close(s.ch)
	b.metrics.GaugeSubscribers.Dec()
}

// Close removes every subscriber. Later subscriptions are closed at once.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for userID, set := range b.subs {
		for s := range set {
			close(s.ch)
			b.metrics.GaugeSubscribers.Dec()
		}
		delete(b.subs, userID)
	}
}

// Subscribers returns the number of open subscriptions for userID.
func (b *Broker) Subscribers(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}

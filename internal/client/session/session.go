// Package session holds the identity of the signed-in user and notifies
// listeners on every authentication transition (sign-in, sign-out, restore).
package session

import (
	"context"
	"sync"
)

// Listener receives the new user id; an empty id means signed out.
type Listener func(ctx context.Context, userID string)

type Session struct {
	mu        sync.RWMutex
	userID    string
	listeners map[int]Listener
	order     []int
	next      int
}

func New() *Session {
	return &Session{listeners: make(map[int]Listener)}
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Authenticated() bool {
	return s.UserID() != ""
}

// OnChange registers l and returns a function that unregisters it.
func (s *Session) OnChange(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	s.listeners[id] = l
	s.order = append(s.order, id)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Bind sets the current user and notifies listeners in registration order.
// Listeners run on the caller's goroutine, outside the lock. They are
// notified even when the id is unchanged, as a restore re-announces the
// same user.
func (s *Session) Bind(ctx context.Context, userID string) {
	s.mu.Lock()
	s.userID = userID
	ls := make([]Listener, 0, len(s.listeners))
	for _, id := range s.order {
		if l, ok := s.listeners[id]; ok {
			ls = append(ls, l)
		}
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(ctx, userID)
	}
}

// Clear signs the session out.
func (s *Session) Clear(ctx context.Context) {
	s.Bind(ctx, "")
}

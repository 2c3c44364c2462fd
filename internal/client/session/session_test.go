package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_BindNotifiesInOrder(t *testing.T) {
	s := New()
	var calls []string
	s.OnChange(func(_ context.Context, id string) { calls = append(calls, "a:"+id) })
	s.OnChange(func(_ context.Context, id string) { calls = append(calls, "b:"+id) })

	s.Bind(context.Background(), "u1")
	assert.Equal(t, "u1", s.UserID())
	assert.True(t, s.Authenticated())

	s.Clear(context.Background())
	assert.Equal(t, "", s.UserID())
	assert.False(t, s.Authenticated())

	assert.Equal(t, []string{"a:u1", "b:u1", "a:", "b:"}, calls)
}

func TestSession_UnregisterStopsNotifications(t *testing.T) {
	s := New()
	n := 0
	off := s.OnChange(func(context.Context, string) { n++ })

	s.Bind(context.Background(), "u1")
	off()
	s.Bind(context.Background(), "u2")

	assert.Equal(t, 1, n)
}

func TestSession_ListenerMayReadUserID(t *testing.T) {
	s := New()
	var seen string
	s.OnChange(func(context.Context, string) { seen = s.UserID() })

	s.Bind(context.Background(), "u9")
	assert.Equal(t, "u9", seen)
}

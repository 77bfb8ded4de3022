package service

import (
	"context"
	"testing"
	"time"

	"modqueue/internal/featureflags"
	"modqueue/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, max int, flags string) *SessionRegistry {
	t.Helper()
	r, err := NewSessionRegistry(RegistryOptions{
		MaxSessions: max,
		Flags:       featureflags.NewManager(flags),
		UndoWindow:  5 * time.Second,
	})
	require.NoError(t, err)
	return r
}

func TestNewSessionRegistry_RejectsZeroSize(t *testing.T) {
	_, err := NewSessionRegistry(RegistryOptions{MaxSessions: 0})
	assert.Error(t, err)
}

func TestSessionRegistry_CreateGetDelete(t *testing.T) {
	r := newTestRegistry(t, 4, "")

	s := r.Create()
	_, err := uuid.Parse(s.ID())
	require.NoError(t, err)
	assert.True(t, s.IsLoading())

	got, ok := r.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Delete(s.ID()))
	assert.False(t, r.Delete(s.ID()))
	_, ok = r.Get(s.ID())
	assert.False(t, ok)
}

func TestSessionRegistry_SessionsAreIndependent(t *testing.T) {
	r := newTestRegistry(t, 4, "")
	a, b := r.Create(), r.Create()
	a.Load(pendingPosts(1))
	b.Load(pendingPosts(1))

	_, err := a.TransitionSingle(context.Background(), 1, models.StatusApproved, "")
	require.NoError(t, err)

	assert.True(t, a.HasPendingUndo())
	assert.False(t, b.HasPendingUndo())
	assert.Equal(t, models.StatusPending, mustFind(t, b, 1).Status)
}

func TestSessionRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	r := newTestRegistry(t, 2, "")
	first := r.Create()
	second := r.Create()

	_, ok := r.Get(first.ID())
	require.True(t, ok)
	third := r.Create()

	assert.Equal(t, 2, r.Len())
	_, ok = r.Get(second.ID())
	assert.False(t, ok)
	_, ok = r.Get(first.ID())
	assert.True(t, ok)
	_, ok = r.Get(third.ID())
	assert.True(t, ok)
}

func TestSessionRegistry_FlagsSelectBehavior(t *testing.T) {
	r := newTestRegistry(t, 4, "full_single_undo=on,legacy_select_all=on")
	s := r.Create()
	s.Load(pendingPosts(1, 2, 3))

	s.ToggleSelect(1)
	s.ToggleSelect(3)
	assert.Empty(t, s.SelectAll([]uint{1, 2}), "count mode clears a same-size selection")

	_, err := s.TransitionSingle(context.Background(), 2, models.StatusRejected, "spam")
	require.NoError(t, err)
	require.True(t, s.RevertLastAction(context.Background()))
	assert.Empty(t, mustFind(t, s, 2).RejectionReason, "full restore drops the written reason")
}

func TestSessionRegistry_Each(t *testing.T) {
	r := newTestRegistry(t, 4, "")
	ids := map[string]bool{}
	for i := 0; i < 3; i++ {
		ids[r.Create().ID()] = true
	}

	seen := map[string]bool{}
	r.Each(func(s *ModerationSession) { seen[s.ID()] = true })
	assert.Equal(t, ids, seen)
}

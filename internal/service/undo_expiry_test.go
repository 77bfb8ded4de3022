package service

import (
	"context"
	"testing"
	"time"

	"modqueue/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUndoExpiry_InvalidSpec(t *testing.T) {
	r := newTestRegistry(t, 2, "")
	_, err := NewUndoExpiry(r, "not a spec", time.Second)
	assert.Error(t, err)
}

func TestUndoExpiry_Sweep(t *testing.T) {
	r := newTestRegistry(t, 4, "")
	stale, fresh, idle := r.Create(), r.Create(), r.Create()
	for _, s := range []*ModerationSession{stale, fresh, idle} {
		s.Load(pendingPosts(1))
	}

	base := time.Now()
	stale.now = func() time.Time { return base.Add(-10 * time.Second) }
	fresh.now = func() time.Time { return base }
	_, err := stale.TransitionSingle(context.Background(), 1, models.StatusApproved, "")
	require.NoError(t, err)
	_, err = fresh.TransitionSingle(context.Background(), 1, models.StatusApproved, "")
	require.NoError(t, err)

	e, err := NewUndoExpiry(r, "@every 1s", 5*time.Second)
	require.NoError(t, err)
	e.now = func() time.Time { return base.Add(time.Second) }

	assert.Equal(t, 1, e.Sweep(context.Background()))
	assert.False(t, stale.HasPendingUndo())
	assert.True(t, fresh.HasPendingUndo())
	assert.False(t, idle.HasPendingUndo())
}

func TestUndoExpiry_StartStop(t *testing.T) {
	r := newTestRegistry(t, 2, "")
	s := r.Create()
	s.Load(pendingPosts(1))
	s.now = func() time.Time { return time.Now().Add(-time.Minute) }
	_, err := s.TransitionSingle(context.Background(), 1, models.StatusApproved, "")
	require.NoError(t, err)

	e, err := NewUndoExpiry(r, "@every 1s", time.Second)
	require.NoError(t, err)
	e.Start()
	defer e.Stop()

	assert.Eventually(t, func() bool { return !s.HasPendingUndo() }, 3*time.Second, 50*time.Millisecond)
}

package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(testEventuallyTimeout):
		t.Fatal("no message delivered")
		return nil
	}
}

func TestHub_BroadcastIsScopedToSession(t *testing.T) {
	hub := NewHub()
	a, err := hub.Register("s1", nil)
	require.NoError(t, err)
	b, err := hub.Register("s2", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, hub.Broadcast("s1", []byte("hello")))
	assert.Equal(t, "hello", string(receive(t, a)))
	assert.Empty(t, b.Send)
	assert.Zero(t, hub.Broadcast("missing", []byte("x")))
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register("s1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Count("s1"))

	hub.Unregister(c)
	hub.Unregister(c)
	assert.Zero(t, hub.Count("s1"))
	_, ok := <-c.Send
	assert.False(t, ok)
}

func TestHub_ConnectionLimits(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerSession; i++ {
		_, err := hub.Register("s1", nil)
		require.NoError(t, err)
	}
	_, err := hub.Register("s1", nil)
	assert.ErrorIs(t, err, ErrSessionConnLimit)

	_, err = hub.Register("s2", nil)
	assert.NoError(t, err)
}

func TestHub_FullBufferDropsMessage(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register("s1", nil)
	require.NoError(t, err)
	for i := 0; i < sendBuffer; i++ {
		require.Equal(t, 1, hub.Broadcast("s1", []byte("m")))
	}
	assert.Zero(t, hub.Broadcast("s1", []byte("overflow")))
	assert.Len(t, c.Send, sendBuffer)
}

func TestHub_CloseSessionAndShutdown(t *testing.T) {
	hub := NewHub()
	a, err := hub.Register("s1", nil)
	require.NoError(t, err)
	b, err := hub.Register("s2", nil)
	require.NoError(t, err)

	hub.CloseSession("s1")
	_, ok := <-a.Send
	assert.False(t, ok)
	assert.Equal(t, 1, hub.Count("s2"))

	require.NoError(t, hub.Shutdown(context.Background()))
	_, ok = <-b.Send
	assert.False(t, ok)

	_, err = hub.Register("s3", nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_StartWiringForwardsSessionEvents(t *testing.T) {
	_, rdb := setupRedis(t)
	n := NewNotifier(rdb)
	hub := NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	watcher, err := hub.Register("s1", nil)
	require.NoError(t, err)
	other, err := hub.Register("s2", nil)
	require.NoError(t, err)

	require.NoError(t, n.PublishModeration(ctx, ModerationEvent{
		Type:        EventUndoAvailable,
		SessionID:   "s1",
		Action:      "single",
		PostIDs:     []uint{7},
		ExpiresInMS: 5000,
		Version:     3,
	}))

	var ev ModerationEvent
	require.NoError(t, json.Unmarshal(receive(t, watcher), &ev))
	assert.Equal(t, EventUndoAvailable, ev.Type)
	assert.Equal(t, []uint{7}, ev.PostIDs)
	assert.Equal(t, uint64(3), ev.Version)

	assert.Never(t, func() bool { return len(other.Send) > 0 }, 10*testPollInterval, testPollInterval)
}

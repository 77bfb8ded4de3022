package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestSessionChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "moderation:session:abc", SessionChannel("abc"))
}

func TestNotifier_NilClientIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishModeration(context.Background(), ModerationEvent{Type: EventUndoAvailable}))
	assert.NoError(t, n.StartSessionSubscriber(context.Background(), func(string, ModerationEvent) {}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.PublishModeration(context.Background(), ModerationEvent{}))
}

func TestNotifier_PublishModeration(t *testing.T) {
	_, rdb := setupRedis(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, SessionChannel("s1"))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := NewNotifier(rdb)
	require.NoError(t, n.PublishModeration(ctx, ModerationEvent{
		Type:        EventUndoAvailable,
		SessionID:   "s1",
		Action:      "batch",
		PostIDs:     []uint{1, 2},
		ExpiresInMS: 5000,
	}))

	select {
	case msg := <-sub.Channel():
		var ev ModerationEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, EventUndoAvailable, ev.Type)
		assert.Equal(t, "batch", ev.Action)
		assert.Equal(t, []uint{1, 2}, ev.PostIDs)
		assert.Equal(t, int64(5000), ev.ExpiresInMS)
		assert.False(t, ev.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestNotifier_StartSessionSubscriber(t *testing.T) {
	mr, rdb := setupRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan ModerationEvent, 4)
	require.NoError(t, n.StartSessionSubscriber(ctx, func(_ string, ev ModerationEvent) {
		events <- ev
	}))

	mr.Publish(SessionChannel("s2"), "{garbage")
	require.NoError(t, n.PublishModeration(context.Background(), ModerationEvent{
		Type:      EventUndoExpired,
		SessionID: "s2",
	}))

	select {
	case ev := <-events:
		assert.Equal(t, EventUndoExpired, ev.Type)
		assert.Equal(t, "s2", ev.SessionID)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

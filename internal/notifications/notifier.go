// Package notifications publishes moderation session events over Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"modqueue/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Event types published on a session channel.
const (
	EventUndoAvailable = "undo_available"
	EventUndoApplied   = "undo_applied"
	EventUndoCleared   = "undo_cleared"
	EventUndoExpired   = "undo_expired"
)

const (
	sessionChannelPrefix  = "moderation:session:"
	sessionChannelPattern = sessionChannelPrefix + "*"
)

// ModerationEvent is the JSON payload published for a session.
type ModerationEvent struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"session_id"`
	Action      string    `json:"action,omitempty"`
	Status      string    `json:"status,omitempty"`
	PostIDs     []uint    `json:"post_ids,omitempty"`
	ExpiresInMS int64     `json:"expires_in_ms,omitempty"`

	// Version is the undo ledger version of the action the event concerns.
	// Later undo_* events carry the version of the undo_available they end.
	Version uint64    `json:"version,omitempty"`
	At      time.Time `json:"at"`
}

// SessionChannel returns the pub/sub channel for a review session.
func SessionChannel(sessionID string) string {
	return sessionChannelPrefix + sessionID
}

// Notifier provides helpers to publish moderation events into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishModeration sends ev to its session channel. A nil client is a no-op.
func (n *Notifier) PublishModeration(ctx context.Context, ev ModerationEvent) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.rdb.Publish(ctx, SessionChannel(ev.SessionID), payload).Err()
}

// StartSessionSubscriber subscribes to every session channel and calls onEvent
// for each decodable message until ctx is cancelled.
func (n *Notifier) StartSessionSubscriber(
	ctx context.Context, onEvent func(channel string, ev ModerationEvent),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, sessionChannelPattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", sessionChannelPattern, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev ModerationEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					middleware.Logger.Warn("dropping malformed moderation event",
						slog.String("channel", msg.Channel),
						slog.String("error", err.Error()))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in session subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())))
						}
					}()
					onEvent(msg.Channel, ev)
				}()
			}
		}
	}()

	return nil
}

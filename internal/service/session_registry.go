package service

import (
	"fmt"
	"log/slog"
	"time"

	"modqueue/internal/featureflags"
	"modqueue/internal/middleware"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// RegistryOptions configures a SessionRegistry.
type RegistryOptions struct {
	MaxSessions int
	Flags       *featureflags.Manager
	UndoWindow  time.Duration
	Publisher   EventPublisher
	Logger      *slog.Logger
	Now         func() time.Time
}

// SessionRegistry indexes live review sessions by id. When full, the least
// recently used session is dropped.
type SessionRegistry struct {
	sessions *lru.Cache[string, *ModerationSession]
	opts     RegistryOptions
}

// NewSessionRegistry builds a registry holding at most opts.MaxSessions sessions.
func NewSessionRegistry(opts RegistryOptions) (*SessionRegistry, error) {
	if opts.Logger == nil {
		opts.Logger = middleware.Logger
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	sessions, err := lru.NewWithEvict(opts.MaxSessions, func(id string, _ *ModerationSession) {
		middleware.ActiveSessions.Dec()
		logger.Debug("session dropped", slog.String("session_id", id))
	})
	if err != nil {
		return nil, fmt.Errorf("create session registry: %w", err)
	}
	return &SessionRegistry{sessions: sessions, opts: opts}, nil
}

// Create starts a new empty session. Feature flags are evaluated per session id.
func (r *SessionRegistry) Create() *ModerationSession {
	id := uuid.NewString()

	mode := SelectAllBySet
	if r.opts.Flags.Enabled(featureflags.LegacySelectAll, id) {
		mode = SelectAllByCount
	}
	session := NewModerationSession(id, SessionOptions{
		FullSingleUndo: r.opts.Flags.Enabled(featureflags.FullSingleUndo, id),
		SelectAllMode:  mode,
		UndoWindow:     r.opts.UndoWindow,
		Publisher:      r.opts.Publisher,
		Logger:         r.opts.Logger,
		Now:            r.opts.Now,
	})

	r.sessions.Add(id, session)
	middleware.ActiveSessions.Inc()
	r.opts.Logger.Info("session created", slog.String("session_id", id))
	return session
}

// Get returns the session with id and marks it recently used.
func (r *SessionRegistry) Get(id string) (*ModerationSession, bool) {
	return r.sessions.Get(id)
}

// Delete drops the session with id and reports whether it existed.
func (r *SessionRegistry) Delete(id string) bool {
	return r.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	return r.sessions.Len()
}

// Each calls fn for every live session, oldest first, without touching recency.
func (r *SessionRegistry) Each(fn func(*ModerationSession)) {
	for _, session := range r.sessions.Values() {
		fn(session)
	}
}

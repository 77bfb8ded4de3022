// Package service holds the moderation state engine and the host services that
// feed, expire and index review sessions.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"modqueue/internal/middleware"
	"modqueue/internal/models"
	"modqueue/internal/notifications"
	"modqueue/internal/repository"
)

// EventPublisher receives moderation events as commands complete.
type EventPublisher interface {
	PublishModeration(ctx context.Context, ev notifications.ModerationEvent) error
}

// SessionOptions configures a ModerationSession.
type SessionOptions struct {
	FullSingleUndo bool
	SelectAllMode  SelectAllMode
	// UndoWindow is advertised to subscribers as expires_in_ms.
	UndoWindow time.Duration
	Publisher  EventPublisher
	Logger     *slog.Logger
	Now        func() time.Time
}

// TransitionResult reports what a transition command did.
type TransitionResult struct {
	Applied bool          `json:"applied"`
	Action  string        `json:"action"`
	Status  models.Status `json:"status"`
	PostIDs []uint        `json:"postIds"`
}

// Preview is a single post with the ids loaded around it. Zero means none.
type Preview struct {
	Post   models.Post `json:"post"`
	PrevID uint        `json:"prevId,omitempty"`
	NextID uint        `json:"nextId,omitempty"`
}

// SessionState is the aggregate view of a session.
type SessionState struct {
	ID          string                `json:"id"`
	Loading     bool                  `json:"loading"`
	LoadError   string                `json:"loadError,omitempty"`
	Filter      models.Status         `json:"filter"`
	Counts      map[models.Status]int `json:"counts"`
	Total       int                   `json:"total"`
	Selection   []uint                `json:"selection"`
	PendingUndo bool                  `json:"pendingUndo"`
	UndoAction  string                `json:"undoAction,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
}

// ModerationSession is one reviewer's working set: the loaded posts, the undo
// slot, the batch selection and the current status filter. All state is
// guarded by a single mutex so commands never interleave. Events are published
// under pubMu, taken before mu is released, so they go out in command order.
type ModerationSession struct {
	mu        sync.Mutex
	pubMu     sync.Mutex
	id        string
	repo      repository.PostRepository
	ledger    *UndoLedger
	selection *SelectionTracker
	filter    models.Status
	loadErr   error
	createdAt time.Time

	undoWindow time.Duration
	publisher  EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewModerationSession creates an empty session that reports itself as loading
// until posts arrive.
func NewModerationSession(id string, opts SessionOptions) *ModerationSession {
	if opts.Logger == nil {
		opts.Logger = middleware.Logger
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ModerationSession{
		id:         id,
		repo:       repository.NewPostRepository(),
		ledger:     NewUndoLedger(opts.FullSingleUndo),
		selection:  NewSelectionTracker(opts.SelectAllMode),
		filter:     models.StatusPending,
		createdAt:  opts.Now(),
		undoWindow: opts.UndoWindow,
		publisher:  opts.Publisher,
		logger:     opts.Logger.With(slog.String("session_id", id)),
		now:        opts.Now,
	}
}

// ID returns the session identifier.
func (s *ModerationSession) ID() string {
	return s.id
}

// Load replaces every post in the session.
func (s *ModerationSession) Load(posts []models.Post) {
	s.mu.Lock()
	s.repo.Load(posts)
	s.loadErr = nil
	s.mu.Unlock()

	s.logger.Info("posts loaded", slog.Int("count", len(posts)))
}

func (s *ModerationSession) failLoad(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()

	s.logger.Error("post load failed", slog.String("error", err.Error()))
}

// TransitionSingle moves one post to status. Rejections record reason, or
// DefaultRejectionReason when reason is empty. An unknown id changes nothing
// and returns Applied=false without error.
func (s *ModerationSession) TransitionSingle(ctx context.Context, id uint, status models.Status, reason string) (TransitionResult, error) {
	result := TransitionResult{Action: models.ActionSingle.String(), Status: status, PostIDs: []uint{}}
	if !status.IsTransitionTarget() {
		middleware.InvalidTransitions.Inc()
		return result, models.NewInvalidStatusError(string(status))
	}

	s.mu.Lock()
	post, ok := s.repo.FindByID(id)
	if !ok {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "transition target not found", slog.Uint64("post_id", uint64(id)))
		return result, nil
	}

	s.ledger.Record(models.NewSingleAction(models.NewPostSnapshot(post)), s.now())
	fields := models.PostFields{Status: &status}
	if status == models.StatusRejected {
		if reason == "" {
			reason = models.DefaultRejectionReason
		}
		fields.RejectionReason = &reason
	}
	s.repo.SetFields(id, fields)
	version := s.ledger.Version()
	s.handOffToPublish()
	defer s.pubMu.Unlock()

	result.Applied = true
	result.PostIDs = []uint{id}
	middleware.TransitionsTotal.WithLabelValues(result.Action, string(status)).Inc()
	s.logger.InfoContext(ctx, "post transitioned",
		slog.Uint64("post_id", uint64(id)),
		slog.String("status", string(status)))
	s.publishUndoAvailable(ctx, result, version)
	return result, nil
}

// TransitionBatch moves every loaded post whose id appears in ids to status.
// Unknown and repeated ids are ignored. The undo slot is overwritten even when
// nothing matched. Rejection reasons are not written and the selection is left
// untouched.
func (s *ModerationSession) TransitionBatch(ctx context.Context, ids []uint, status models.Status) (TransitionResult, error) {
	result := TransitionResult{Action: models.ActionBatch.String(), Status: status, PostIDs: []uint{}}
	if !status.IsTransitionTarget() {
		middleware.InvalidTransitions.Inc()
		return result, models.NewInvalidStatusError(string(status))
	}

	want := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	match := func(p models.Post) bool {
		_, ok := want[p.ID]
		return ok
	}

	s.mu.Lock()
	subset := s.repo.Filter(match)
	snapshots := make([]models.PostSnapshot, 0, len(subset))
	for _, p := range subset {
		snapshots = append(snapshots, models.NewPostSnapshot(p))
		result.PostIDs = append(result.PostIDs, p.ID)
	}
	s.ledger.Record(models.NewBatchAction(snapshots), s.now())
	s.repo.UpdateWhere(match, models.PostFields{Status: &status})
	version := s.ledger.Version()
	s.handOffToPublish()
	defer s.pubMu.Unlock()

	result.Applied = len(subset) > 0
	middleware.TransitionsTotal.WithLabelValues(result.Action, string(status)).Add(float64(len(subset)))
	s.logger.InfoContext(ctx, "batch transitioned",
		slog.Int("requested", len(ids)),
		slog.Int("matched", len(subset)),
		slog.String("status", string(status)))
	s.publishUndoAvailable(ctx, result, version)
	return result, nil
}

// ToggleSelect flips id in the selection and reports whether it is now selected.
func (s *ModerationSession) ToggleSelect(id uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Toggle(id)
	return s.selection.Contains(id)
}

// SelectAll selects eligible, or clears the selection when it already covers eligible.
func (s *ModerationSession) SelectAll(eligible []uint) []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.SelectAll(eligible)
	return s.selection.IDs()
}

// SelectAllPending runs SelectAll with every pending post as the eligible set.
func (s *ModerationSession) SelectAllPending() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	var eligible []uint
	for p := range s.repo.ListByStatus(models.StatusPending) {
		eligible = append(eligible, p.ID)
	}
	s.selection.SelectAll(eligible)
	return s.selection.IDs()
}

// ClearSelection empties the selection.
func (s *ModerationSession) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Clear()
}

// RevertLastAction undoes the recorded action and reports whether there was one.
func (s *ModerationSession) RevertLastAction(ctx context.Context) bool {
	s.mu.Lock()
	version := s.ledger.Version()
	action, ok := s.ledger.Revert(s.repo)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.handOffToPublish()
	defer s.pubMu.Unlock()

	kind := action.Kind().String()
	middleware.UndoTotal.WithLabelValues("reverted", kind).Inc()
	s.logger.InfoContext(ctx, "action reverted", slog.String("action", kind), slog.Int("posts", action.Len()))
	s.publish(ctx, notifications.ModerationEvent{
		Type:    notifications.EventUndoApplied,
		Action:  kind,
		PostIDs: snapshotIDs(action),
		Version: version,
	})
	return true
}

// ClearPendingAction drops the recorded action without restoring anything.
func (s *ModerationSession) ClearPendingAction(ctx context.Context) {
	s.mu.Lock()
	action := s.ledger.Action()
	version := s.ledger.Version()
	s.ledger.Clear()
	if action.IsEmpty() {
		s.mu.Unlock()
		return
	}
	s.handOffToPublish()
	defer s.pubMu.Unlock()

	middleware.UndoTotal.WithLabelValues("cleared", action.Kind().String()).Inc()
	s.publish(ctx, notifications.ModerationEvent{
		Type:    notifications.EventUndoCleared,
		Action:  action.Kind().String(),
		Version: version,
	})
}

// ExpirePendingAction clears the recorded action if it is older than window.
// An action recorded within the window survives.
func (s *ModerationSession) ExpirePendingAction(ctx context.Context, now time.Time, window time.Duration) bool {
	s.mu.Lock()
	action := s.ledger.Action()
	version := s.ledger.Version()
	if !s.ledger.ClearIfExpired(now, window) {
		s.mu.Unlock()
		return false
	}
	s.handOffToPublish()
	defer s.pubMu.Unlock()

	middleware.UndoTotal.WithLabelValues("expired", action.Kind().String()).Inc()
	s.logger.DebugContext(ctx, "undo window expired", slog.String("action", action.Kind().String()))
	s.publish(ctx, notifications.ModerationEvent{
		Type:    notifications.EventUndoExpired,
		Action:  action.Kind().String(),
		Version: version,
	})
	return true
}

// SetFilter changes the status shown by VisiblePosts.
func (s *ModerationSession) SetFilter(status models.Status) error {
	if !status.Valid() {
		return models.NewInvalidStatusError(string(status))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = status
	return nil
}

// Filter returns the current status filter.
func (s *ModerationSession) Filter() models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Posts returns posts in load order, restricted to filter when it is non-nil.
func (s *ModerationSession) Posts(filter *models.Status) []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postsLocked(filter)
}

func (s *ModerationSession) postsLocked(filter *models.Status) []models.Post {
	if filter == nil {
		return s.repo.All()
	}
	out := []models.Post{}
	for p := range s.repo.ListByStatus(*filter) {
		out = append(out, p)
	}
	return out
}

// VisiblePosts returns the posts matching the current filter.
func (s *ModerationSession) VisiblePosts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	filter := s.filter
	return s.postsLocked(&filter)
}

// Post returns the post with id.
func (s *ModerationSession) Post(id uint) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.FindByID(id)
}

// Preview returns the post with id and its neighbors in load order.
func (s *ModerationSession) Preview(id uint) (Preview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.repo.FindByID(id)
	if !ok {
		return Preview{}, false
	}
	prev, next, _ := s.repo.Neighbors(id)
	return Preview{Post: post, PrevID: prev, NextID: next}, true
}

// Selection returns the selected ids in ascending order.
func (s *ModerationSession) Selection() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.IDs()
}

// HasPendingUndo reports whether RevertLastAction would do anything.
func (s *ModerationSession) HasPendingUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Pending()
}

// IsLoading reports whether posts have not been loaded yet.
func (s *ModerationSession) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.IsLoading()
}

// CountsByStatus returns the number of posts per status.
func (s *ModerationSession) CountsByStatus() map[models.Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.CountsByStatus()
}

// State returns a consistent view of the whole session.
func (s *ModerationSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SessionState{
		ID:          s.id,
		Loading:     s.repo.IsLoading(),
		Filter:      s.filter,
		Counts:      s.repo.CountsByStatus(),
		Total:       s.repo.Len(),
		Selection:   s.selection.IDs(),
		PendingUndo: s.ledger.Pending(),
		CreatedAt:   s.createdAt,
	}
	if st.PendingUndo {
		st.UndoAction = s.ledger.Action().Kind().String()
	}
	if s.loadErr != nil {
		st.LoadError = s.loadErr.Error()
	}
	return st
}

// handOffToPublish must be called with mu held. It takes pubMu and releases
// mu; the caller releases pubMu once its event is out.
func (s *ModerationSession) handOffToPublish() {
	s.pubMu.Lock()
	s.mu.Unlock()
}

func (s *ModerationSession) publishUndoAvailable(ctx context.Context, result TransitionResult, version uint64) {
	s.publish(ctx, notifications.ModerationEvent{
		Type:        notifications.EventUndoAvailable,
		Action:      result.Action,
		Status:      string(result.Status),
		PostIDs:     result.PostIDs,
		ExpiresInMS: s.undoWindow.Milliseconds(),
		Version:     version,
	})
}

func (s *ModerationSession) publish(ctx context.Context, ev notifications.ModerationEvent) {
	if s.publisher == nil {
		return
	}
	ev.SessionID = s.id
	ev.At = s.now().UTC()
	if err := s.publisher.PublishModeration(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "failed to publish moderation event",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()))
	}
}

func snapshotIDs(action models.RecentAction) []uint {
	ids := make([]uint, 0, action.Len())
	for _, snap := range action.Snapshots() {
		ids = append(ids, snap.ID())
	}
	return ids
}

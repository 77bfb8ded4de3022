package service

import (
	"time"

	"modqueue/internal/models"
	"modqueue/internal/repository"
)

// UndoLedger is the single-slot record of the most recent reversible action.
// Recording overwrites whatever was held before; there is no undo stack.
type UndoLedger struct {
	action     models.RecentAction
	recordedAt time.Time
	version    uint64

	// fullSingleRestore restores every captured field on single-post undo.
	// When false only the status is restored.
	fullSingleRestore bool
}

// NewUndoLedger returns an empty ledger.
func NewUndoLedger(fullSingleRestore bool) *UndoLedger {
	return &UndoLedger{fullSingleRestore: fullSingleRestore}
}

// Record replaces the slot with action.
func (l *UndoLedger) Record(action models.RecentAction, now time.Time) {
	l.action = action
	l.recordedAt = now
	l.version++
}

// Pending reports whether an action can be reverted.
func (l *UndoLedger) Pending() bool {
	return !l.action.IsEmpty()
}

// Action returns the held action.
func (l *UndoLedger) Action() models.RecentAction {
	return l.action
}

// RecordedAt returns when the held action was recorded.
func (l *UndoLedger) RecordedAt() time.Time {
	return l.recordedAt
}

// Version increases on every Record.
func (l *UndoLedger) Version() uint64 {
	return l.version
}

// Revert restores the posts captured by the held action and empties the slot.
// Snapshots whose post no longer exists are skipped. It returns the action
// that was reverted and false when the slot was already empty.
func (l *UndoLedger) Revert(repo repository.PostRepository) (models.RecentAction, bool) {
	action := l.action
	switch action.Kind() {
	case models.ActionEmpty:
		return action, false
	case models.ActionSingle:
		for _, snap := range action.Snapshots() {
			if _, ok := repo.FindByID(snap.ID()); !ok {
				continue
			}
			if l.fullSingleRestore {
				repo.Replace(snap.Post())
				continue
			}
			status := snap.Status()
			repo.SetFields(snap.ID(), models.PostFields{Status: &status})
		}
	case models.ActionBatch:
		for _, snap := range action.Snapshots() {
			repo.Replace(snap.Post())
		}
	}
	l.Clear()
	return action, true
}

// Clear empties the slot without touching any post.
func (l *UndoLedger) Clear() {
	l.action = models.RecentAction{}
	l.recordedAt = time.Time{}
}

// ClearIfExpired empties the slot when it holds an action recorded more than
// window before now. It reports whether the slot was cleared.
func (l *UndoLedger) ClearIfExpired(now time.Time, window time.Duration) bool {
	if !l.Pending() {
		return false
	}
	if now.Sub(l.recordedAt) <= window {
		return false
	}
	l.Clear()
	return true
}

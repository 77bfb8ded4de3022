package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"modqueue/internal/middleware"

	"github.com/robfig/cron/v3"
)

// UndoExpiry periodically clears undo entries that outlived their window in
// every registered session.
type UndoExpiry struct {
	cron     *cron.Cron
	registry *SessionRegistry
	window   time.Duration
	now      func() time.Time
}

// NewUndoExpiry schedules the sweep with a cron spec such as "@every 1s".
func NewUndoExpiry(registry *SessionRegistry, spec string, window time.Duration) (*UndoExpiry, error) {
	e := &UndoExpiry{
		cron:     cron.New(),
		registry: registry,
		window:   window,
		now:      time.Now,
	}
	if _, err := e.cron.AddFunc(spec, func() { e.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid undo sweep spec %q: %w", spec, err)
	}
	return e, nil
}

// Start runs the scheduler in its own goroutine.
func (e *UndoExpiry) Start() {
	e.cron.Start()
	middleware.Logger.Info("undo expiry started", slog.Duration("window", e.window))
}

// Stop halts the scheduler. The returned context is done once a running sweep finishes.
func (e *UndoExpiry) Stop() context.Context {
	return e.cron.Stop()
}

// Sweep expires stale undo entries and returns how many were cleared.
func (e *UndoExpiry) Sweep(ctx context.Context) int {
	now := e.now()
	cleared := 0
	e.registry.Each(func(s *ModerationSession) {
		if s.ExpirePendingAction(ctx, now, e.window) {
			cleared++
		}
	})
	return cleared
}

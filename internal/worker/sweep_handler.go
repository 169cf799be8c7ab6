package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/chetanraj-2002/real-coder-jam/internal/domain"
	"github.com/chetanraj-2002/real-coder-jam/internal/tasks"
)

// StaleUnlocker releases locks whose acquisition is older than the
// cutoff, returning the released keys.
type StaleUnlocker interface {
	UnlockStale(ctx context.Context, olderThan time.Duration) ([]domain.LockKey, error)
}

// ExpiryNotifier is told about each released lock so connected clients
// learn their locks evaporated.
type ExpiryNotifier interface {
	NotifyLockExpired(key domain.LockKey)
}

// LockSweepHandler runs the periodic stale-lock sweep against the
// authoritative store.
type LockSweepHandler struct {
	store    StaleUnlocker
	notifier ExpiryNotifier
}

// NewLockSweepHandler builds the handler.
func NewLockSweepHandler(store StaleUnlocker, notifier ExpiryNotifier) *LockSweepHandler {
	if store == nil {
		panic("StaleUnlocker cannot be nil for LockSweepHandler")
	}
	return &LockSweepHandler{store: store, notifier: notifier}
}

// ProcessTask implements asynq.Handler.
func (h *LockSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	var payload tasks.LockSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.OlderThanMinutes <= 0 {
		return fmt.Errorf("non-positive sweep cutoff %d: %w", payload.OlderThanMinutes, asynq.SkipRetry)
	}

	released, err := h.store.UnlockStale(ctx, time.Duration(payload.OlderThanMinutes)*time.Minute)
	if err != nil {
		logCtx.WithError(err).Error("Stale lock sweep failed")
		return fmt.Errorf("stale lock sweep: %w", err)
	}
	if h.notifier != nil {
		for _, key := range released {
			h.notifier.NotifyLockExpired(key)
		}
	}
	logCtx.WithField("released", len(released)).Info("Stale lock sweep completed")
	return nil
}

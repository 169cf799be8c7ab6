package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chetanraj-2002/real-coder-jam/internal/domain"
	"github.com/chetanraj-2002/real-coder-jam/internal/tasks"
)

type fakeUnlocker struct {
	released  []domain.LockKey
	err       error
	olderThan time.Duration
}

func (f *fakeUnlocker) UnlockStale(_ context.Context, olderThan time.Duration) ([]domain.LockKey, error) {
	f.olderThan = olderThan
	return f.released, f.err
}

type fakeNotifier struct {
	keys []domain.LockKey
}

func (f *fakeNotifier) NotifyLockExpired(key domain.LockKey) {
	f.keys = append(f.keys, key)
}

func TestLockSweepHandler_ReleasesAndNotifies(t *testing.T) {
	released := []domain.LockKey{
		{ProjectID: "p1", FileID: "f1"},
		{ProjectID: "p2", FileID: "f9"},
	}
	store := &fakeUnlocker{released: released}
	notifier := &fakeNotifier{}
	handler := NewLockSweepHandler(store, notifier)

	task, err := tasks.NewLockSweepTask(10)
	require.NoError(t, err)

	require.NoError(t, handler.ProcessTask(context.Background(), task))
	assert.Equal(t, 10*time.Minute, store.olderThan)
	assert.Equal(t, released, notifier.keys, "every released lock is announced")
}

func TestLockSweepHandler_NilNotifierTolerated(t *testing.T) {
	store := &fakeUnlocker{released: []domain.LockKey{{ProjectID: "p1", FileID: "f1"}}}
	handler := NewLockSweepHandler(store, nil)

	task, err := tasks.NewLockSweepTask(10)
	require.NoError(t, err)
	assert.NoError(t, handler.ProcessTask(context.Background(), task))
}

func TestLockSweepHandler_MalformedPayloadSkipsRetry(t *testing.T) {
	handler := NewLockSweepHandler(&fakeUnlocker{}, &fakeNotifier{})

	err := handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeLockSweep, []byte("not-json")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "bad payloads must not be retried")
}

func TestLockSweepHandler_NonPositiveCutoffSkipsRetry(t *testing.T) {
	handler := NewLockSweepHandler(&fakeUnlocker{}, &fakeNotifier{})

	task, err := tasks.NewLockSweepTask(0)
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestLockSweepHandler_StoreErrorIsRetryable(t *testing.T) {
	store := &fakeUnlocker{err: errors.New("redis down")}
	handler := NewLockSweepHandler(store, &fakeNotifier{})

	task, err := tasks.NewLockSweepTask(10)
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry), "transient store failures should retry")
}

package state

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chetanraj-2002/real-coder-jam/internal/domain"
)

// LockTable is the relay-level record of file locks. It only echoes
// whichever acquisition messages arrive; the authoritative lock with its
// staleness sweep lives in the shared store (see infra/lockstore). All
// mutations happen on the event router's single message loop, which is
// what makes check-then-set acquisition race-free within one process.
type LockTable struct {
	mu    sync.Mutex
	locks map[domain.LockKey]domain.FileLock
	now   func() time.Time
}

// NewLockTable returns an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{
		locks: make(map[domain.LockKey]domain.FileLock),
		now:   time.Now,
	}
}

// Acquire grants the lock if it is unheld or already held by the same
// holder (idempotent re-acquire doubles as a heartbeat). Otherwise it
// reports the current holder.
func (t *LockTable) Acquire(key domain.LockKey, holder string) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.locks[key]; ok && existing.Holder != holder {
		return false, existing.Holder
	}
	t.locks[key] = domain.FileLock{Holder: holder, AcquiredAt: t.now()}
	logrus.WithFields(logrus.Fields{
		"project_id": key.ProjectID,
		"file_id":    key.FileID,
		"holder":     holder,
	}).Debug("File lock recorded")
	return true, holder
}

// Release clears the lock if the requester is the holder.
func (t *LockTable) Release(key domain.LockKey, requester string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.locks[key]
	if !ok || existing.Holder != requester {
		return false
	}
	delete(t.locks, key)
	return true
}

// ForceRelease clears the lock regardless of holder. Used for release
// events that carry no requester and for stale-lock expiry notices.
func (t *LockTable) ForceRelease(key domain.LockKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.locks[key]; !ok {
		return false
	}
	delete(t.locks, key)
	return true
}

// Heartbeat refreshes the acquisition timestamp without changing the
// holder. Rejected if the lock is unheld or held by someone else.
func (t *LockTable) Heartbeat(key domain.LockKey, holder string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.locks[key]
	if !ok || existing.Holder != holder {
		return false
	}
	existing.AcquiredAt = t.now()
	t.locks[key] = existing
	return true
}

// HolderOf returns the current holder, if any.
func (t *LockTable) HolderOf(key domain.LockKey) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.locks[key]
	if !ok {
		return "", false
	}
	return existing.Holder, true
}

// Len returns the number of held locks.
func (t *LockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

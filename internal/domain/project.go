package domain

import (
	"fmt"
	"strings"
	"time"
)

// LockKey identifies a file lock: one file inside one project.
type LockKey struct {
	ProjectID string
	FileID    string
}

// String renders the composite key in the "<project>:<file>" form used by
// the shared lock index.
func (k LockKey) String() string {
	return k.ProjectID + ":" + k.FileID
}

// ParseLockKey is the inverse of LockKey.String.
func ParseLockKey(s string) (LockKey, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return LockKey{}, fmt.Errorf("malformed lock key %q", s)
	}
	return LockKey{ProjectID: parts[0], FileID: parts[1]}, nil
}

// FileLock records the current holder of a file lock.
type FileLock struct {
	Holder     string
	AcquiredAt time.Time
}

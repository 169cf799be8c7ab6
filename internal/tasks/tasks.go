package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TypeLockSweep is the periodic stale-file-lock sweep.
const TypeLockSweep = "locks:sweep"

// LockSweepPayload carries the staleness cutoff for one sweep run.
type LockSweepPayload struct {
	OlderThanMinutes int `json:"olderThanMinutes"`
}

// NewLockSweepTask builds the sweep task.
func NewLockSweepTask(olderThanMinutes int) (*asynq.Task, error) {
	payload, err := json.Marshal(LockSweepPayload{OlderThanMinutes: olderThanMinutes})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLockSweep, payload), nil
}

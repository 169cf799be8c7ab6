package state

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chetanraj-2002/real-coder-jam/internal/domain"
)

// RoomSnapshot is the full room state sent to a session on join. Joining
// again after a reconnect is the recovery mechanism for missed events.
type RoomSnapshot struct {
	Code         string               `json:"code"`
	Language     string               `json:"language"`
	Participants []domain.Participant `json:"participants"`
}

// Registry is the in-memory room registry. It is a process-wide singleton
// owned by the event router; the mutex is kept because the health
// endpoint and eviction timers read it from outside the router loop.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]*domain.Room
	evictions map[string]*time.Timer
	now       func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:     make(map[string]*domain.Room),
		evictions: make(map[string]*time.Timer),
		now:       time.Now,
	}
}

// Ensure returns the room, creating it with an empty buffer and the
// default language if absent. Idempotent.
func (r *Registry) Ensure(roomID string) *domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureLocked(roomID)
}

func (r *Registry) ensureLocked(roomID string) *domain.Room {
	room, ok := r.rooms[roomID]
	if !ok {
		room = domain.NewRoom(roomID, r.now())
		r.rooms[roomID] = room
		logrus.WithField("room_id", roomID).Info("Created new room")
	}
	return room
}

// Get returns the room state if present.
func (r *Registry) Get(roomID string) (*domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

// Snapshot returns a copy of the room state suitable for sending to a
// client.
func (r *Registry) Snapshot(roomID string) (RoomSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return RoomSnapshot{}, false
	}
	return RoomSnapshot{
		Code:         room.Code,
		Language:     room.Language,
		Participants: room.ParticipantList(),
	}, true
}

// SetCode replaces the room's code buffer (last write wins) and bumps the
// update timestamp. Updates to rooms not yet created are tolerated as
// no-ops rather than errors.
func (r *Registry) SetCode(roomID, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		room.Code = code
		room.UpdatedAt = r.now()
	}
}

// SetLanguage replaces the room's language tag. Tolerant like SetCode.
func (r *Registry) SetLanguage(roomID, language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		room.Language = language
		room.UpdatedAt = r.now()
	}
}

// SetOwner re-points the room's effective owner. Tolerant if absent.
func (r *Registry) SetOwner(roomID, ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		room.OwnerID = ownerID
	}
}

// Owner returns the current effective owner of the room.
func (r *Registry) Owner(roomID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if room, ok := r.rooms[roomID]; ok {
		return room.OwnerID
	}
	return ""
}

// Delete removes the room unconditionally and drops any pending eviction
// timer. Callers are responsible for checking emptiness first.
func (r *Registry) Delete(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timer, ok := r.evictions[roomID]; ok {
		timer.Stop()
		delete(r.evictions, roomID)
	}
	if _, ok := r.rooms[roomID]; ok {
		delete(r.rooms, roomID)
		logrus.WithField("room_id", roomID).Info("Room deleted from registry")
	}
}

// Count returns the number of live rooms, for the health endpoint.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// IdleRooms returns the ids of rooms that have been continuously empty
// for longer than olderThan. Used by the idle reaper as a safety net
// behind the deferred per-room eviction.
func (r *Registry) IdleRooms(olderThan time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.now()
	var ids []string
	for id, room := range r.rooms {
		if room.Empty() && !room.EmptySince.IsZero() && now.Sub(room.EmptySince) > olderThan {
			ids = append(ids, id)
		}
	}
	return ids
}

// ScheduleEviction arms (or re-arms) the deferred eviction timer for a
// room that just became empty. A second emptiness event replaces the
// pending timer rather than stacking another one. The fire callback must
// re-validate emptiness before deleting: participants may have rejoined.
func (r *Registry) ScheduleEviction(roomID string, delay time.Duration, fire func(roomID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timer, ok := r.evictions[roomID]; ok {
		timer.Stop()
	}
	r.evictions[roomID] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.evictions, roomID)
		r.mu.Unlock()
		fire(roomID)
	})
	logrus.WithFields(logrus.Fields{"room_id": roomID, "delay": delay}).Debug("Deferred room eviction scheduled")
}

// CancelEviction clears a pending eviction timer, if any. Called when a
// session joins an empty room before the timer fires.
func (r *Registry) CancelEviction(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timer, ok := r.evictions[roomID]; ok {
		timer.Stop()
		delete(r.evictions, roomID)
		logrus.WithField("room_id", roomID).Debug("Deferred room eviction cancelled")
	}
}

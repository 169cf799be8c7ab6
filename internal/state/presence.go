package state

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chetanraj-2002/real-coder-jam/internal/domain"
)

// Presence tracks which sessions are inside which rooms, with display
// metadata and cursor positions. It keeps a session -> rooms reverse
// index so a disconnect can be swept across every room the session
// belonged to, not just the most recent one.
type Presence struct {
	reg *Registry

	mu           sync.RWMutex
	sessionRooms map[string]map[string]struct{}
}

// NewPresence returns a presence tracker backed by the given registry.
func NewPresence(reg *Registry) *Presence {
	return &Presence{
		reg:          reg,
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// Add inserts (or overwrites) the participant record for a session and
// returns the room's full participant list for rebroadcast. The room is
// created if absent, and the first joiner becomes the effective owner.
func (p *Presence) Add(roomID, sessionID string, info domain.Participant) []domain.Participant {
	p.reg.mu.Lock()
	room := p.reg.ensureLocked(roomID)
	info.ID = sessionID
	if info.JoinedAt.IsZero() {
		info.JoinedAt = p.reg.now()
	}
	room.Participants[sessionID] = &info
	room.EmptySince = time.Time{}
	if room.OwnerID == "" {
		room.OwnerID = sessionID
	}
	list := room.ParticipantList()
	p.reg.mu.Unlock()

	p.mu.Lock()
	rooms, ok := p.sessionRooms[sessionID]
	if !ok {
		rooms = make(map[string]struct{})
		p.sessionRooms[sessionID] = rooms
	}
	rooms[roomID] = struct{}{}
	p.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"room_id":      roomID,
		"session_id":   sessionID,
		"participants": len(list),
	}).Info("Participant joined room")
	return list
}

// Remove deletes the session's participant record. It reports whether a
// removal occurred and returns the remaining participant list. When the
// departing session was the effective owner, ownership falls to the
// oldest remaining participant.
func (p *Presence) Remove(roomID, sessionID string) (bool, []domain.Participant) {
	p.reg.mu.Lock()
	room, ok := p.reg.rooms[roomID]
	if !ok {
		p.reg.mu.Unlock()
		return false, nil
	}
	if _, ok := room.Participants[sessionID]; !ok {
		p.reg.mu.Unlock()
		return false, room.ParticipantList()
	}
	delete(room.Participants, sessionID)
	remaining := room.ParticipantList()
	if room.OwnerID == sessionID {
		room.OwnerID = ""
		if len(remaining) > 0 {
			room.OwnerID = remaining[0].ID
		}
	}
	if room.Empty() {
		room.EmptySince = p.reg.now()
	}
	p.reg.mu.Unlock()

	p.mu.Lock()
	if rooms, ok := p.sessionRooms[sessionID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(p.sessionRooms, sessionID)
		}
	}
	p.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"room_id":      roomID,
		"session_id":   sessionID,
		"participants": len(remaining),
	}).Info("Participant left room")
	return true, remaining
}

// List returns the room's current participants in join order.
func (p *Presence) List(roomID string) []domain.Participant {
	p.reg.mu.RLock()
	defer p.reg.mu.RUnlock()
	room, ok := p.reg.rooms[roomID]
	if !ok {
		return nil
	}
	return room.ParticipantList()
}

// UpdateCursor records the session's cursor position. It is a no-op if
// the session is not present in the room: a cursor event must never
// create a phantom participant.
func (p *Presence) UpdateCursor(roomID, sessionID string, cursor domain.Cursor) bool {
	p.reg.mu.Lock()
	defer p.reg.mu.Unlock()
	room, ok := p.reg.rooms[roomID]
	if !ok {
		return false
	}
	participant, ok := room.Participants[sessionID]
	if !ok {
		return false
	}
	participant.Cursor = cursor
	return true
}

// RoomsOf returns every room the session is currently a member of.
func (p *Presence) RoomsOf(sessionID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rooms := make([]string, 0, len(p.sessionRooms[sessionID]))
	for roomID := range p.sessionRooms[sessionID] {
		rooms = append(rooms, roomID)
	}
	return rooms
}

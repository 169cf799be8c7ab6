package domain

import (
	"sort"
	"time"
)

// DefaultLanguage is the language tag assigned to freshly created rooms.
const DefaultLanguage = "javascript"

// Cursor is a position inside the shared code buffer.
type Cursor struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Participant is one connected session inside a room. The ID is the
// transport session id, unique per connection.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"joinedAt"`
	Cursor   Cursor    `json:"cursor"`
}

// Identity carries the display claims attached to a connection, either
// from the external identity provider's token or a generated guest label.
type Identity struct {
	UserID string
	Name   string
	Email  string
}

// Room is the transient per-room state held by the relay. The relay is a
// cache and fanout layer, not a source of truth: nothing here survives
// the process.
type Room struct {
	ID           string
	Code         string
	Language     string
	OwnerID      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	EmptySince   time.Time // zero while at least one participant is present
	Participants map[string]*Participant
}

// NewRoom returns a room with an empty buffer and the default language.
func NewRoom(id string, now time.Time) *Room {
	return &Room{
		ID:           id,
		Language:     DefaultLanguage,
		CreatedAt:    now,
		UpdatedAt:    now,
		Participants: make(map[string]*Participant),
	}
}

// ParticipantList returns the participants ordered by join time, which is
// also the ownership fallback order.
func (r *Room) ParticipantList() []Participant {
	list := make([]Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].JoinedAt.Before(list[j].JoinedAt)
	})
	return list
}

// Empty reports whether the room has no participants.
func (r *Room) Empty() bool {
	return len(r.Participants) == 0
}

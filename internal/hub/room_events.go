package hub

import (
	"encoding/json"

	"github.com/chetanraj-2002/real-coder-jam/internal/domain"
)

func (h *Hub) handleJoinRoom(c *Client, data json.RawMessage) {
	var p joinRoomPayload
	if !h.decodePayload(c, EvtJoinRoom, data, &p) || p.RoomID == "" {
		return
	}

	// A rejoin within the eviction window keeps the room alive.
	h.registry.CancelEviction(p.RoomID)

	participant := domain.Participant{
		Name:   c.identity.Name,
		Email:  c.identity.Email,
		Cursor: domain.Cursor{Line: 1, Column: 1},
	}
	list := h.presence.Add(p.RoomID, c.id, participant)
	h.addToScope(h.roomScope, p.RoomID, c)
	c.rooms[p.RoomID] = struct{}{}

	// The new session gets the full room snapshot; everyone else learns
	// about the newcomer, and the whole room gets the fresh list.
	if snap, ok := h.registry.Snapshot(p.RoomID); ok {
		h.sendTo(c, EvtRoomState, snap)
	}
	for _, joined := range list {
		if joined.ID == c.id {
			h.broadcastRoom(p.RoomID, c, EvtUserJoined, joined)
			break
		}
	}
	h.broadcastRoom(p.RoomID, nil, EvtParticipantsUpdate, list)
}

func (h *Hub) handleCodeChange(c *Client, data json.RawMessage) {
	var p codeChangePayload
	if !h.decodePayload(c, EvtCodeChange, data, &p) || p.RoomID == "" {
		return
	}
	h.registry.SetCode(p.RoomID, p.Code)
	h.broadcastRoom(p.RoomID, c, EvtCodeChange, p.Code)
}

func (h *Hub) handleCursorChange(c *Client, data json.RawMessage) {
	var p cursorChangePayload
	if !h.decodePayload(c, EvtCursorChange, data, &p) || p.RoomID == "" {
		return
	}
	h.presence.UpdateCursor(p.RoomID, c.id, p.Cursor)
	h.broadcastRoom(p.RoomID, c, EvtCursorChange, cursorBroadcast{UserID: c.id, Cursor: p.Cursor})
}

func (h *Hub) handleLanguageChange(c *Client, data json.RawMessage) {
	var p languageChangePayload
	if !h.decodePayload(c, EvtLanguageChange, data, &p) || p.RoomID == "" {
		return
	}
	h.registry.SetLanguage(p.RoomID, p.Language)
	h.broadcastRoom(p.RoomID, c, EvtLanguageChange, p.Language)
}

// handleKick forwards the kick notice to the target session only; the
// target's own client is responsible for disconnecting. The sender's
// privilege is not verified here: authorization for this sub-protocol is
// client-enforced, and real access control lives in the backing API.
func (h *Hub) handleKick(c *Client, data json.RawMessage) {
	var p kickPayload
	if !h.decodePayload(c, EvtKick, data, &p) || p.RoomID == "" || p.TargetUserID == "" {
		return
	}
	for member := range h.roomScope[p.RoomID] {
		if member.id == p.TargetUserID {
			h.sendTo(member, EvtKick, kickNotice{RoomID: p.RoomID})
			return
		}
	}
}

// handleHostChange re-points the room's effective owner and relays the
// new owner id. Same client-enforced trust boundary as handleKick.
func (h *Hub) handleHostChange(c *Client, data json.RawMessage) {
	var p hostChangePayload
	if !h.decodePayload(c, EvtHostChange, data, &p) || p.RoomID == "" || p.NewOwner == "" {
		return
	}
	h.registry.SetOwner(p.RoomID, p.NewOwner)
	h.broadcastRoom(p.RoomID, c, EvtHostChange, hostChangeBroadcast{NewOwner: p.NewOwner})
}

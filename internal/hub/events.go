package hub

import (
	"encoding/json"

	"github.com/chetanraj-2002/real-coder-jam/internal/domain"
)

// Inbound event names. These match the client protocol one to one.
const (
	EvtJoinRoom              = "join-room"
	EvtCodeChange            = "code-change"
	EvtCursorChange          = "cursor-change"
	EvtLanguageChange        = "language-change"
	EvtPing                  = "ping"
	EvtKick                  = "kick"
	EvtHostChange            = "host-change"
	EvtJoinProject           = "join-project"
	EvtLeaveProject          = "leave-project"
	EvtJoinFile              = "join-file"
	EvtFileLockAcquired      = "file-lock-acquired"
	EvtFileLockReleased      = "file-lock-released"
	EvtFileContentChange     = "file-content-change"
	EvtFileCursorChange      = "file-cursor-change"
	EvtAccessRequestSent     = "access-request-sent"
	EvtAccessRequestApproved = "access-request-approved"
	EvtCollaboratorAdded     = "collaborator-added"
	EvtPermissionUpdated     = "permission-updated"
)

// Outbound event names.
const (
	EvtRoomState             = "room-state"
	EvtUserJoined            = "user-joined"
	EvtUserLeft              = "user-left"
	EvtParticipantsUpdate    = "participants-update"
	EvtPong                  = "pong"
	EvtUserJoinedProject     = "user-joined-project"
	EvtUserLeftProject       = "user-left-project"
	EvtFileLocked            = "file-locked"
	EvtFileUnlocked          = "file-unlocked"
	EvtFileLockDenied        = "file-lock-denied"
	EvtFileContentUpdate     = "file-content-update"
	EvtCursorUpdate          = "cursor-update"
	EvtAccessRequestReceived = "access-request-received"
	EvtAccessTransferred     = "access-transferred"
	EvtCollaboratorJoined    = "collaborator-joined"
	EvtPermissionChanged     = "permission-changed"
)

// Envelope is the wire unit: a named event with a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeEvent(event string, data interface{}) ([]byte, error) {
	return json.Marshal(struct {
		Event string      `json:"event"`
		Data  interface{} `json:"data,omitempty"`
	}{Event: event, Data: data})
}

// Room-scoped payloads.

type joinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type codeChangePayload struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type cursorChangePayload struct {
	RoomID string        `json:"roomId"`
	Cursor domain.Cursor `json:"cursor"`
}

type languageChangePayload struct {
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
}

type kickPayload struct {
	RoomID       string `json:"roomId"`
	TargetUserID string `json:"targetUserId"`
}

type hostChangePayload struct {
	RoomID   string `json:"roomId"`
	NewOwner string `json:"newOwner"`
}

type cursorBroadcast struct {
	UserID string        `json:"userId"`
	Cursor domain.Cursor `json:"cursor"`
}

type kickNotice struct {
	RoomID string `json:"roomId"`
}

type hostChangeBroadcast struct {
	NewOwner string `json:"newOwner"`
}

// Project- and file-scoped payloads.

type projectPayload struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
}

type filePayload struct {
	ProjectID string `json:"projectId"`
	FileID    string `json:"fileId"`
	UserID    string `json:"userId"`
}

type fileContentPayload struct {
	ProjectID string `json:"projectId"`
	FileID    string `json:"fileId"`
	Content   string `json:"content"`
	UserID    string `json:"userId"`
}

type fileCursorPayload struct {
	ProjectID string        `json:"projectId"`
	FileID    string        `json:"fileId"`
	UserID    string        `json:"userId"`
	Cursor    domain.Cursor `json:"cursor"`
}

type accessRequestPayload struct {
	ProjectID   string `json:"projectId"`
	FileID      string `json:"fileId"`
	RequestID   string `json:"requestId"`
	RequesterID string `json:"requesterId"`
}

type accessApprovedPayload struct {
	ProjectID   string `json:"projectId"`
	FileID      string `json:"fileId"`
	NewEditorID string `json:"newEditorId"`
}

type collaboratorPayload struct {
	ProjectID    string          `json:"projectId"`
	Collaborator json.RawMessage `json:"collaborator"`
}

type permissionPayload struct {
	ProjectID     string `json:"projectId"`
	UserID        string `json:"userId"`
	NewPermission string `json:"newPermission"`
}

type userIDBroadcast struct {
	UserID string `json:"userId"`
}

type fileLockedBroadcast struct {
	FileID string `json:"fileId"`
	UserID string `json:"userId"`
}

type fileUnlockedBroadcast struct {
	FileID string `json:"fileId"`
}

type fileLockDeniedReply struct {
	FileID string `json:"fileId"`
	HeldBy string `json:"heldBy"`
}

type fileContentBroadcast struct {
	FileID  string `json:"fileId"`
	Content string `json:"content"`
	UserID  string `json:"userId"`
}

type accessRequestBroadcast struct {
	FileID      string `json:"fileId"`
	RequestID   string `json:"requestId"`
	RequesterID string `json:"requesterId"`
}

type accessTransferredBroadcast struct {
	FileID      string `json:"fileId"`
	NewEditorID string `json:"newEditorId"`
}

type collaboratorBroadcast struct {
	Collaborator json.RawMessage `json:"collaborator"`
}

type permissionBroadcast struct {
	UserID        string `json:"userId"`
	NewPermission string `json:"newPermission"`
}

package hub

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/chetanraj-2002/real-coder-jam/internal/domain"
)

func (h *Hub) handleJoinProject(c *Client, data json.RawMessage) {
	var p projectPayload
	if !h.decodePayload(c, EvtJoinProject, data, &p) || p.ProjectID == "" {
		return
	}
	h.projects.Join(p.ProjectID, p.UserID)
	h.addToScope(h.projectScope, p.ProjectID, c)
	c.projectScopes[p.ProjectID] = struct{}{}
	h.broadcastProject(p.ProjectID, c, EvtUserJoinedProject, userIDBroadcast{UserID: p.UserID})
}

func (h *Hub) handleLeaveProject(c *Client, data json.RawMessage) {
	var p projectPayload
	if !h.decodePayload(c, EvtLeaveProject, data, &p) || p.ProjectID == "" {
		return
	}
	h.projects.Leave(p.ProjectID, p.UserID)
	h.removeFromScope(h.projectScope, p.ProjectID, c)
	delete(c.projectScopes, p.ProjectID)
	h.broadcastProject(p.ProjectID, c, EvtUserLeftProject, userIDBroadcast{UserID: p.UserID})
}

func (h *Hub) handleJoinFile(c *Client, data json.RawMessage) {
	var p filePayload
	if !h.decodePayload(c, EvtJoinFile, data, &p) || p.ProjectID == "" || p.FileID == "" {
		return
	}
	key := domain.LockKey{ProjectID: p.ProjectID, FileID: p.FileID}.String()
	h.addToScope(h.fileScope, key, c)
	c.fileScopes[key] = struct{}{}
}

// handleFileLockAcquired records the lock and tells the project. The
// table grants idempotent re-acquires (a re-send doubles as a
// heartbeat); a conflicting request is answered to the requester only,
// never broadcast. The grant is mirrored into the authoritative store
// off the router loop.
func (h *Hub) handleFileLockAcquired(c *Client, data json.RawMessage) {
	var p filePayload
	if !h.decodePayload(c, EvtFileLockAcquired, data, &p) || p.ProjectID == "" || p.FileID == "" {
		return
	}
	key := domain.LockKey{ProjectID: p.ProjectID, FileID: p.FileID}
	granted, heldBy := h.locks.Acquire(key, p.UserID)
	if !granted {
		h.sendTo(c, EvtFileLockDenied, fileLockDeniedReply{FileID: p.FileID, HeldBy: heldBy})
		return
	}
	h.mirrorLockAcquire(key, p.UserID)
	h.broadcastProject(p.ProjectID, c, EvtFileLocked, fileLockedBroadcast{FileID: p.FileID, UserID: p.UserID})
}

// handleFileLockReleased clears the lock record. When the payload names
// a requester, only the holder's release is honored; the original
// protocol also allows a bare release, which clears unconditionally.
// Locks are not auto-released on disconnect: the authoritative store's
// staleness sweep is the safety net for abandoned holders.
func (h *Hub) handleFileLockReleased(c *Client, data json.RawMessage) {
	var p filePayload
	if !h.decodePayload(c, EvtFileLockReleased, data, &p) || p.ProjectID == "" || p.FileID == "" {
		return
	}
	key := domain.LockKey{ProjectID: p.ProjectID, FileID: p.FileID}
	if p.UserID != "" {
		if !h.locks.Release(key, p.UserID) {
			h.log.WithFields(logrus.Fields{
				"project_id": p.ProjectID,
				"file_id":    p.FileID,
				"user_id":    p.UserID,
			}).Warn("Rejected lock release from non-holder")
			return
		}
	} else {
		h.locks.ForceRelease(key)
	}
	h.mirrorLockRelease(key, p.UserID)
	h.broadcastProject(p.ProjectID, c, EvtFileUnlocked, fileUnlockedBroadcast{FileID: p.FileID})
}

func (h *Hub) handleFileContentChange(c *Client, data json.RawMessage) {
	var p fileContentPayload
	if !h.decodePayload(c, EvtFileContentChange, data, &p) || p.ProjectID == "" || p.FileID == "" {
		return
	}
	key := domain.LockKey{ProjectID: p.ProjectID, FileID: p.FileID}.String()
	h.broadcastFile(key, c, EvtFileContentUpdate, fileContentBroadcast{
		FileID:  p.FileID,
		Content: p.Content,
		UserID:  p.UserID,
	})
}

func (h *Hub) handleFileCursorChange(c *Client, data json.RawMessage) {
	var p fileCursorPayload
	if !h.decodePayload(c, EvtFileCursorChange, data, &p) || p.ProjectID == "" || p.FileID == "" {
		return
	}
	key := domain.LockKey{ProjectID: p.ProjectID, FileID: p.FileID}.String()
	h.broadcastFile(key, c, EvtCursorUpdate, cursorBroadcast{UserID: p.UserID, Cursor: p.Cursor})
}

func (h *Hub) handleAccessRequestSent(c *Client, data json.RawMessage) {
	var p accessRequestPayload
	if !h.decodePayload(c, EvtAccessRequestSent, data, &p) || p.ProjectID == "" {
		return
	}
	h.broadcastProject(p.ProjectID, c, EvtAccessRequestReceived, accessRequestBroadcast{
		FileID:      p.FileID,
		RequestID:   p.RequestID,
		RequesterID: p.RequesterID,
	})
}

func (h *Hub) handleAccessRequestApproved(c *Client, data json.RawMessage) {
	var p accessApprovedPayload
	if !h.decodePayload(c, EvtAccessRequestApproved, data, &p) || p.ProjectID == "" {
		return
	}
	h.broadcastProject(p.ProjectID, c, EvtAccessTransferred, accessTransferredBroadcast{
		FileID:      p.FileID,
		NewEditorID: p.NewEditorID,
	})
}

func (h *Hub) handleCollaboratorAdded(c *Client, data json.RawMessage) {
	var p collaboratorPayload
	if !h.decodePayload(c, EvtCollaboratorAdded, data, &p) || p.ProjectID == "" {
		return
	}
	h.broadcastProject(p.ProjectID, c, EvtCollaboratorJoined, collaboratorBroadcast{Collaborator: p.Collaborator})
}

func (h *Hub) handlePermissionUpdated(c *Client, data json.RawMessage) {
	var p permissionPayload
	if !h.decodePayload(c, EvtPermissionUpdated, data, &p) || p.ProjectID == "" {
		return
	}
	h.broadcastProject(p.ProjectID, c, EvtPermissionChanged, permissionBroadcast{
		UserID:        p.UserID,
		NewPermission: p.NewPermission,
	})
}

// mirrorLockAcquire and mirrorLockRelease run the store call on a
// separate goroutine: no I/O is awaited inside the router loop.

func (h *Hub) mirrorLockAcquire(key domain.LockKey, holder string) {
	if h.lockStore == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), lockMirrorTimeout)
		defer cancel()
		if _, _, err := h.lockStore.Acquire(ctx, key, holder); err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"project_id": key.ProjectID,
				"file_id":    key.FileID,
			}).Warn("Failed to mirror lock acquire to shared store")
		}
	}()
}

func (h *Hub) mirrorLockRelease(key domain.LockKey, requester string) {
	if h.lockStore == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), lockMirrorTimeout)
		defer cancel()
		if err := h.lockStore.Release(ctx, key, requester); err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"project_id": key.ProjectID,
				"file_id":    key.FileID,
			}).Warn("Failed to mirror lock release to shared store")
		}
	}()
}

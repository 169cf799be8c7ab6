package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chetanraj-2002/real-coder-jam/internal/domain"
	"github.com/chetanraj-2002/real-coder-jam/internal/state"
)

// Default lifecycle periods. A room that empties and refills within the
// eviction delay is never deleted; the reaper is the safety net behind
// the deferred eviction.
const (
	defaultEvictAfter   = 5 * time.Minute
	defaultReapInterval = 10 * time.Minute
	defaultStaleAfter   = 30 * time.Minute

	lockMirrorTimeout = 5 * time.Second
)

type msgKind int

const (
	msgRegister msgKind = iota
	msgUnregister
	msgInbound
	msgEvictCheck
	msgReapSweep
	msgLockExpired
)

type message struct {
	kind   msgKind
	client *Client
	raw    []byte
	roomID string
	key    domain.LockKey
}

// LockStore is the shared authoritative lock the relay mirrors its lock
// notifications into. The relay only notifies about lock state; the
// store arbitrates it across processes. An empty requester on Release
// means an unconditional clear.
type LockStore interface {
	Acquire(ctx context.Context, key domain.LockKey, holder string) (bool, string, error)
	Release(ctx context.Context, key domain.LockKey, requester string) error
}

// Options configures a Hub. Zero durations fall back to the defaults.
type Options struct {
	LockStore    LockStore
	Logger       *logrus.Logger
	EvictAfter   time.Duration
	ReapInterval time.Duration
	StaleAfter   time.Duration
}

// Hub is the event router. It owns all shared relay state and processes
// every inbound message on a single goroutine, so state mutations need
// no coordination beyond the loop itself and per-room broadcast order
// matches arrival order.
type Hub struct {
	inbound chan message
	done    chan struct{}

	// All four maps below are touched only by the Run loop.
	sessions     map[string]*Client
	roomScope    map[string]map[*Client]struct{}
	projectScope map[string]map[*Client]struct{}
	fileScope    map[string]map[*Client]struct{}

	registry *state.Registry
	presence *state.Presence
	locks    *state.LockTable
	projects *state.Projects

	lockStore LockStore
	log       *logrus.Entry

	evictAfter   time.Duration
	reapInterval time.Duration
	staleAfter   time.Duration
}

// New constructs a Hub. The registry, presence tracker, lock table and
// project table are created here and live for the process lifetime.
func New(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	registry := state.NewRegistry()
	h := &Hub{
		inbound:      make(chan message, 512),
		done:         make(chan struct{}),
		sessions:     make(map[string]*Client),
		roomScope:    make(map[string]map[*Client]struct{}),
		projectScope: make(map[string]map[*Client]struct{}),
		fileScope:    make(map[string]map[*Client]struct{}),
		registry:     registry,
		presence:     state.NewPresence(registry),
		locks:        state.NewLockTable(),
		projects:     state.NewProjects(),
		lockStore:    opts.LockStore,
		log:          logger.WithField("component", "hub"),
		evictAfter:   opts.EvictAfter,
		reapInterval: opts.ReapInterval,
		staleAfter:   opts.StaleAfter,
	}
	if h.evictAfter <= 0 {
		h.evictAfter = defaultEvictAfter
	}
	if h.reapInterval <= 0 {
		h.reapInterval = defaultReapInterval
	}
	if h.staleAfter <= 0 {
		h.staleAfter = defaultStaleAfter
	}
	return h
}

// Registry exposes the room registry for read-side consumers (health
// endpoint, tests).
func (h *Hub) Registry() *state.Registry { return h.registry }

// Locks exposes the relay-level lock table for read-side consumers.
func (h *Hub) Locks() *state.LockTable { return h.locks }

// Run processes messages until Shutdown. It must run in its own
// goroutine, and it is the only goroutine that mutates router state.
func (h *Hub) Run() {
	h.log.Info("Event router running")
	for {
		select {
		case <-h.done:
			h.log.Info("Event router stopped")
			return
		case msg := <-h.inbound:
			switch msg.kind {
			case msgRegister:
				h.registerClient(msg.client)
			case msgUnregister:
				h.unregisterClient(msg.client)
			case msgInbound:
				// Processed inline: lock acquisition stays
				// check-then-set atomic and per-room broadcast
				// order matches arrival order.
				h.dispatch(msg.client, msg.raw)
			case msgEvictCheck:
				h.evictIfEmpty(msg.roomID)
			case msgReapSweep:
				h.reapIdleRooms()
			case msgLockExpired:
				h.handleLockExpired(msg.key)
			}
		}
	}
}

// Shutdown stops the Run loop and the reaper.
func (h *Hub) Shutdown() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Register queues a new session for registration. Returns false if the
// router queue is full, in which case the caller should drop the
// connection.
func (h *Hub) Register(c *Client) bool {
	return h.enqueue(message{kind: msgRegister, client: c})
}

// Unregister queues removal of a session. Unlike other messages this
// blocks rather than drops: losing it would leak presence entries.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.inbound <- message{kind: msgUnregister, client: c}:
	case <-h.done:
	}
}

// NotifyLockExpired tells the router that the authoritative store swept
// a stale lock, so the relay can clear its echo and tell the project.
func (h *Hub) NotifyLockExpired(key domain.LockKey) {
	h.enqueue(message{kind: msgLockExpired, key: key})
}

func (h *Hub) enqueue(msg message) bool {
	select {
	case h.inbound <- msg:
		return true
	case <-h.done:
		return false
	default:
		h.log.Warn("Hub message channel full, dropping message")
		return false
	}
}

func (h *Hub) registerClient(c *Client) {
	if c == nil {
		return
	}
	h.sessions[c.id] = c
	h.log.WithField("session_id", c.id).Info("Session connected")
}

// unregisterClient removes the session from every scope it joined. A
// disconnect must sweep every room the session was a member of, not just
// the most recent one.
func (h *Hub) unregisterClient(c *Client) {
	if c == nil {
		return
	}
	if _, ok := h.sessions[c.id]; !ok {
		return
	}
	delete(h.sessions, c.id)

	for roomID := range c.rooms {
		h.removeFromScope(h.roomScope, roomID, c)
		removed, remaining := h.presence.Remove(roomID, c.id)
		if !removed {
			continue
		}
		h.broadcastRoom(roomID, c, EvtUserLeft, c.id)
		h.broadcastRoom(roomID, c, EvtParticipantsUpdate, remaining)
		if len(remaining) == 0 {
			h.scheduleEviction(roomID)
		}
	}
	for projectID := range c.projectScopes {
		h.removeFromScope(h.projectScope, projectID, c)
	}
	for fileKey := range c.fileScopes {
		h.removeFromScope(h.fileScope, fileKey, c)
	}

	close(c.send)
	h.log.WithField("session_id", c.id).Info("Session disconnected")
}

func (h *Hub) scheduleEviction(roomID string) {
	h.registry.ScheduleEviction(roomID, h.evictAfter, func(id string) {
		h.enqueue(message{kind: msgEvictCheck, roomID: id})
	})
}

// evictIfEmpty deletes the room only if it is still empty when the
// deferred timer fires. Participants may have rejoined in between.
func (h *Hub) evictIfEmpty(roomID string) {
	if len(h.roomScope[roomID]) > 0 || len(h.presence.List(roomID)) > 0 {
		return
	}
	h.registry.Delete(roomID)
	delete(h.roomScope, roomID)
	h.log.WithField("room_id", roomID).Info("Cleaned up empty room")
}

// reapIdleRooms is the secondary safety net: rooms continuously empty
// beyond the staleness threshold are deleted even if their deferred
// eviction never fired.
func (h *Hub) reapIdleRooms() {
	for _, roomID := range h.registry.IdleRooms(h.staleAfter) {
		if len(h.roomScope[roomID]) > 0 {
			continue
		}
		h.registry.Delete(roomID)
		delete(h.roomScope, roomID)
		h.log.WithField("room_id", roomID).Info("Cleaned up old empty room")
	}
}

func (h *Hub) handleLockExpired(key domain.LockKey) {
	h.locks.ForceRelease(key)
	h.broadcastProject(key.ProjectID, nil, EvtFileUnlocked, fileUnlockedBroadcast{FileID: key.FileID})
	h.log.WithFields(logrus.Fields{
		"project_id": key.ProjectID,
		"file_id":    key.FileID,
	}).Info("Stale file lock expired, project notified")
}

// dispatch routes one inbound envelope. Malformed payloads are dropped
// with a warning; a single bad message must never take down the relay or
// disconnect unrelated sessions.
func (h *Hub) dispatch(c *Client, raw []byte) {
	if c == nil {
		return
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.log.WithError(err).WithField("session_id", c.id).Warn("Dropping malformed message")
		return
	}
	switch env.Event {
	case EvtJoinRoom:
		h.handleJoinRoom(c, env.Data)
	case EvtCodeChange:
		h.handleCodeChange(c, env.Data)
	case EvtCursorChange:
		h.handleCursorChange(c, env.Data)
	case EvtLanguageChange:
		h.handleLanguageChange(c, env.Data)
	case EvtPing:
		h.sendTo(c, EvtPong, nil)
	case EvtKick:
		h.handleKick(c, env.Data)
	case EvtHostChange:
		h.handleHostChange(c, env.Data)
	case EvtJoinProject:
		h.handleJoinProject(c, env.Data)
	case EvtLeaveProject:
		h.handleLeaveProject(c, env.Data)
	case EvtJoinFile:
		h.handleJoinFile(c, env.Data)
	case EvtFileLockAcquired:
		h.handleFileLockAcquired(c, env.Data)
	case EvtFileLockReleased:
		h.handleFileLockReleased(c, env.Data)
	case EvtFileContentChange:
		h.handleFileContentChange(c, env.Data)
	case EvtFileCursorChange:
		h.handleFileCursorChange(c, env.Data)
	case EvtAccessRequestSent:
		h.handleAccessRequestSent(c, env.Data)
	case EvtAccessRequestApproved:
		h.handleAccessRequestApproved(c, env.Data)
	case EvtCollaboratorAdded:
		h.handleCollaboratorAdded(c, env.Data)
	case EvtPermissionUpdated:
		h.handlePermissionUpdated(c, env.Data)
	default:
		h.log.WithFields(logrus.Fields{
			"session_id": c.id,
			"event":      env.Event,
		}).Debug("Ignoring unknown event")
	}
}

// decodePayload unmarshals an event payload, logging and rejecting
// malformed data.
func (h *Hub) decodePayload(c *Client, event string, data json.RawMessage, into interface{}) bool {
	if err := json.Unmarshal(data, into); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"session_id": c.id,
			"event":      event,
		}).Warn("Dropping event with malformed payload")
		return false
	}
	return true
}

func (h *Hub) addToScope(scope map[string]map[*Client]struct{}, key string, c *Client) {
	members, ok := scope[key]
	if !ok {
		members = make(map[*Client]struct{})
		scope[key] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) removeFromScope(scope map[string]map[*Client]struct{}, key string, c *Client) {
	if members, ok := scope[key]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(scope, key)
		}
	}
}

// sendTo queues one event to a single session. Non-blocking: a slow
// client loses messages rather than stalling the router.
func (h *Hub) sendTo(c *Client, event string, data interface{}) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("Failed to encode event")
		return
	}
	select {
	case c.send <- payload:
	default:
		h.log.WithFields(logrus.Fields{
			"session_id": c.id,
			"event":      event,
		}).Warn("Client send channel full, dropping event")
	}
}

func (h *Hub) broadcastScope(scope map[string]map[*Client]struct{}, key string, except *Client, event string, data interface{}) {
	members, ok := scope[key]
	if !ok || len(members) == 0 {
		return
	}
	payload, err := encodeEvent(event, data)
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("Failed to encode event")
		return
	}
	for member := range members {
		if member == except {
			continue
		}
		select {
		case member.send <- payload:
		default:
			h.log.WithFields(logrus.Fields{
				"session_id": member.id,
				"event":      event,
			}).Warn("Client send channel full during broadcast, skipping client")
		}
	}
}

func (h *Hub) broadcastRoom(roomID string, except *Client, event string, data interface{}) {
	h.broadcastScope(h.roomScope, roomID, except, event, data)
}

func (h *Hub) broadcastProject(projectID string, except *Client, event string, data interface{}) {
	h.broadcastScope(h.projectScope, projectID, except, event, data)
}

func (h *Hub) broadcastFile(fileKey string, except *Client, event string, data interface{}) {
	h.broadcastScope(h.fileScope, fileKey, except, event, data)
}

package websocket

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/chetanraj-2002/real-coder-jam/internal/domain"
	"github.com/chetanraj-2002/real-coder-jam/internal/hub"
	"github.com/chetanraj-2002/real-coder-jam/internal/middleware"
)

// Handler upgrades HTTP requests to WebSocket sessions and registers
// them with the event router.
type Handler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewHandler builds the upgrade handler. The origin policy constrains
// which browser origins may connect.
func NewHandler(h *hub.Hub, origins *middleware.OriginPolicy) *Handler {
	if h == nil {
		panic("Hub cannot be nil for websocket Handler")
	}
	return &Handler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return origins.Allowed(r.Header.Get("Origin"))
			},
		},
	}
}

// HandleConnection upgrades the request, mints a session id, and hands
// the connection to the router. Sessions without identity claims get a
// guest label derived from the session id.
func (h *Handler) HandleConnection(c *gin.Context) {
	identity, hasIdentity := middleware.IdentityFrom(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logrus.WithError(err).Warn("WS Handler: failed to upgrade connection")
		return
	}

	sessionID := uuid.NewString()
	if !hasIdentity {
		identity = guestIdentity(sessionID)
	}
	if identity.Name == "" {
		identity.Name = guestIdentity(sessionID).Name
	}

	client := hub.NewClient(h.hub, conn, sessionID, identity)
	if !h.hub.Register(client) {
		logrus.WithField("session_id", sessionID).Error("WS Handler: router queue full, dropping connection")
		client.CloseConn()
		return
	}
	client.Run()

	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"user_id":    identity.UserID,
	}).Info("WS Handler: session established")
}

func guestIdentity(sessionID string) domain.Identity {
	short := sessionID
	if len(short) > 6 {
		short = short[:6]
	}
	return domain.Identity{
		UserID: sessionID,
		Name:   fmt.Sprintf("User-%s", short),
		Email:  fmt.Sprintf("user-%s@guest.local", short),
	}
}

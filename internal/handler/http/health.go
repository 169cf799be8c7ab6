package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chetanraj-2002/real-coder-jam/internal/state"
)

// HealthHandler reports liveness plus the live room count. The relay
// holds nothing durable, so the count is the only interesting number.
type HealthHandler struct {
	registry *state.Registry
}

// NewHealthHandler builds the handler.
func NewHealthHandler(registry *state.Registry) *HealthHandler {
	if registry == nil {
		panic("Registry cannot be nil for HealthHandler")
	}
	return &HealthHandler{registry: registry}
}

// Status answers GET /.
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Collaboration relay is running",
		"rooms":     h.registry.Count(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

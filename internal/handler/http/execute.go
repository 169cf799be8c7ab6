package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/chetanraj-2002/real-coder-jam/internal/execclient"
)

// ExecuteHandler proxies code execution to the remote runner service.
// The sandbox itself is an external collaborator; this endpoint is pure
// pass-through.
type ExecuteHandler struct {
	runner execclient.Runner
}

// NewExecuteHandler builds the handler.
func NewExecuteHandler(runner execclient.Runner) *ExecuteHandler {
	if runner == nil {
		panic("Runner cannot be nil for ExecuteHandler")
	}
	return &ExecuteHandler{runner: runner}
}

type executeRequest struct {
	Language string `json:"language" binding:"required"`
	Version  string `json:"version"`
	Source   string `json:"source" binding:"required"`
	Stdin    string `json:"stdin"`
}

// Run answers POST /execute.
func (h *ExecuteHandler) Run(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "language and source are required"})
		return
	}
	result, err := h.runner.Execute(c.Request.Context(), execclient.Request{
		Language: req.Language,
		Version:  req.Version,
		Source:   req.Source,
		Stdin:    req.Stdin,
	})
	if err != nil {
		logrus.WithError(err).WithField("language", req.Language).Error("Execute handler: runner call failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "execution service unavailable"})
		return
	}
	c.JSON(http.StatusOK, result)
}

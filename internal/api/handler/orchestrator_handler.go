package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// OrchestratorHandler exposes the trigger endpoints an external scheduler calls
type OrchestratorHandler struct {
	logger        *slog.Logger
	orchestrators map[string]Runner
}

// NewOrchestratorHandler creates a new OrchestratorHandler instance
func NewOrchestratorHandler(deps *Dependencies) *OrchestratorHandler {
	return &OrchestratorHandler{
		logger:        deps.Logger,
		orchestrators: deps.Orchestrators,
	}
}

// Run handles POST /api/v1/orchestrators/:kind/run
// Runs one invocation synchronously and answers with its summary. Domain failures are
// recorded on the jobs; only store failures produce a 500.
func (h *OrchestratorHandler) Run(c *gin.Context) {
	kind := c.Param("kind")
	runner, ok := h.orchestrators[kind]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Unknown orchestrator",
		})
		return
	}

	summary, err := runner.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("Orchestrator run failed",
			slog.String("orchestrator", kind),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Orchestrator run failed",
			"summary": summary,
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

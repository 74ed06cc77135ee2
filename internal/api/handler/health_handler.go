package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 3 * time.Second

// HealthCheck probes one backing dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler reports whether the backing dependencies are reachable
type HealthHandler struct {
	service string
	checks  map[string]HealthCheck
}

// NewHealthHandler creates a new HealthHandler instance. Without explicit checks it pings the store.
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	checks := deps.HealthChecks
	if len(checks) == 0 && deps.Store != nil {
		checks = map[string]HealthCheck{"storage": deps.Store.Ping}
	}
	return &HealthHandler{service: deps.ServiceName, checks: checks}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	results := make(gin.H, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			healthy = false
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": h.service,
			"checks":  results,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.service,
		"checks":  results,
	})
}

package health

import (
	"net/http"

	"github.com/TomasB/geoheader/internal/data"
	"github.com/gin-gonic/gin"
)

// Probe reports the state of the geo database.
type Probe interface {
	// Err returns the sticky open error, if any.
	Err() error
	Edition() data.Edition
}

// Handler manages health check endpoints
type Handler struct {
	probe Probe
	stale func() bool
}

// NewHandler creates a health handler. stale, when set, reports whether the
// dataset file changed on disk after it was loaded.
func NewHandler(probe Probe, stale func() bool) *Handler {
	return &Handler{probe: probe, stale: stale}
}

// Health is the liveness probe endpoint. Geolocation failures never make the
// process unhealthy.
// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready is the readiness probe endpoint
// GET /ready
func (h *Handler) Ready(c *gin.Context) {
	if h.probe == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	if err := h.probe.Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	stale := false
	if h.stale != nil {
		stale = h.stale()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"edition": h.probe.Edition().String(),
		"stale":   stale,
	})
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-console/internal/service"
)

type backendHealth interface {
	Health(ctx context.Context) error
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	backend backendHealth
}

// NewMetricsHandler constructs a metrics handler. backend may be nil.
func NewMetricsHandler(metrics *service.MetricsService, backend backendHealth) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, backend: backend}
}

// Prometheus godoc
// @Summary Prometheus metrics
// @Tags Ops
// @Produce plain
// @Success 200
// @Failure 503
// @Router /metrics [get]
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health godoc
// @Summary Console liveness and backend reachability
// @Tags Ops
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *MetricsHandler) Health(c *gin.Context) {
	if h.backend == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.backend.Health(ctx); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "degraded", "backend": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": "ok"})
}

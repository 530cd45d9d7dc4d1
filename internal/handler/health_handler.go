package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/erp-timetable-proxy/internal/dto"
	"github.com/noah-isme/erp-timetable-proxy/internal/service"
)

// HealthHandler exposes liveness, readiness and metrics endpoints.
type HealthHandler struct {
	metrics *service.MetricsService
	ready   func(context.Context) error
}

// NewHealthHandler constructs a health handler. ready may be nil.
func NewHealthHandler(metrics *service.MetricsService, ready func(context.Context) error) *HealthHandler {
	return &HealthHandler{metrics: metrics, ready: ready}
}

// Root godoc
// @Summary Service status
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router / [get]
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Message: "Backend running", Status: "healthy"})
}

// Health responds with a generic OK payload for liveness probes.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the ticket store backend is reachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *HealthHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

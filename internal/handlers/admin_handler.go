package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/bizflow/backend/internal/jobs"
	"github.com/bizflow/backend/internal/queue"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SweepRunner runs a named billing sweep
type SweepRunner interface {
	Run(ctx context.Context, name string) (interface{}, error)
}

// QueueInspector reports notification queue depth
type QueueInspector interface {
	Stats(ctx context.Context, queueName string) (*queue.QueueStats, error)
}

// AdminHandler lets operators trigger sweeps outside the schedule
type AdminHandler struct {
	runner    SweepRunner
	queue     QueueInspector
	queueName string
}

// NewAdminHandler creates a new admin handler. q may be nil when Redis is not configured.
func NewAdminHandler(runner SweepRunner, q QueueInspector, queueName string) *AdminHandler {
	return &AdminHandler{runner: runner, queue: q, queueName: queueName}
}

// RunSweep returns a handler that runs the named sweep and responds with its summary
func (h *AdminHandler) RunSweep(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := h.runner.Run(c.Request.Context(), name)
		if err != nil {
			if errors.Is(err, queue.ErrLeaseHeld) {
				c.JSON(http.StatusConflict, gin.H{"error": "Sweep already running"})
				return
			}
			if errors.Is(err, jobs.ErrUnknownSweep) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Unknown sweep"})
				return
			}
			log.Error().Err(err).Str("sweep", name).Str("operator", c.GetString("email")).Msg("admin sweep failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed"})
			return
		}

		log.Info().Str("sweep", name).Str("operator", c.GetString("email")).Msg("admin sweep triggered")
		c.JSON(http.StatusOK, gin.H{"sweep": name, "summary": summary})
	}
}

// NotificationStats handles GET /api/v1/admin/billing/notifications
func (h *AdminHandler) NotificationStats(c *gin.Context) {
	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Notification queue not configured"})
		return
	}

	stats, err := h.queue.Stats(c.Request.Context(), h.queueName)
	if err != nil {
		log.Error().Err(err).Msg("failed to read notification queue stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read queue stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

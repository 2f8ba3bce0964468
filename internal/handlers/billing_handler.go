package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/bizflow/backend/internal/repository"
	"github.com/bizflow/backend/internal/services/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AccessChecker evaluates a tenant's access on demand
type AccessChecker interface {
	CheckAccess(ctx context.Context, businessID uuid.UUID) (*billing.AccessResult, error)
}

// BillingHandler serves tenant-facing billing queries
type BillingHandler struct {
	status AccessChecker
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(status AccessChecker) *BillingHandler {
	return &BillingHandler{status: status}
}

// CheckAccess handles GET /api/v1/billing/access/:businessId
func (h *BillingHandler) CheckAccess(c *gin.Context) {
	businessID, err := uuid.Parse(c.Param("businessId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid business ID"})
		return
	}

	result, err := h.status.CheckAccess(c.Request.Context(), businessID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
			return
		}
		log.Error().Err(err).Str("business_id", businessID.String()).Msg("access check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}

	c.JSON(http.StatusOK, result)
}

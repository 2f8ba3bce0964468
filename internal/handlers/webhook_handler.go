package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/bizflow/backend/internal/services/billing"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ChecksumHeader carries the gateway's event checksum. It takes precedence over the body checksum.
const ChecksumHeader = "X-Event-Checksum"

const maxWebhookBody = 1 << 20

// WebhookProcessor reconciles a decoded gateway event
type WebhookProcessor interface {
	Handle(ctx context.Context, env *billing.WebhookEnvelope, headerChecksum string) (*billing.WebhookResult, error)
}

// WebhookHandler receives payment gateway events
type WebhookHandler struct {
	reconciler WebhookProcessor
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(reconciler WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// PaymentWebhook handles POST /api/v1/webhooks/payments
func (h *WebhookHandler) PaymentWebhook(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)

	env, err := billing.DecodeEnvelope(body)
	if err != nil {
		log.Warn().Err(err).Str("ip", c.ClientIP()).Msg("rejected malformed webhook")
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid payload"})
		return
	}

	result, err := h.reconciler.Handle(c.Request.Context(), env, c.GetHeader(ChecksumHeader))
	if err != nil {
		status, message := webhookError(err)
		log.Warn().Err(err).Str("event", env.Event).Int("status", status).Msg("webhook not processed")
		c.JSON(status, gin.H{"success": false, "message": message})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"handled":   result.Handled,
		"message":   result.Message,
		"newStatus": result.NewStatus,
	})
}

func webhookError(err error) (int, string) {
	switch {
	case errors.Is(err, billing.ErrSignatureMismatch), errors.Is(err, billing.ErrMalformedSignature):
		return http.StatusUnauthorized, "Invalid signature"
	case errors.Is(err, billing.ErrMissingSecret):
		// fail closed; the gateway redelivers once the secret is configured
		return http.StatusInternalServerError, "Webhook verification unavailable"
	case errors.Is(err, billing.ErrUnknownPaymentReference):
		return http.StatusNotFound, "Unknown payment reference"
	case errors.Is(err, billing.ErrMalformedEnvelope):
		return http.StatusBadRequest, "Invalid payload"
	}
	return http.StatusInternalServerError, "Failed to process webhook"
}

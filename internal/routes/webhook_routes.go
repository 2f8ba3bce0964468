package routes

import (
	"github.com/bizflow/backend/internal/handlers"
	"github.com/bizflow/backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterWebhookRoutes configures the payment gateway callback. It carries no
// auth middleware; events are verified by their checksum.
func RegisterWebhookRoutes(v1 *gin.RouterGroup, webhookHandler *handlers.WebhookHandler, rateLimiter *middleware.RateLimiter) {
	webhooks := v1.Group("/webhooks")
	if rateLimiter != nil {
		webhooks.Use(rateLimiter.Middleware())
	}
	{
		webhooks.POST("/payments", webhookHandler.PaymentWebhook)
	}
}

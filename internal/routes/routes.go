package routes

import (
	"net/http"

	"github.com/bizflow/backend/internal/handlers"
	"github.com/bizflow/backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Dependencies are the handlers and settings the router wires together
type Dependencies struct {
	DB          *gorm.DB
	Webhook     *handlers.WebhookHandler
	Billing     *handlers.BillingHandler
	Admin       *handlers.AdminHandler
	RateLimiter *middleware.RateLimiter
	JWTSecret   string
}

// RegisterRoutes configures all API routes
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	router.Use(middleware.SecureHeadersMiddleware())

	router.GET("/health", healthCheck(deps.DB))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	RegisterWebhookRoutes(v1, deps.Webhook, deps.RateLimiter)
	RegisterBillingRoutes(v1, deps.Billing, deps.Admin, deps.JWTSecret)
}

func healthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

package routes

import (
	"github.com/bizflow/backend/internal/handlers"
	"github.com/bizflow/backend/internal/jobs"
	"github.com/bizflow/backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterBillingRoutes configures the access check and the admin sweep triggers
func RegisterBillingRoutes(v1 *gin.RouterGroup, billingHandler *handlers.BillingHandler, adminHandler *handlers.AdminHandler, jwtSecret string) {
	billing := v1.Group("/billing")
	billing.Use(middleware.AuthMiddleware(jwtSecret))
	{
		billing.GET("/access/:businessId", billingHandler.CheckAccess)
	}

	admin := v1.Group("/admin/billing")
	admin.Use(middleware.AuthMiddleware(jwtSecret), middleware.AdminMiddleware())
	{
		admin.POST("/renewals", adminHandler.RunSweep(jobs.SweepRenewals))
		admin.POST("/retries", adminHandler.RunSweep(jobs.SweepRetries))
		admin.POST("/status-sweep", adminHandler.RunSweep(jobs.SweepStatus))
		admin.POST("/trial-reminders", adminHandler.RunSweep(jobs.SweepTrialReminders))
		admin.GET("/notifications", adminHandler.NotificationStats)
	}
}

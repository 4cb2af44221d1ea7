package api

import (
	"net/http"

	directoryDelivery "kidsnest-backend/internal/directory/delivery"
	notificationDelivery "kidsnest-backend/internal/notification/delivery"
	"kidsnest-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires the notification API surface.
func SetupRoutes(
	r *gin.Engine,
	cfg *config.Config,
	notificationHandler *notificationDelivery.NotificationHandler,
	adminHandler *notificationDelivery.AdminHandler,
) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		auth := directoryDelivery.AuthMiddleware(cfg.Auth.JWTSecret)

		// Device token routes (protected) - mobile/desktop clients
		devices := api.Group("/devices")
		devices.Use(auth)
		{
			devices.POST("", notificationHandler.RegisterDevice)
			devices.DELETE("/:token", notificationHandler.UnregisterDevice)
		}

		// Inbox routes (protected)
		notifications := api.Group("/notifications")
		notifications.Use(auth)
		{
			notifications.GET("", notificationHandler.GetInbox)
			notifications.PATCH("/:id/read", notificationHandler.MarkRead)
			notifications.PUT("/preferences/:type", notificationHandler.SetPreference)
		}

		// Admin routes (protected, admin role) - event producers and ops
		admin := api.Group("/admin")
		admin.Use(auth, directoryDelivery.AdminOnly())
		{
			admin.POST("/notifications", notificationHandler.Enqueue)
			admin.GET("/notifications/failed", adminHandler.ListFailed)
			admin.POST("/notifications/:id/requeue", adminHandler.Requeue)
			admin.GET("/templates", adminHandler.ListTemplates)
			admin.PUT("/templates/:type", adminHandler.UpsertTemplate)
			admin.POST("/dispatch", adminHandler.TriggerDispatch)
		}
	}
}

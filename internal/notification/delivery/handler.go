package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"kidsnest-backend/internal/notification/domain"
	"kidsnest-backend/internal/notification/usecase"

	"github.com/gin-gonic/gin"
)

// NotificationHandler serves the recipient-facing notification endpoints:
// inbox, read acknowledgments, device registration and preferences.
type NotificationHandler struct {
	notifier usecase.NotifierUsecase
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(notifier usecase.NotifierUsecase) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

// RegisterDeviceRequest is the body for registering a push token.
type RegisterDeviceRequest struct {
	Token      string `json:"token" binding:"required"`
	Platform   string `json:"platform" binding:"required"`
	DeviceName string `json:"device_name"`
}

// SetPreferenceRequest is the body for a channel opt-in/opt-out update.
type SetPreferenceRequest struct {
	EmailEnabled *bool `json:"email_enabled" binding:"required"`
	PushEnabled  *bool `json:"push_enabled" binding:"required"`
}

// GetInbox returns the recipient's notifications, newest first.
// GET /api/notifications?limit=50&offset=0
func (h *NotificationHandler) GetInbox(c *gin.Context) {
	recipientID := c.GetString("recipientID")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	notifications, total, err := h.notifier.Inbox(recipientID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"total":         total,
	})
}

// MarkRead acknowledges a notification in the inbox view.
// PATCH /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	recipientID := c.GetString("recipientID")
	notificationID := c.Param("id")

	if err := h.notifier.MarkRead(recipientID, notificationID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RegisterDevice stores a push token for the authenticated recipient.
// POST /api/devices
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	recipientID := c.GetString("recipientID")

	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.notifier.RegisterDevice(recipientID, req.Token, domain.Platform(req.Platform), req.DeviceName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}

// UnregisterDevice deactivates a push token.
// DELETE /api/devices/:token
func (h *NotificationHandler) UnregisterDevice(c *gin.Context) {
	token := c.Param("token")
	if err := h.notifier.UnregisterDevice(token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unregistered"})
}

// SetPreference updates the recipient's channel flags for one type.
// PUT /api/notifications/preferences/:type
func (h *NotificationHandler) SetPreference(c *gin.Context) {
	recipientID := c.GetString("recipientID")
	notificationType := c.Param("type")

	var req SetPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.notifier.SetPreference(recipientID, notificationType, *req.EmailEnabled, *req.PushEnabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// EnqueueRequest is the producer-facing body for queueing a notification.
type EnqueueRequest struct {
	RecipientID  string            `json:"recipient_id" binding:"required"`
	Type         string            `json:"type" binding:"required"`
	Placeholders map[string]string `json:"placeholders"`
	Data         map[string]string `json:"data"`
	Channel      string            `json:"channel"`
}

// Enqueue creates a queue entry for a domain event. Producers must
// treat a skipped response as success.
// POST /api/admin/notifications
func (h *NotificationHandler) Enqueue(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel := domain.Channel(req.Channel)
	if req.Channel == "" {
		channel = domain.ChannelBoth
	}

	result, err := h.notifier.Enqueue(req.RecipientID, req.Type, req.Placeholders, req.Data, channel)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownTemplate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if result.Skipped {
		c.JSON(http.StatusOK, gin.H{"skipped": true})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": result.ID})
}

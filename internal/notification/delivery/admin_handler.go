package delivery

import (
	"net/http"
	"strconv"

	"kidsnest-backend/internal/notification/domain"
	"kidsnest-backend/internal/notification/usecase"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the administrative surface: template management,
// failed-row views, manual requeue and on-demand dispatch.
type AdminHandler struct {
	notifier   usecase.NotifierUsecase
	dispatcher *usecase.Dispatcher
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(notifier usecase.NotifierUsecase, dispatcher *usecase.Dispatcher) *AdminHandler {
	return &AdminHandler{notifier: notifier, dispatcher: dispatcher}
}

// UpsertTemplateRequest is the body for creating or editing a template.
// Edits only change rendering for future sends.
type UpsertTemplateRequest struct {
	DisplayName       string `json:"display_name"`
	SubjectTemplate   string `json:"subject_template" binding:"required"`
	BodyTemplate      string `json:"body_template" binding:"required"`
	PushTitleTemplate string `json:"push_title_template"`
	PushBodyTemplate  string `json:"push_body_template"`
	Active            *bool  `json:"active"`
}

// ListTemplates returns all message templates.
// GET /api/admin/templates
func (h *AdminHandler) ListTemplates(c *gin.Context) {
	templates, err := h.notifier.ListTemplates()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// UpsertTemplate creates or replaces a template by type.
// PUT /api/admin/templates/:type
func (h *AdminHandler) UpsertTemplate(c *gin.Context) {
	var req UpsertTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	err := h.notifier.UpsertTemplate(&domain.NotificationTemplate{
		Type:              c.Param("type"),
		DisplayName:       req.DisplayName,
		SubjectTemplate:   req.SubjectTemplate,
		BodyTemplate:      req.BodyTemplate,
		PushTitleTemplate: req.PushTitleTemplate,
		PushBodyTemplate:  req.PushBodyTemplate,
		Active:            active,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListFailed returns terminally failed rows with their error messages.
// GET /api/admin/notifications/failed
func (h *AdminHandler) ListFailed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	notifications, err := h.notifier.ListFailed(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// Requeue puts a failed row back into the delivery cycle with a fresh
// attempt budget. No retries happen once failed without this.
// POST /api/admin/notifications/:id/requeue
func (h *AdminHandler) Requeue(c *gin.Context) {
	if err := h.notifier.Requeue(c.Param("id")); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "requeued"})
}

// TriggerDispatch runs one dispatch batch on demand.
// POST /api/admin/dispatch
func (h *AdminHandler) TriggerDispatch(c *gin.Context) {
	stats, err := h.dispatcher.RunOnce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recovered":      stats.Recovered,
		"claimed":        stats.Claimed,
		"sent":           stats.Sent,
		"retryable":      stats.Retryable,
		"terminal":       stats.Terminal,
		"invalid_tokens": stats.InvalidTokens,
	})
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autobizz/autobet/internal/domain/notifications"
	"github.com/autobizz/autobet/pkg/auth"
)

type NotificationHandler struct {
	service *notifications.Service
}

func NewNotificationHandler(service *notifications.Service) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List handles GET /notifications?unread=true
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		writeProblem(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	unreadOnly := c.Query("unread") == "true"
	list, err := h.service.ListForUser(c.Request.Context(), userID, unreadOnly)
	if err != nil {
		writeError(c, err)
		return
	}

	result := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		result = append(result, notificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			Payload:   n.Payload,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"notifications": result})
}

// MarkRead handles POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeProblem(c, http.StatusBadRequest, "invalid notification id")
		return
	}

	userID, ok := auth.UserID(c)
	if !ok {
		writeProblem(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), userID, notificationID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterDevice handles POST /devices
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	userID, ok := auth.UserID(c)
	if !ok {
		writeProblem(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	device, err := h.service.RegisterDevice(c.Request.Context(), userID, req.ExpoPushToken)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"device_id": device.ID})
}

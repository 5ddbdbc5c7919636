package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zenpa1/budget-tracker/internal/middleware"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/services"
)

// NotificationHandler serves the notification bell.
type NotificationHandler struct {
	notificationService services.NotificationServicer
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationService services.NotificationServicer) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// NotificationsResponse is the bell's contents.
type NotificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

// GetNotifications lists the caller's notifications, newest first.
// @Summary     Get notifications
// @Description List notifications visible to the caller's role, newest first
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} NotificationsResponse "Notifications"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /notifications [get]
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	list := h.notificationService.ListNotifications(middleware.CurrentUser(c))
	resp := NotificationsResponse{Notifications: list}
	if resp.Notifications == nil {
		resp.Notifications = []models.Notification{}
	}
	for _, n := range list {
		if !n.Read {
			resp.UnreadCount++
		}
	}
	c.JSON(http.StatusOK, resp)
}

// MarkRead marks one notification read.
// @Summary     Mark notification read
// @Tags        notifications
// @Security    BearerAuth
// @Param       id path string true "Notification ID"
// @Success     204 "Marked read"
// @Failure     404 {object} ErrorResponse "Notification not found"
// @Router      /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.notificationService.MarkNotificationRead(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead marks every visible notification read.
// @Summary     Mark all notifications read
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]int "Number of notifications changed"
// @Failure     502 {object} ErrorResponse "Store error"
// @Router      /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notificationService.MarkAllNotificationsRead(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

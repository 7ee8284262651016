package api

import (
	"alcyxob/gym-sessions/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NotificationHandler serves a member's inbox.
type NotificationHandler struct {
	notifications service.NotificationService
}

func NewNotificationHandler(notifications service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

type MarkedReadResponse struct {
	Marked int64 `json:"marked"`
}

// ListNotifications godoc
// @Summary List notifications, newest first
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param unread query bool false "Only unread notifications"
// @Success 200 {array} domain.Notification
// @Failure 403 {object} gin.H "Forbidden"
// @Router /members/{memberId}/notifications [get]
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	unreadOnly := c.Query("unread") == "true"
	items, err := h.notifications.List(c.Request.Context(), actor, memberID, unreadOnly)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve notifications.")
		return
	}
	c.JSON(http.StatusOK, items)
}

// CountUnread godoc
// @Summary Count unread notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Success 200 {object} UnreadCountResponse
// @Router /members/{memberId}/notifications/unread-count [get]
func (h *NotificationHandler) CountUnread(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	n, err := h.notifications.CountUnread(c.Request.Context(), actor, memberID)
	if err != nil {
		respondWithError(c, err, "Failed to count notifications.")
		return
	}
	c.JSON(http.StatusOK, UnreadCountResponse{Unread: n})
}

// MarkAllRead godoc
// @Summary Mark every notification as read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Success 200 {object} MarkedReadResponse
// @Router /members/{memberId}/notifications/read [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	n, err := h.notifications.MarkAllRead(c.Request.Context(), actor, memberID)
	if err != nil {
		respondWithError(c, err, "Failed to update notifications.")
		return
	}
	c.JSON(http.StatusOK, MarkedReadResponse{Marked: n})
}

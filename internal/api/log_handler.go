package api

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// LogHandler serves diet and workout logs. One instance is bound to each kind.
type LogHandler struct {
	logs service.LogService
	kind domain.LogKind
}

func NewLogHandler(logs service.LogService, kind domain.LogKind) *LogHandler {
	return &LogHandler{logs: logs, kind: kind}
}

// --- DTOs ---

type CreateLogRequest struct {
	LoggedAt time.Time `json:"loggedAt"`
	Title    string    `json:"title" binding:"required"`
	Content  string    `json:"content"`
	Calories *int      `json:"calories"` // Diet logs only
}

type UpdateLogRequest struct {
	LoggedAt *time.Time `json:"loggedAt"`
	Title    *string    `json:"title"`
	Content  *string    `json:"content"`
	Calories *int       `json:"calories"`
}

type MediaUploadRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

type MediaURLResponse struct {
	URL string `json:"url"`
}

// CreateLog godoc
// @Summary Create a diet or workout log
// @Description Allowed for the member's trainer, an admin, or the member themself while PT.
// @Tags Logs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param body body CreateLogRequest true "Log entry"
// @Success 201 {object} domain.ActivityLog
// @Failure 403 {object} gin.H "Forbidden"
// @Router /members/{memberId}/diet-logs [post]
// @Router /members/{memberId}/workout-logs [post]
func (h *LogHandler) CreateLog(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	var req CreateLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	entry, err := h.logs.Create(c.Request.Context(), actor, h.kind, memberID, service.LogInput{
		LoggedAt: req.LoggedAt,
		Title:    req.Title,
		Content:  req.Content,
		Calories: req.Calories,
	})
	if err != nil {
		respondWithError(c, err, "Failed to save log.")
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ListLogs godoc
// @Summary List a member's logs
// @Tags Logs
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Success 200 {array} domain.ActivityLog
// @Router /members/{memberId}/diet-logs [get]
// @Router /members/{memberId}/workout-logs [get]
func (h *LogHandler) ListLogs(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	entries, err := h.logs.List(c.Request.Context(), actor, h.kind, memberID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve logs.")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetLog godoc
// @Summary Get a log entry
// @Tags Logs
// @Produce json
// @Security BearerAuth
// @Param logId path string true "Log ID"
// @Success 200 {object} domain.ActivityLog
// @Router /diet-logs/{logId} [get]
// @Router /workout-logs/{logId} [get]
func (h *LogHandler) GetLog(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logID, ok := pathID(c, "logId")
	if !ok {
		return
	}
	entry, err := h.logs.Get(c.Request.Context(), actor, h.kind, logID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve log.")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// UpdateLog godoc
// @Summary Edit a log entry
// @Tags Logs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param logId path string true "Log ID"
// @Param body body UpdateLogRequest true "Fields to change"
// @Success 200 {object} domain.ActivityLog
// @Router /diet-logs/{logId} [put]
// @Router /workout-logs/{logId} [put]
func (h *LogHandler) UpdateLog(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logID, ok := pathID(c, "logId")
	if !ok {
		return
	}
	var req UpdateLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	entry, err := h.logs.Update(c.Request.Context(), actor, h.kind, logID, service.LogUpdate{
		LoggedAt: req.LoggedAt,
		Title:    req.Title,
		Content:  req.Content,
		Calories: req.Calories,
	})
	if err != nil {
		respondWithError(c, err, "Failed to update log.")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// DeleteLog godoc
// @Summary Delete a log entry and its media
// @Tags Logs
// @Security BearerAuth
// @Param logId path string true "Log ID"
// @Success 204
// @Router /diet-logs/{logId} [delete]
// @Router /workout-logs/{logId} [delete]
func (h *LogHandler) DeleteLog(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logID, ok := pathID(c, "logId")
	if !ok {
		return
	}
	if err := h.logs.Delete(c.Request.Context(), actor, h.kind, logID); err != nil {
		respondWithError(c, err, "Failed to delete log.")
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestMediaUpload godoc
// @Summary Get a presigned URL to upload a photo or video for a log
// @Description The client PUTs the file to uploadUrl with the same Content-Type. Any previous media is replaced.
// @Tags Logs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param logId path string true "Log ID"
// @Param body body MediaUploadRequest true "Content type"
// @Success 200 {object} service.MediaUploadResponse
// @Failure 400 {object} gin.H "Unsupported content type"
// @Failure 503 {object} gin.H "Media storage not configured"
// @Router /diet-logs/{logId}/media [post]
// @Router /workout-logs/{logId}/media [post]
func (h *LogHandler) RequestMediaUpload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logID, ok := pathID(c, "logId")
	if !ok {
		return
	}
	var req MediaUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	resp, err := h.logs.RequestMediaUpload(c.Request.Context(), actor, h.kind, logID, req.ContentType)
	if err != nil {
		respondWithError(c, err, "Failed to prepare media upload.")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetMediaURL godoc
// @Summary Get a temporary download URL for a log's media
// @Tags Logs
// @Produce json
// @Security BearerAuth
// @Param logId path string true "Log ID"
// @Success 200 {object} MediaURLResponse
// @Failure 404 {object} gin.H "Log has no media"
// @Router /diet-logs/{logId}/media [get]
// @Router /workout-logs/{logId}/media [get]
func (h *LogHandler) GetMediaURL(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logID, ok := pathID(c, "logId")
	if !ok {
		return
	}
	url, err := h.logs.MediaURL(c.Request.Context(), actor, h.kind, logID)
	if err != nil {
		respondWithError(c, err, "Failed to generate media URL.")
		return
	}
	c.JSON(http.StatusOK, MediaURLResponse{URL: url})
}

package api

import (
	"alcyxob/gym-sessions/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CommentHandler serves comments on diet logs.
type CommentHandler struct {
	comments service.CommentService
}

func NewCommentHandler(comments service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// --- DTOs ---

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreateComment godoc
// @Summary Comment on a diet log
// @Description Allowed to whoever may write the log: the member's trainer, an admin, or the member themself while PT.
// @Tags Comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param logId path string true "Diet log ID"
// @Param body body CreateCommentRequest true "Comment"
// @Success 201 {object} domain.LogComment
// @Failure 400 {object} gin.H "Empty or too long"
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 404 {object} gin.H "Diet log not found"
// @Router /diet-logs/{logId}/comments [post]
func (h *CommentHandler) CreateComment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logID, ok := pathID(c, "logId")
	if !ok {
		return
	}
	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	comment, err := h.comments.Create(c.Request.Context(), actor, logID, req.Content)
	if err != nil {
		respondWithError(c, err, "Failed to create comment.")
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// ListComments godoc
// @Summary List the comments on a diet log, oldest first
// @Tags Comments
// @Produce json
// @Security BearerAuth
// @Param logId path string true "Diet log ID"
// @Success 200 {array} domain.LogComment
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 404 {object} gin.H "Diet log not found"
// @Router /diet-logs/{logId}/comments [get]
func (h *CommentHandler) ListComments(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logID, ok := pathID(c, "logId")
	if !ok {
		return
	}
	comments, err := h.comments.List(c.Request.Context(), actor, logID)
	if err != nil {
		respondWithError(c, err, "Failed to list comments.")
		return
	}
	c.JSON(http.StatusOK, comments)
}

// DeleteComment godoc
// @Summary Delete a comment
// @Description Allowed to the author, the trainer of the log's owner, and admins.
// @Tags Comments
// @Security BearerAuth
// @Param logId path string true "Diet log ID"
// @Param commentId path string true "Comment ID"
// @Success 204
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 404 {object} gin.H "Comment not found"
// @Router /diet-logs/{logId}/comments/{commentId} [delete]
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logID, ok := pathID(c, "logId")
	if !ok {
		return
	}
	commentID, ok := pathID(c, "commentId")
	if !ok {
		return
	}
	if err := h.comments.Delete(c.Request.Context(), actor, logID, commentID); err != nil {
		respondWithError(c, err, "Failed to delete comment.")
		return
	}
	c.Status(http.StatusNoContent)
}

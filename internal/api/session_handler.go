package api

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionHandler serves PT session records.
type SessionHandler struct {
	sessions service.SessionService
}

func NewSessionHandler(sessions service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// --- DTOs ---

type CreateSessionRequest struct {
	OccurredAt         time.Time `json:"occurredAt"` // Defaults to now
	DurationMinutes    int       `json:"durationMinutes" binding:"required,gt=0"`
	Notes              string    `json:"notes"`
	TrainerPrivateMemo string    `json:"trainerPrivateMemo"`
}

type UpdateSessionRequest struct {
	OccurredAt         *time.Time `json:"occurredAt"`
	DurationMinutes    *int       `json:"durationMinutes"`
	Notes              *string    `json:"notes"`
	TrainerPrivateMemo *string    `json:"trainerPrivateMemo"`
}

// CreateSession godoc
// @Summary Log a completed PT session
// @Description Records the session and consumes one regular unit in the same transaction.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param body body CreateSessionRequest true "Session details"
// @Success 201 {object} service.SessionOutcome
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Only the assigned trainer or an admin may log sessions"
// @Failure 404 {object} gin.H "Member or membership not found"
// @Failure 409 {object} gin.H "No sessions remaining"
// @Router /members/{memberId}/sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	out, err := h.sessions.Create(c.Request.Context(), actor, memberID, service.SessionRecordInput{
		OccurredAt:         req.OccurredAt,
		DurationMinutes:    req.DurationMinutes,
		Notes:              req.Notes,
		TrainerPrivateMemo: req.TrainerPrivateMemo,
	})
	if err != nil {
		respondWithError(c, err, "Failed to log session.")
		return
	}
	c.JSON(http.StatusCreated, out)
}

// ListMemberSessions godoc
// @Summary List a member's sessions
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param from query string false "RFC3339 lower bound on occurredAt"
// @Param to query string false "RFC3339 upper bound on occurredAt"
// @Success 200 {array} domain.SessionRecord
// @Failure 400 {object} gin.H "Invalid range"
// @Failure 403 {object} gin.H "Forbidden"
// @Router /members/{memberId}/sessions [get]
func (h *SessionHandler) ListMemberSessions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	from, ok := queryTime(c, "from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return
	}

	records, err := h.sessions.ListForMember(c.Request.Context(), actor, memberID, from, to)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve sessions.")
		return
	}
	c.JSON(http.StatusOK, records)
}

// ListTrainerSessions godoc
// @Summary List sessions authored by a trainer
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param trainerId path string true "Trainer ID"
// @Success 200 {array} domain.SessionRecord
// @Router /trainers/{trainerId}/sessions [get]
func (h *SessionHandler) ListTrainerSessions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	trainerID, ok := pathID(c, "trainerId")
	if !ok {
		return
	}
	records, err := h.sessions.ListForTrainer(c.Request.Context(), actor, trainerID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve sessions.")
		return
	}
	if records == nil {
		records = []domain.SessionRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// GetSession godoc
// @Summary Get a session record
// @Description The trainer's private memo is only returned to its author and admins.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session record ID"
// @Success 200 {object} domain.SessionRecord
// @Failure 404 {object} gin.H "Not found"
// @Router /sessions/{sessionId} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	recordID, ok := pathID(c, "sessionId")
	if !ok {
		return
	}
	record, err := h.sessions.Get(c.Request.Context(), actor, recordID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve session.")
		return
	}
	c.JSON(http.StatusOK, record)
}

// UpdateSession godoc
// @Summary Edit a session record
// @Description Only descriptive fields change; the ledger is untouched. Author or admin only.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session record ID"
// @Param body body UpdateSessionRequest true "Fields to change"
// @Success 200 {object} domain.SessionRecord
// @Failure 403 {object} gin.H "Not the author"
// @Router /sessions/{sessionId} [patch]
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	recordID, ok := pathID(c, "sessionId")
	if !ok {
		return
	}
	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	record, err := h.sessions.Update(c.Request.Context(), actor, recordID, service.SessionRecordUpdate{
		OccurredAt:         req.OccurredAt,
		DurationMinutes:    req.DurationMinutes,
		Notes:              req.Notes,
		TrainerPrivateMemo: req.TrainerPrivateMemo,
	})
	if err != nil {
		respondWithError(c, err, "Failed to update session.")
		return
	}
	c.JSON(http.StatusOK, record)
}

// DeleteSession godoc
// @Summary Delete a session record
// @Description Removes the record and gives one regular session back. The member's role is not changed.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session record ID"
// @Success 200 {object} service.SessionOutcome
// @Failure 403 {object} gin.H "Not the author"
// @Failure 404 {object} gin.H "Not found"
// @Router /sessions/{sessionId} [delete]
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	recordID, ok := pathID(c, "sessionId")
	if !ok {
		return
	}
	out, err := h.sessions.Delete(c.Request.Context(), actor, recordID)
	if err != nil {
		respondWithError(c, err, "Failed to delete session.")
		return
	}
	c.JSON(http.StatusOK, out)
}

// queryTime parses an optional RFC3339 query parameter.
func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, name+" must be an RFC3339 timestamp.")
		return nil, false
	}
	return &t, true
}

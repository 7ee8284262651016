package api

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/service"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// MembershipHandler exposes session ledgers: balances, registrations and consumption.
type MembershipHandler struct {
	ledger service.LedgerService
}

func NewMembershipHandler(ledger service.LedgerService) *MembershipHandler {
	return &MembershipHandler{ledger: ledger}
}

// --- DTOs ---

// RegisterSessionsRequest is one purchase. paymentAmount accepts a JSON number or string.
type RegisterSessionsRequest struct {
	RegularSessions int             `json:"regularSessions" binding:"min=0"`
	ServiceSessions int             `json:"serviceSessions" binding:"min=0"`
	ValidFrom       *time.Time      `json:"validFrom"`
	ValidTo         *time.Time      `json:"validTo"`
	PaymentAmount   decimal.Decimal `json:"paymentAmount"`
}

type DecrementRequest struct {
	Kind string `json:"kind"` // REGULAR (default) or SERVICE
}

// GetLedger godoc
// @Summary Get a member's session balance
// @Tags Memberships
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Success 200 {object} domain.LedgerView
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 404 {object} gin.H "Member not found"
// @Router /members/{memberId}/membership [get]
func (h *MembershipHandler) GetLedger(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	view, err := h.ledger.GetLedger(c.Request.Context(), actor, memberID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve membership.")
		return
	}
	c.JSON(http.StatusOK, view)
}

// RegisterSessions godoc
// @Summary Register purchased sessions
// @Description Adds regular and service sessions to the member's ledger and records the purchase.
// @Description An OT member holding regular sessions afterwards becomes PT.
// @Tags Memberships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param body body RegisterSessionsRequest true "Purchase"
// @Success 200 {object} service.LedgerChange
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Only the assigned trainer or an admin may register sessions"
// @Failure 404 {object} gin.H "Member not found"
// @Router /members/{memberId}/membership/register [post]
func (h *MembershipHandler) RegisterSessions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	var req RegisterSessionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	change, err := h.ledger.Register(c.Request.Context(), actor, memberID, service.RegisterInput{
		RegularSessions: req.RegularSessions,
		ServiceSessions: req.ServiceSessions,
		ValidFrom:       req.ValidFrom,
		ValidTo:         req.ValidTo,
		PaymentAmount:   req.PaymentAmount,
	})
	if err != nil {
		respondWithError(c, err, "Failed to register sessions.")
		return
	}
	c.JSON(http.StatusOK, change)
}

// DecrementSession godoc
// @Summary Consume one session
// @Description Uses one unit of the given kind. A PT member whose regular balance reaches zero becomes OT.
// @Tags Memberships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param body body DecrementRequest false "Session kind"
// @Success 200 {object} service.LedgerChange
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 409 {object} gin.H "No sessions remaining"
// @Router /members/{memberId}/membership/decrement [post]
func (h *MembershipHandler) DecrementSession(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	var req DecrementRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	kind, err := domain.ParseSessionKind(req.Kind)
	if err != nil {
		respondWithError(c, err, "Invalid session kind.")
		return
	}

	change, err := h.ledger.Decrement(c.Request.Context(), actor, memberID, kind)
	if err != nil {
		respondWithError(c, err, "Failed to consume session.")
		return
	}
	c.JSON(http.StatusOK, change)
}

// LatestRegistration godoc
// @Summary Get the most recent purchase
// @Tags Memberships
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Success 200 {object} domain.LedgerHistoryEntry
// @Failure 404 {object} gin.H "No registration yet"
// @Router /members/{memberId}/membership/history/latest [get]
func (h *MembershipHandler) LatestRegistration(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	entry, err := h.ledger.LatestRegistration(c.Request.Context(), actor, memberID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve registration.")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// RegistrationHistory godoc
// @Summary List purchases, newest first
// @Tags Memberships
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Success 200 {array} domain.LedgerHistoryEntry
// @Router /members/{memberId}/membership/history [get]
func (h *MembershipHandler) RegistrationHistory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	entries, err := h.ledger.RegistrationHistory(c.Request.Context(), actor, memberID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve registration history.")
		return
	}
	if entries == nil {
		entries = []domain.LedgerHistoryEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// LowRemainAlerts godoc
// @Summary List PT members running low on sessions
// @Description Admins see all PT members; trainers see their own.
// @Tags Memberships
// @Produce json
// @Security BearerAuth
// @Param threshold query int false "Remaining regular sessions at or below which a member is listed"
// @Success 200 {array} service.LowRemainMember
// @Failure 400 {object} gin.H "Invalid threshold"
// @Failure 403 {object} gin.H "Forbidden"
// @Router /memberships/alerts [get]
func (h *MembershipHandler) LowRemainAlerts(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var threshold *int
	if raw := c.Query("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "threshold must be an integer.")
			return
		}
		threshold = &n
	}

	members, err := h.ledger.LowRemainMembers(c.Request.Context(), actor, threshold)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve alerts.")
		return
	}
	c.JSON(http.StatusOK, members)
}

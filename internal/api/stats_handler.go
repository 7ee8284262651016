package api

import (
	"alcyxob/gym-sessions/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatsHandler serves log statistics and the admin dashboard.
type StatsHandler struct {
	stats service.StatsService
}

func NewStatsHandler(stats service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// MemberLogStats godoc
// @Summary Diet and workout log statistics for one member
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Success 200 {object} service.MemberLogStats
// @Failure 403 {object} gin.H "Forbidden"
// @Router /members/{memberId}/stats [get]
func (h *StatsHandler) MemberLogStats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	stats, err := h.stats.MemberLogStats(c.Request.Context(), actor, memberID)
	if err != nil {
		respondWithError(c, err, "Failed to compute log statistics.")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Summary godoc
// @Summary Gym-wide dashboard
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.GymSummary
// @Failure 403 {object} gin.H "Forbidden (not an admin)"
// @Router /admin/stats [get]
func (h *StatsHandler) Summary(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.stats.Summary(c.Request.Context(), actor)
	if err != nil {
		respondWithError(c, err, "Failed to compute statistics.")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// MemberActivity godoc
// @Summary Log activity of every member
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.MemberActivity
// @Failure 403 {object} gin.H "Forbidden (not an admin)"
// @Router /admin/stats/members [get]
func (h *StatsHandler) MemberActivity(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	rows, err := h.stats.MemberActivity(c.Request.Context(), actor)
	if err != nil {
		respondWithError(c, err, "Failed to compute member activity.")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// TrainerLoads godoc
// @Summary Trainee counts per trainer
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.TrainerLoad
// @Failure 403 {object} gin.H "Forbidden (not an admin)"
// @Router /admin/stats/trainers [get]
func (h *StatsHandler) TrainerLoads(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	loads, err := h.stats.TrainerLoads(c.Request.Context(), actor)
	if err != nil {
		respondWithError(c, err, "Failed to compute trainer statistics.")
		return
	}
	c.JSON(http.StatusOK, loads)
}

package api

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemberHandler serves the member directory.
type MemberHandler struct {
	directory service.DirectoryService
}

func NewMemberHandler(directory service.DirectoryService) *MemberHandler {
	return &MemberHandler{directory: directory}
}

// --- DTOs ---

type EnrollMemberRequest struct {
	Name      string      `json:"name" binding:"required"`
	Email     string      `json:"email" binding:"required,email"`
	Phone     string      `json:"phone"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role"`
	TrainerID string      `json:"trainerId"`
}

type AssignTrainerRequest struct {
	TrainerID string `json:"trainerId" binding:"required"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type HardRemoveResponse struct {
	DetachedMembers int64 `json:"detachedMembers"`
}

// Me godoc
// @Summary Get the authenticated member's profile
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MemberResponse
// @Failure 404 {object} gin.H "Member not found"
// @Router /me [get]
func (h *MemberHandler) Me(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	member, err := h.directory.Get(c.Request.Context(), actor, actor.ID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve profile.")
		return
	}
	c.JSON(http.StatusOK, MapMemberToResponse(member))
}

// EnrollMember godoc
// @Summary Enroll a member
// @Description Trainers enroll OT members for themselves; admins may enroll OT members, trainers and admins.
// @Description When no password is given the last four digits of the phone number are used.
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param member body EnrollMemberRequest true "Member details"
// @Success 201 {object} MemberResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 409 {object} gin.H "Email already exists"
// @Router /members [post]
func (h *MemberHandler) EnrollMember(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req EnrollMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	in := service.EnrollInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     req.Role,
	}
	if req.TrainerID != "" {
		trainerID, err := primitive.ObjectIDFromHex(req.TrainerID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid trainerId format.")
			return
		}
		in.TrainerID = &trainerID
	}

	member, err := h.directory.Enroll(c.Request.Context(), actor, in)
	if err != nil {
		respondWithError(c, err, "Failed to enroll member.")
		return
	}
	c.JSON(http.StatusCreated, MapMemberToResponse(member))
}

// GetMember godoc
// @Summary Get a member
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Success 200 {object} MemberResponse
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 404 {object} gin.H "Member not found"
// @Router /members/{memberId} [get]
func (h *MemberHandler) GetMember(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	member, err := h.directory.Get(c.Request.Context(), actor, memberID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve member.")
		return
	}
	c.JSON(http.StatusOK, MapMemberToResponse(member))
}

// ListMembers godoc
// @Summary List all members
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param role query string false "Only members with this role"
// @Success 200 {array} MemberResponse
// @Failure 400 {object} gin.H "Unknown role"
// @Failure 403 {object} gin.H "Forbidden (not an admin)"
// @Router /members [get]
func (h *MemberHandler) ListMembers(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var role *domain.Role
	if raw := c.Query("role"); raw != "" {
		r := domain.Role(raw)
		role = &r
	}
	members, err := h.directory.ListMembers(c.Request.Context(), actor, role)
	if err != nil {
		respondWithError(c, err, "Failed to list members.")
		return
	}
	c.JSON(http.StatusOK, MapMembersToResponse(members))
}

// UpdateProfile godoc
// @Summary Update a member's name or phone
// @Description Allowed for the member, their trainer, or an admin. Roles are never changed here.
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param body body UpdateProfileRequest true "Fields to change"
// @Success 200 {object} MemberResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 409 {object} gin.H "Phone already in use"
// @Router /members/{memberId} [patch]
func (h *MemberHandler) UpdateProfile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	member, err := h.directory.UpdateProfile(c.Request.Context(), actor, memberID, service.ProfileUpdate{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		respondWithError(c, err, "Failed to update profile.")
		return
	}
	c.JSON(http.StatusOK, MapMemberToResponse(member))
}

// ChangePassword godoc
// @Summary Change a member's password
// @Description Members must confirm their current password. Admins may reset any password without it.
// @Tags Members
// @Accept json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param body body ChangePasswordRequest true "Passwords"
// @Success 204
// @Failure 400 {object} gin.H "Wrong current password or weak new password"
// @Failure 403 {object} gin.H "Forbidden"
// @Router /members/{memberId}/password [put]
func (h *MemberHandler) ChangePassword(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	if err := h.directory.ChangePassword(c.Request.Context(), actor, memberID, req.CurrentPassword, req.NewPassword); err != nil {
		respondWithError(c, err, "Failed to change password.")
		return
	}
	c.Status(http.StatusNoContent)
}

// AssignTrainer godoc
// @Summary Assign a trainer to a member
// @Description Admins may assign any trainer-capable member; trainers may only claim unassigned members for themselves.
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param body body AssignTrainerRequest true "Trainer"
// @Success 200 {object} MemberResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 409 {object} gin.H "Member already assigned"
// @Router /members/{memberId}/trainer [put]
func (h *MemberHandler) AssignTrainer(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	var req AssignTrainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	trainerID, err := primitive.ObjectIDFromHex(req.TrainerID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid trainerId format.")
		return
	}

	member, err := h.directory.AssignTrainer(c.Request.Context(), actor, memberID, trainerID)
	if err != nil {
		respondWithError(c, err, "Failed to assign trainer.")
		return
	}
	c.JSON(http.StatusOK, MapMemberToResponse(member))
}

// RemoveMember godoc
// @Summary Remove a member
// @Description Soft-deletes a member. Members may remove themselves; admins may remove anyone except another admin.
// @Tags Members
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Success 204
// @Failure 400 {object} gin.H "Admin accounts cannot be removed"
// @Failure 403 {object} gin.H "Forbidden"
// @Router /members/{memberId} [delete]
func (h *MemberHandler) RemoveMember(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}
	if err := h.directory.Remove(c.Request.Context(), actor, memberID); err != nil {
		respondWithError(c, err, "Failed to remove member.")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTrainers godoc
// @Summary List trainers
// @Tags Trainers
// @Produce json
// @Security BearerAuth
// @Success 200 {array} MemberResponse
// @Failure 403 {object} gin.H "Forbidden (not an admin)"
// @Router /trainers [get]
func (h *MemberHandler) ListTrainers(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	trainers, err := h.directory.ListTrainers(c.Request.Context(), actor)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve trainers.")
		return
	}
	c.JSON(http.StatusOK, MapMembersToResponse(trainers))
}

// ListTrainees godoc
// @Summary List a trainer's members
// @Tags Trainers
// @Produce json
// @Security BearerAuth
// @Param trainerId path string true "Trainer ID"
// @Success 200 {array} MemberResponse
// @Failure 403 {object} gin.H "Forbidden"
// @Router /trainers/{trainerId}/members [get]
func (h *MemberHandler) ListTrainees(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	trainerID, ok := pathID(c, "trainerId")
	if !ok {
		return
	}
	members, err := h.directory.ListTrainees(c.Request.Context(), actor, trainerID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve members.")
		return
	}
	c.JSON(http.StatusOK, MapMembersToResponse(members))
}

// HardRemoveTrainer godoc
// @Summary Permanently delete a trainer
// @Description Admin only. Detaches the trainer's members first. Cannot be undone.
// @Tags Trainers
// @Produce json
// @Security BearerAuth
// @Param trainerId path string true "Trainer ID"
// @Success 200 {object} HardRemoveResponse
// @Failure 400 {object} gin.H "Member is not a trainer"
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 404 {object} gin.H "Trainer not found"
// @Router /trainers/{trainerId} [delete]
func (h *MemberHandler) HardRemoveTrainer(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	trainerID, ok := pathID(c, "trainerId")
	if !ok {
		return
	}
	detached, err := h.directory.HardRemoveTrainer(c.Request.Context(), actor, trainerID)
	if err != nil {
		respondWithError(c, err, "Failed to delete trainer.")
		return
	}
	c.JSON(http.StatusOK, HardRemoveResponse{DetachedMembers: detached})
}

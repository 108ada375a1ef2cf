package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trustvault/backend/internal/invite"
)

// InviteHandler serves the invite workflow.
type InviteHandler struct {
	invites *invite.Workflow
}

// NewInviteHandler creates an InviteHandler.
func NewInviteHandler(invites *invite.Workflow) *InviteHandler {
	return &InviteHandler{invites: invites}
}

type createInviteRequest struct {
	GroupID string `json:"groupId" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
}

// Create sends an invite to join a group. Owner only.
func (h *InviteHandler) Create(c *gin.Context) {
	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inv, err := h.invites.Create(c.Request.Context(), req.GroupID, userID(c), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"inviteId":     inv.ID,
		"groupId":      inv.GroupID,
		"inviteeEmail": inv.InviteeEmail,
		"status":       inv.Status,
		"message":      "Invite sent",
	})
}

// Mine returns the caller's pending invites.
func (h *InviteHandler) Mine(c *gin.Context) {
	invites, err := h.invites.PendingForEmail(c.Request.Context(), userEmail(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invites": invites, "count": len(invites)})
}

// ForGroup returns every invite for a group, any status. Owner only.
func (h *InviteHandler) ForGroup(c *gin.Context) {
	invites, err := h.invites.ForGroup(c.Request.Context(), c.Param("groupId"), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invites": invites, "count": len(invites)})
}

// Accept joins the caller to the inviting group.
func (h *InviteHandler) Accept(c *gin.Context) {
	groupID, err := h.invites.Accept(c.Request.Context(), c.Param("id"), userID(c), userEmail(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invite accepted", "groupId": groupID})
}

// Decline marks the invite declined.
func (h *InviteHandler) Decline(c *gin.Context) {
	if err := h.invites.Decline(c.Request.Context(), c.Param("id"), userEmail(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invite declined"})
}

// Cancel removes an invite. Inviter or group owner only.
func (h *InviteHandler) Cancel(c *gin.Context) {
	if err := h.invites.Cancel(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invite cancelled"})
}

package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/trustvault/backend/internal/accounting"
	"github.com/trustvault/backend/internal/errs"
	"github.com/trustvault/backend/internal/forecast"
	"github.com/trustvault/backend/internal/ledger"
	"github.com/trustvault/backend/internal/models"
	"github.com/trustvault/backend/internal/storage"
)

// GroupHandler serves group management, membership, and balances.
type GroupHandler struct {
	store  storage.Store
	groups *ledger.Ledger
	money  *accounting.Accounting
}

// NewGroupHandler creates a GroupHandler.
func NewGroupHandler(store storage.Store, groups *ledger.Ledger, money *accounting.Accounting) *GroupHandler {
	return &GroupHandler{store: store, groups: groups, money: money}
}

type createGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

type memberDetail struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	IsOwner   bool   `json:"isOwner"`
}

// Create creates a group owned by the caller.
func (h *GroupHandler) Create(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.CreateGroup(c.Request.Context(), userID(c), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"groupId":     group.ID,
		"name":        group.Name,
		"balance":     group.Balance,
		"members":     group.Members,
		"memberCount": group.MemberCount,
		"message":     "Group created successfully",
	})
}

// List returns every group the caller belongs to.
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groups.UserGroups(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// Get returns one group with member details and the derived total assets.
// Members only.
func (h *GroupHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	groupID := c.Param("id")

	group, err := h.groups.GetGroup(ctx, groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !group.HasMember(userID(c)) {
		respondError(c, errs.New(errs.Forbidden, "you are not a member of this group"))
		return
	}

	details, err := h.memberDetails(c, group)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": gin.H{
		"groupId":        group.ID,
		"name":           group.Name,
		"createdBy":      group.CreatedBy,
		"members":        group.Members,
		"memberCount":    group.MemberCount,
		"balance":        group.Balance,
		"investedAmount": group.InvestedAmount,
		"totalAssets":    group.TotalAssets(),
		"status":         group.Status,
		"createdAt":      group.CreatedAt,
		"memberDetails":  details,
	}})
}

// Members returns the group roster with user details. Members only.
func (h *GroupHandler) Members(c *gin.Context) {
	ctx := c.Request.Context()
	groupID := c.Param("id")

	group, err := h.groups.GetGroup(ctx, groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !group.HasMember(userID(c)) {
		respondError(c, errs.New(errs.Forbidden, "you are not a member of this group"))
		return
	}

	details, err := h.memberDetails(c, group)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"members":   details,
		"count":     len(details),
		"groupId":   group.ID,
		"groupName": group.Name,
	})
}

type addMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// AddMember adds an existing user to the group. Any current member may
// add; adding an existing member is a conflict at this surface.
func (h *GroupHandler) AddMember(c *gin.Context) {
	ctx := c.Request.Context()
	groupID := c.Param("id")

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.GetGroup(ctx, groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !group.HasMember(userID(c)) {
		respondError(c, errs.New(errs.Forbidden, "you are not a member of this group"))
		return
	}
	if group.HasMember(req.UserID) {
		respondError(c, errs.New(errs.Conflict, "user is already a member"))
		return
	}

	if err := h.groups.AddMember(ctx, groupID, req.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member added successfully"})
}

// RemoveMember removes a member. The owner can remove anyone; members can
// remove only themselves; the owner can never be removed.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	ctx := c.Request.Context()
	groupID := c.Param("id")
	target := c.Param("userId")
	caller := userID(c)

	group, err := h.groups.GetGroup(ctx, groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !group.IsOwner(caller) && caller != target {
		respondError(c, errs.New(errs.Forbidden, "only the owner can remove other members"))
		return
	}

	if err := h.groups.RemoveMember(ctx, groupID, target); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member removed successfully"})
}

// Delete deletes the group. Owner only; cascades into every member's
// membership view.
func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.groups.DeleteGroup(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Group deleted successfully"})
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// Deposit moves money from the caller's personal balance into the group.
func (h *GroupHandler) Deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.money.Deposit(c.Request.Context(), c.Param("id"), userID(c), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Deposit successful",
		"amount":         receipt.Amount,
		"newBalance":     receipt.GroupBalance,
		"investedAmount": receipt.InvestedAmount,
		"totalAssets":    receipt.TotalAssets,
		"userBalance":    receipt.UserBalance,
	})
}

// Holdings returns the group's open positions valued at current prices.
func (h *GroupHandler) Holdings(c *gin.Context) {
	holdings, err := h.money.Holdings(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"holdings": holdings})
}

// Forecast projects when the group reaches a savings goal, fitted over
// its approved transactions.
func (h *GroupHandler) Forecast(c *gin.Context) {
	ctx := c.Request.Context()
	groupID := c.Param("id")

	group, err := h.groups.GetGroup(ctx, groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !group.HasMember(userID(c)) {
		respondError(c, errs.New(errs.Forbidden, "you are not a member of this group"))
		return
	}

	goal, err := decimal.NewFromString(c.Query("goal"))
	if err != nil || !goal.IsPositive() {
		respondError(c, errs.New(errs.InvalidArgument, "goal must be a positive amount"))
		return
	}

	txns, err := storage.TransactionsByGroup(ctx, h.store, groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	points := make([]forecast.Point, 0, len(txns))
	for _, t := range txns {
		points = append(points, forecast.Point{Amount: t.Amount, CreatedAt: t.CreatedAt, Status: t.Status})
	}

	c.JSON(http.StatusOK, forecast.CompletionDate(points, goal))
}

func (h *GroupHandler) memberDetails(c *gin.Context, group *models.Group) ([]memberDetail, error) {
	details := make([]memberDetail, 0, len(group.Members))
	for _, memberID := range group.Members {
		user, _, err := storage.GetUser(c.Request.Context(), h.store, memberID)
		if errs.Is(err, errs.NotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		details = append(details, memberDetail{
			UserID:    user.ID,
			Username:  user.Username,
			Email:     user.Email,
			Role:      user.Role,
			Status:    user.Status,
			CreatedAt: user.CreatedAt.Format(time.RFC3339),
			IsOwner:   group.IsOwner(user.ID),
		})
	}
	return details, nil
}

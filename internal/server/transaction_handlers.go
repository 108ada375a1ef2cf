package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/trustvault/backend/internal/engine"
	"github.com/trustvault/backend/internal/errs"
	"github.com/trustvault/backend/internal/models"
)

// TransactionHandler serves the proposal and voting workflow.
type TransactionHandler struct {
	engine *engine.Engine
}

// NewTransactionHandler creates a TransactionHandler.
func NewTransactionHandler(eng *engine.Engine) *TransactionHandler {
	return &TransactionHandler{engine: eng}
}

type proposeRequest struct {
	GroupID     string          `json:"groupId" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description" binding:"required"`
}

// Propose creates a pending transaction for the caller's group.
func (h *TransactionHandler) Propose(c *gin.Context) {
	var req proposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txn, err := h.engine.Propose(c.Request.Context(), req.GroupID, userID(c), req.Amount, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"transactionId": txn.ID,
		"groupId":       txn.GroupID,
		"amount":        txn.Amount,
		"description":   txn.Description,
		"status":        txn.Status,
		"message":       "Transaction proposed, awaiting votes",
	})
}

// List returns a group's transactions, newest first. The group is named
// with the groupId query parameter.
func (h *TransactionHandler) List(c *gin.Context) {
	groupID := c.Query("groupId")
	if groupID == "" {
		respondError(c, errs.New(errs.InvalidArgument, "groupId query parameter required"))
		return
	}

	txns, err := h.engine.ListByGroup(c.Request.Context(), groupID, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns, "count": len(txns)})
}

// Get returns one transaction.
func (h *TransactionHandler) Get(c *gin.Context) {
	txn, err := h.engine.Get(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

type voteRequest struct {
	Vote models.Vote `json:"vote" binding:"required"`
}

// Vote records the caller's vote and returns the resulting tally.
func (h *TransactionHandler) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.Vote(c.Request.Context(), c.Param("id"), userID(c), req.Vote)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Vote recorded",
		"status":       result.Status,
		"votes":        result.Votes,
		"approveCount": result.ApproveCount,
		"rejectCount":  result.RejectCount,
		"totalMembers": result.TotalMembers,
	})
}

// Execute applies an approved transaction to the group balance.
func (h *TransactionHandler) Execute(c *gin.Context) {
	receipt, err := h.engine.Execute(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":         "Transaction executed",
		"transactionId":   receipt.TransactionID,
		"amount":          receipt.Amount,
		"previousBalance": receipt.PreviousBalance,
		"newBalance":      receipt.NewBalance,
		"status":          receipt.Status,
	})
}

// History returns every transaction across all the caller's groups.
func (h *TransactionHandler) History(c *gin.Context) {
	txns, err := h.engine.History(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns, "count": len(txns)})
}

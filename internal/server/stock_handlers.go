package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/trustvault/backend/internal/engine"
	"github.com/trustvault/backend/internal/errs"
	"github.com/trustvault/backend/internal/oracle"
)

// StockHandler serves the instrument catalog, quotes, and trade proposals.
type StockHandler struct {
	quotes oracle.PriceOracle
	engine *engine.Engine
}

// NewStockHandler creates a StockHandler.
func NewStockHandler(quotes oracle.PriceOracle, eng *engine.Engine) *StockHandler {
	return &StockHandler{quotes: quotes, engine: eng}
}

// Lists returns the curated instrument catalog by category.
func (h *StockHandler) Lists(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"lists": oracle.Lists()})
}

// Quote returns the current quote for one symbol.
func (h *StockHandler) Quote(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	quote, err := h.quotes.Quote(c.Request.Context(), symbol)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

type quotesRequest struct {
	Symbols []string `json:"symbols" binding:"required"`
}

// Quotes returns quotes for a batch of symbols. Unknown symbols are
// omitted from the response rather than failing the batch.
func (h *StockHandler) Quotes(c *gin.Context) {
	var req quotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for i, s := range req.Symbols {
		req.Symbols[i] = strings.ToUpper(s)
	}
	quotes, err := h.quotes.Quotes(c.Request.Context(), req.Symbols)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

type tradeRequest struct {
	GroupID     string          `json:"groupId" binding:"required"`
	Symbol      string          `json:"symbol" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	Description string          `json:"description"`
}

// Trade prices a buy order and proposes it as an investment transaction;
// it still needs group approval and execution like any other proposal.
func (h *StockHandler) Trade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Quantity.IsPositive() {
		respondError(c, errs.New(errs.InvalidArgument, "quantity must be positive"))
		return
	}

	txn, err := h.engine.ProposeTrade(c.Request.Context(), req.GroupID, userID(c), engine.TradeRequest{
		Symbol:      strings.ToUpper(req.Symbol),
		Quantity:    req.Quantity,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"transactionId": txn.ID,
		"groupId":       txn.GroupID,
		"amount":        txn.Amount,
		"trade":         txn.Trade,
		"status":        txn.Status,
		"message":       "Trade proposed, awaiting votes",
	})
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a proposal.
//
// Transitions are one-directional:
//
//	pending -> approved -> executed
//	pending -> rejected
//
// rejected and executed are terminal. A proposal with no reachable
// majority stays pending forever; there is no expiry.
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionApproved TransactionStatus = "approved"
	TransactionRejected TransactionStatus = "rejected"
	TransactionExecuted TransactionStatus = "executed"
)

// Transaction types.
const (
	// TypeGeneral covers plain spend/withdrawal proposals.
	TypeGeneral = "general"
	// TypeInvestment marks a stock-buy proposal carrying Trade details.
	TypeInvestment = "investment"
)

// Vote is a single member's choice on a proposal. Votes are immutable
// once recorded; a member cannot change or retract one.
type Vote string

const (
	VoteApprove Vote = "approve"
	VoteReject  Vote = "reject"
)

// ValidVote reports whether s is a recognized vote choice.
func ValidVote(s string) bool {
	return Vote(s) == VoteApprove || Vote(s) == VoteReject
}

// TradeDetails is the execution metadata attached to investment proposals
// at proposal time, priced by the quote oracle.
type TradeDetails struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Quantity      decimal.Decimal `json:"quantity"`
	PricePerShare decimal.Decimal `json:"pricePerShare"`
	TotalCost     decimal.Decimal `json:"totalCost"`
	OrderType     string          `json:"orderType"`
	Side          string          `json:"side"`
}

// Transaction represents a proposed movement of value requiring group
// approval before execution.
type Transaction struct {
	// ID is the unique identifier for the transaction (UUID format).
	ID string `json:"transactionId"`

	// GroupID is the owning group.
	GroupID string `json:"groupId"`

	// ProposedBy is the proposer's user ID.
	ProposedBy string `json:"proposedBy"`

	// Amount is the positive value of the proposal. The sign convention
	// is fixed at creation: execution debits the group's liquid balance
	// by this amount.
	Amount decimal.Decimal `json:"amount"`

	// Description is the human-readable reason for the proposal.
	Description string `json:"description"`

	// Type is TypeGeneral or TypeInvestment.
	Type string `json:"type"`

	// Status is the current lifecycle state.
	Status TransactionStatus `json:"status"`

	// Votes maps voter user ID to choice. At most one entry per user;
	// entries are never overwritten or deleted.
	Votes map[string]Vote `json:"votes"`

	// Trade holds instrument metadata for investment proposals.
	Trade *TradeDetails `json:"trade,omitempty"`

	// CreatedAt is when the proposal was made (UTC).
	CreatedAt time.Time `json:"createdAt"`

	// ExecutedAt is set exactly once, when the transaction executes.
	ExecutedAt *time.Time `json:"executedAt,omitempty"`
}

// NewTransaction returns a pending proposal with an empty vote map.
func NewTransaction(groupID, proposerID string, amount decimal.Decimal, description string) *Transaction {
	return &Transaction{
		GroupID:     groupID,
		ProposedBy:  proposerID,
		Amount:      amount,
		Description: description,
		Type:        TypeGeneral,
		Status:      TransactionPending,
		Votes:       map[string]Vote{},
		CreatedAt:   time.Now().UTC(),
	}
}

// Tally counts the recorded votes.
func (t *Transaction) Tally() (approve, reject int) {
	for _, v := range t.Votes {
		switch v {
		case VoteApprove:
			approve++
		case VoteReject:
			reject++
		}
	}
	return approve, reject
}

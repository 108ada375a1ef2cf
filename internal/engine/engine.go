// Package engine implements the transaction lifecycle: proposal, vote
// tallying, threshold-based status transitions, and execution.
//
// The state machine is strict:
//
//	pending -> approved -> executed
//	pending -> rejected
//
// Votes are immutable once recorded. Thresholds compare against the live
// member count of the owning group at tally time, so membership changes
// between proposal and vote are honored. An even split with no remaining
// voters leaves a proposal pending forever; the engine performs no
// reconciliation or expiry.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trustvault/backend/internal/errs"
	"github.com/trustvault/backend/internal/ledger"
	"github.com/trustvault/backend/internal/models"
	"github.com/trustvault/backend/internal/oracle"
	"github.com/trustvault/backend/internal/storage"
)

const casAttempts = 3

const retryDelay = 10 * time.Millisecond

// Engine drives the consensus workflow over the store, consulting the
// membership ledger for eligibility and the oracle for trade pricing.
type Engine struct {
	store  storage.Store
	groups *ledger.Ledger
	quotes oracle.PriceOracle
}

// New creates an Engine.
func New(store storage.Store, groups *ledger.Ledger, quotes oracle.PriceOracle) *Engine {
	return &Engine{store: store, groups: groups, quotes: quotes}
}

// VoteResult is returned to the voter for display: the status after this
// vote plus the full tally.
type VoteResult struct {
	Status       models.TransactionStatus `json:"status"`
	Votes        map[string]models.Vote   `json:"votes"`
	ApproveCount int                      `json:"approveCount"`
	RejectCount  int                      `json:"rejectCount"`
	TotalMembers int                      `json:"totalMembers"`
}

// Receipt describes a completed execution.
type Receipt struct {
	TransactionID   string                   `json:"transactionId"`
	Amount          decimal.Decimal          `json:"amount"`
	PreviousBalance decimal.Decimal          `json:"previousBalance"`
	NewBalance      decimal.Decimal          `json:"newBalance"`
	Status          models.TransactionStatus `json:"status"`
}

// Propose creates a pending transaction. The proposer must be a current
// member of the group and the amount must be positive.
func (e *Engine) Propose(ctx context.Context, groupID, proposerID string, amount decimal.Decimal, description string) (*models.Transaction, error) {
	group, _, err := storage.GetGroup(ctx, e.store, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(proposerID) {
		return nil, errs.New(errs.Forbidden, "you are not a member of this group")
	}
	if !amount.IsPositive() {
		return nil, errs.New(errs.InvalidArgument, "amount must be positive")
	}
	if description == "" || len(description) > 500 {
		return nil, errs.New(errs.InvalidArgument, "description must be 1-500 characters")
	}

	txn := models.NewTransaction(groupID, proposerID, amount, description)
	txn.ID = uuid.New().String()
	if err := storage.PutTransaction(ctx, e.store, txn); err != nil {
		return nil, err
	}

	slog.Info("Transaction proposed",
		"transaction_id", txn.ID, "group_id", groupID,
		"proposer_id", proposerID, "amount", amount)
	return txn, nil
}

// TradeRequest describes an investment proposal before pricing.
type TradeRequest struct {
	Symbol      string
	Quantity    decimal.Decimal
	Description string
}

// ProposeTrade prices an instrument through the oracle and creates a
// pending investment transaction whose amount is quantity times the quoted
// price, carrying the trade details for execution-time bookkeeping.
func (e *Engine) ProposeTrade(ctx context.Context, groupID, proposerID string, req TradeRequest) (*models.Transaction, error) {
	if !req.Quantity.IsPositive() {
		return nil, errs.New(errs.InvalidArgument, "quantity must be positive")
	}

	quote, err := e.quotes.Quote(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	name := oracle.LookupName(req.Symbol)
	totalCost := quote.Price.Mul(req.Quantity).Round(2)

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Buy %s shares of %s (%s) @ $%s",
			req.Quantity, name, req.Symbol, quote.Price.StringFixed(2))
	}

	txn, err := e.Propose(ctx, groupID, proposerID, totalCost, description)
	if err != nil {
		return nil, err
	}

	txn.Type = models.TypeInvestment
	txn.Trade = &models.TradeDetails{
		Symbol:        req.Symbol,
		Name:          name,
		Quantity:      req.Quantity,
		PricePerShare: quote.Price,
		TotalCost:     totalCost,
		OrderType:     "market",
		Side:          "buy",
	}
	if err := e.casTransaction(ctx, txn.ID, func(t *models.Transaction) error {
		t.Type = txn.Type
		t.Trade = txn.Trade
		return nil
	}); err != nil {
		return nil, err
	}

	slog.Info("Trade proposed",
		"transaction_id", txn.ID, "group_id", groupID,
		"symbol", req.Symbol, "quantity", req.Quantity, "total_cost", totalCost)
	return txn, nil
}

// Get returns a transaction. The requester must be a member of the owning
// group.
func (e *Engine) Get(ctx context.Context, transactionID, requesterID string) (*models.Transaction, error) {
	txn, _, err := storage.GetTransaction(ctx, e.store, transactionID)
	if err != nil {
		return nil, err
	}
	if err := e.requireMember(ctx, txn.GroupID, requesterID); err != nil {
		return nil, err
	}
	return txn, nil
}

// ListByGroup returns a group's transactions, newest first. The requester
// must be a member.
func (e *Engine) ListByGroup(ctx context.Context, groupID, requesterID string) ([]*models.Transaction, error) {
	if err := e.requireMember(ctx, groupID, requesterID); err != nil {
		return nil, err
	}
	txns, err := storage.TransactionsByGroup(ctx, e.store, groupID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(txns)
	return txns, nil
}

// History returns every transaction across all the user's groups, newest
// first.
func (e *Engine) History(ctx context.Context, userID string) ([]*models.Transaction, error) {
	groups, err := e.groups.UserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	var all []*models.Transaction
	for _, g := range groups {
		txns, err := storage.TransactionsByGroup(ctx, e.store, g.ID)
		if err != nil {
			return nil, err
		}
		all = append(all, txns...)
	}
	sortNewestFirst(all)
	return all, nil
}

// Vote records an immutable vote and applies the strict-majority rule
// against the group's current member count. Returns the resulting status
// and tally.
func (e *Engine) Vote(ctx context.Context, transactionID, voterID string, choice models.Vote) (*VoteResult, error) {
	if !models.ValidVote(string(choice)) {
		return nil, errs.Newf(errs.InvalidArgument, "vote must be %q or %q", models.VoteApprove, models.VoteReject)
	}

	var result *VoteResult
	err := e.withRetry(func() error {
		txn, version, err := storage.GetTransaction(ctx, e.store, transactionID)
		if err != nil {
			return err
		}
		group, _, err := storage.GetGroup(ctx, e.store, txn.GroupID)
		if err != nil {
			return err
		}
		if !group.HasMember(voterID) {
			return errs.New(errs.Forbidden, "you are not a member of this group")
		}
		if _, voted := txn.Votes[voterID]; voted {
			return errs.New(errs.AlreadyVoted, "you have already voted on this transaction")
		}
		if txn.Status != models.TransactionPending {
			return errs.Newf(errs.InvalidState, "voting is closed (status: %s)", txn.Status)
		}

		if txn.Votes == nil {
			txn.Votes = map[string]models.Vote{}
		}
		txn.Votes[voterID] = choice

		approve, reject := txn.Tally()
		total := group.MemberCount
		// Strict majority: count must exceed half the live membership.
		// 2*count > total avoids fractional comparison.
		switch {
		case 2*approve > total:
			txn.Status = models.TransactionApproved
		case 2*reject > total:
			txn.Status = models.TransactionRejected
		}

		if err := storage.UpdateTransaction(ctx, e.store, txn, version); err != nil {
			return err
		}
		result = &VoteResult{
			Status:       txn.Status,
			Votes:        txn.Votes,
			ApproveCount: approve,
			RejectCount:  reject,
			TotalMembers: total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Vote recorded",
		"transaction_id", transactionID, "voter_id", voterID,
		"choice", choice, "status", result.Status,
		"approve", result.ApproveCount, "reject", result.RejectCount,
		"total_members", result.TotalMembers)
	return result, nil
}

// Execute moves an approved transaction's amount out of the group's liquid
// balance and marks it executed. This is the only path that mutates
// balances; voting never does.
//
// The transaction record flips first (conditional on its version, guarding
// against double execution), then the balance moves; a balance-side
// failure reverts the transaction to approved.
func (e *Engine) Execute(ctx context.Context, transactionID, requesterID string) (*Receipt, error) {
	txn, version, err := storage.GetTransaction(ctx, e.store, transactionID)
	if err != nil {
		return nil, err
	}
	group, _, err := storage.GetGroup(ctx, e.store, txn.GroupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(requesterID) {
		return nil, errs.New(errs.Forbidden, "you are not a member of this group")
	}
	if txn.Status != models.TransactionApproved {
		return nil, errs.Newf(errs.InvalidState, "transaction must be approved to execute (current status: %s)", txn.Status)
	}
	if txn.ExecutedAt != nil {
		return nil, errs.New(errs.InvalidState, "transaction has already been executed")
	}
	if group.Balance.LessThan(txn.Amount) {
		return nil, errs.Newf(errs.InsufficientFunds,
			"insufficient funds (balance: $%s, required: $%s)",
			group.Balance.StringFixed(2), txn.Amount.StringFixed(2))
	}

	// Claim the execution on the transaction record first. Losing this
	// CAS means someone else executed concurrently.
	now := time.Now().UTC()
	txn.Status = models.TransactionExecuted
	txn.ExecutedAt = &now
	if err := storage.UpdateTransaction(ctx, e.store, txn, version); err != nil {
		if errs.Is(err, errs.Conflict) {
			return nil, errs.Wrap(errs.InvalidState, "transaction was executed concurrently", err)
		}
		return nil, err
	}

	var previous, updated decimal.Decimal
	balErr := e.withRetry(func() error {
		g, gver, err := storage.GetGroup(ctx, e.store, txn.GroupID)
		if err != nil {
			return err
		}
		if g.Balance.LessThan(txn.Amount) {
			return errs.Newf(errs.InsufficientFunds,
				"insufficient funds (balance: $%s, required: $%s)",
				g.Balance.StringFixed(2), txn.Amount.StringFixed(2))
		}
		previous = g.Balance
		g.Balance = g.Balance.Sub(txn.Amount)
		if txn.Type == models.TypeInvestment {
			// Investment spend stays on the books as committed value.
			g.InvestedAmount = g.InvestedAmount.Add(txn.Amount)
		}
		updated = g.Balance
		return storage.UpdateGroup(ctx, e.store, g, gver)
	})
	if balErr != nil {
		// Compensate: release the execution claim.
		slog.Error("execution saga failed, reverting transaction status",
			"transaction_id", transactionID, "error", balErr)
		compErr := e.casTransaction(ctx, transactionID, func(t *models.Transaction) error {
			t.Status = models.TransactionApproved
			t.ExecutedAt = nil
			return nil
		})
		if compErr != nil {
			slog.Error("execution compensation failed, transaction marked executed without balance movement",
				"transaction_id", transactionID, "error", compErr)
		}
		return nil, balErr
	}

	slog.Info("Transaction executed",
		"transaction_id", transactionID, "group_id", txn.GroupID,
		"amount", txn.Amount, "new_balance", updated)
	return &Receipt{
		TransactionID:   transactionID,
		Amount:          txn.Amount,
		PreviousBalance: previous,
		NewBalance:      updated,
		Status:          models.TransactionExecuted,
	}, nil
}

func (e *Engine) requireMember(ctx context.Context, groupID, userID string) error {
	ok, err := e.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.Forbidden, "you are not a member of this group")
	}
	return nil
}

// withRetry re-runs fn on version conflicts, up to casAttempts times. fn
// must re-read fresh state each attempt.
func (e *Engine) withRetry(fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}
		err := fn()
		if err == nil {
			return nil
		}
		if !errs.Is(err, errs.Conflict) {
			return err
		}
		lastErr = err
	}
	return errs.Wrap(errs.Conflict, "update lost the race after retries", lastErr)
}

func (e *Engine) casTransaction(ctx context.Context, id string, mutate func(*models.Transaction) error) error {
	return e.withRetry(func() error {
		t, version, err := storage.GetTransaction(ctx, e.store, id)
		if err != nil {
			return err
		}
		if err := mutate(t); err != nil {
			return err
		}
		return storage.UpdateTransaction(ctx, e.store, t, version)
	})
}

func sortNewestFirst(txns []*models.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
}

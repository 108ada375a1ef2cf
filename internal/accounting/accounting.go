// Package accounting keeps the money bookkeeping: personal balances,
// group liquid/invested balances, and the derived views built on them.
//
// A deposit touches two records (debit the user, credit the group) with no
// multi-item transaction underneath, so it follows the same
// compensating-action discipline as the membership saga: the user debit is
// reversed if the group credit fails.
package accounting

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trustvault/backend/internal/errs"
	"github.com/trustvault/backend/internal/ledger"
	"github.com/trustvault/backend/internal/models"
	"github.com/trustvault/backend/internal/oracle"
	"github.com/trustvault/backend/internal/storage"
)

const casAttempts = 3

const retryDelay = 10 * time.Millisecond

// Accounting provides balance operations and derived asset views.
type Accounting struct {
	store  storage.Store
	groups *ledger.Ledger
	quotes oracle.PriceOracle
}

// New creates an Accounting service.
func New(store storage.Store, groups *ledger.Ledger, quotes oracle.PriceOracle) *Accounting {
	return &Accounting{store: store, groups: groups, quotes: quotes}
}

// DepositReceipt reports the balances after a successful deposit.
type DepositReceipt struct {
	Amount         decimal.Decimal `json:"amount"`
	GroupBalance   decimal.Decimal `json:"newBalance"`
	InvestedAmount decimal.Decimal `json:"investedAmount"`
	TotalAssets    decimal.Decimal `json:"totalAssets"`
	UserBalance    decimal.Decimal `json:"userBalance"`
}

// Deposit moves amount from the user's personal balance into the group's
// liquid balance. The caller must be a member and hold at least amount.
func (a *Accounting) Deposit(ctx context.Context, groupID, userID string, amount decimal.Decimal) (*DepositReceipt, error) {
	if !amount.IsPositive() {
		return nil, errs.New(errs.InvalidArgument, "amount must be positive")
	}
	group, _, err := storage.GetGroup(ctx, a.store, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(userID) {
		return nil, errs.New(errs.Forbidden, "you are not a member of this group")
	}

	// Debit the user first.
	var userBalance decimal.Decimal
	err = a.withRetry(func() error {
		u, version, err := storage.GetUser(ctx, a.store, userID)
		if err != nil {
			return err
		}
		if u.Balance.LessThan(amount) {
			return errs.Newf(errs.InsufficientFunds,
				"insufficient funds, your balance is $%s", u.Balance.StringFixed(2))
		}
		u.Balance = u.Balance.Sub(amount)
		userBalance = u.Balance
		return storage.UpdateUser(ctx, a.store, u, version)
	})
	if err != nil {
		return nil, err
	}

	// Credit the group; on failure re-credit the user.
	var groupBalance, invested decimal.Decimal
	err = a.withRetry(func() error {
		g, version, err := storage.GetGroup(ctx, a.store, groupID)
		if err != nil {
			return err
		}
		g.Balance = g.Balance.Add(amount)
		groupBalance = g.Balance
		invested = g.InvestedAmount
		return storage.UpdateGroup(ctx, a.store, g, version)
	})
	if err != nil {
		slog.Error("deposit saga failed, re-crediting user",
			"group_id", groupID, "user_id", userID, "amount", amount, "error", err)
		compErr := a.withRetry(func() error {
			u, version, err := storage.GetUser(ctx, a.store, userID)
			if err != nil {
				return err
			}
			u.Balance = u.Balance.Add(amount)
			return storage.UpdateUser(ctx, a.store, u, version)
		})
		if compErr != nil {
			slog.Error("deposit compensation failed, user debited without group credit",
				"group_id", groupID, "user_id", userID, "amount", amount, "error", compErr)
		}
		return nil, errs.Wrap(errs.Conflict, "failed to credit group balance", err)
	}

	slog.Info("Deposit recorded",
		"group_id", groupID, "user_id", userID, "amount", amount,
		"group_balance", groupBalance, "user_balance", userBalance)
	return &DepositReceipt{
		Amount:         amount,
		GroupBalance:   groupBalance,
		InvestedAmount: invested,
		TotalAssets:    groupBalance.Add(invested),
		UserBalance:    userBalance,
	}, nil
}

// CreditUser adds amount to a user's personal balance (top-up path).
func (a *Accounting) CreditUser(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, errs.New(errs.InvalidArgument, "amount must be positive")
	}
	var balance decimal.Decimal
	err := a.withRetry(func() error {
		u, version, err := storage.GetUser(ctx, a.store, userID)
		if err != nil {
			return err
		}
		u.Balance = u.Balance.Add(amount)
		balance = u.Balance
		return storage.UpdateUser(ctx, a.store, u, version)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Holding is one instrument position aggregated across a group's executed
// investment transactions, valued at the current oracle price.
type Holding struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	CostBasis   decimal.Decimal `json:"costBasis"`
	Price       decimal.Decimal `json:"price"`
	MarketValue decimal.Decimal `json:"marketValue"`
}

// Holdings aggregates the group's open positions by symbol. Derived on
// every read, never stored. The requester must be a member.
func (a *Accounting) Holdings(ctx context.Context, groupID, requesterID string) ([]Holding, error) {
	group, _, err := storage.GetGroup(ctx, a.store, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(requesterID) {
		return nil, errs.New(errs.Forbidden, "you are not a member of this group")
	}

	txns, err := storage.TransactionsByGroup(ctx, a.store, groupID)
	if err != nil {
		return nil, err
	}

	bySymbol := map[string]*Holding{}
	var order []string
	for _, t := range txns {
		if t.Status != models.TransactionExecuted || t.Type != models.TypeInvestment || t.Trade == nil {
			continue
		}
		h, ok := bySymbol[t.Trade.Symbol]
		if !ok {
			h = &Holding{Symbol: t.Trade.Symbol, Name: t.Trade.Name}
			bySymbol[t.Trade.Symbol] = h
			order = append(order, t.Trade.Symbol)
		}
		h.Quantity = h.Quantity.Add(t.Trade.Quantity)
		h.CostBasis = h.CostBasis.Add(t.Trade.TotalCost)
	}

	holdings := make([]Holding, 0, len(order))
	for _, symbol := range order {
		h := bySymbol[symbol]
		quote, err := a.quotes.Quote(ctx, symbol)
		if err == nil {
			h.Price = quote.Price
			h.MarketValue = quote.Price.Mul(h.Quantity).Round(2)
		}
		holdings = append(holdings, *h)
	}
	return holdings, nil
}

func (a *Accounting) withRetry(fn func() error) error {
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

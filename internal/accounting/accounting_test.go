package accounting

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trustvault/backend/internal/errs"
	"github.com/trustvault/backend/internal/ledger"
	"github.com/trustvault/backend/internal/models"
	"github.com/trustvault/backend/internal/oracle"
	"github.com/trustvault/backend/internal/storage"
	"github.com/trustvault/backend/internal/storage/sqlite"
)

func newTestAccounting(t *testing.T) (*Accounting, *ledger.Ledger, storage.Store) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "trustvault-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	groups := ledger.New(store)
	return New(store, groups, oracle.NewOffline()), groups, store
}

func seedUser(t *testing.T, store storage.Store, id string) {
	t.Helper()
	u := models.NewUser("user-"+id, id+"@example.com", "hash")
	u.ID = id
	if err := storage.PutUser(context.Background(), store, u); err != nil {
		t.Fatalf("Failed to seed user %s: %v", id, err)
	}
}

func TestDeposit(t *testing.T) {
	a, groups, store := newTestAccounting(t)
	ctx := context.Background()
	seedUser(t, store, "owner")
	seedUser(t, store, "outsider")

	g, err := groups.CreateGroup(ctx, "owner", "Savings Pool")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if _, err := a.CreditUser(ctx, "owner", decimal.NewFromInt(500)); err != nil {
		t.Fatalf("CreditUser failed: %v", err)
	}

	t.Run("moves money from user to group", func(t *testing.T) {
		receipt, err := a.Deposit(ctx, g.ID, "owner", decimal.NewFromInt(200))
		if err != nil {
			t.Fatalf("Deposit failed: %v", err)
		}
		if !receipt.GroupBalance.Equal(decimal.NewFromInt(200)) {
			t.Errorf("GroupBalance = %s, want 200", receipt.GroupBalance)
		}
		if !receipt.UserBalance.Equal(decimal.NewFromInt(300)) {
			t.Errorf("UserBalance = %s, want 300", receipt.UserBalance)
		}
		if !receipt.TotalAssets.Equal(decimal.NewFromInt(200)) {
			t.Errorf("TotalAssets = %s, want 200", receipt.TotalAssets)
		}

		u, _, err := storage.GetUser(ctx, store, "owner")
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if !u.Balance.Equal(decimal.NewFromInt(300)) {
			t.Errorf("stored user balance = %s, want 300", u.Balance)
		}
		group, _, err := storage.GetGroup(ctx, store, g.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if !group.Balance.Equal(decimal.NewFromInt(200)) {
			t.Errorf("stored group balance = %s, want 200", group.Balance)
		}
	})

	t.Run("insufficient personal funds", func(t *testing.T) {
		_, err := a.Deposit(ctx, g.ID, "owner", decimal.NewFromInt(10000))
		if !errs.Is(err, errs.InsufficientFunds) {
			t.Errorf("expected InsufficientFunds, got %v", err)
		}

		// Nothing moved.
		u, _, err := storage.GetUser(ctx, store, "owner")
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if !u.Balance.Equal(decimal.NewFromInt(300)) {
			t.Errorf("user balance = %s, want 300", u.Balance)
		}
	})

	t.Run("amount must be positive", func(t *testing.T) {
		_, err := a.Deposit(ctx, g.ID, "owner", decimal.NewFromInt(-5))
		if !errs.Is(err, errs.InvalidArgument) {
			t.Errorf("expected InvalidArgument, got %v", err)
		}
	})

	t.Run("non-member cannot deposit", func(t *testing.T) {
		if _, err := a.CreditUser(ctx, "outsider", decimal.NewFromInt(100)); err != nil {
			t.Fatalf("CreditUser failed: %v", err)
		}
		_, err := a.Deposit(ctx, g.ID, "outsider", decimal.NewFromInt(50))
		if !errs.Is(err, errs.Forbidden) {
			t.Errorf("expected Forbidden, got %v", err)
		}
	})
}

func TestDepositCompensation(t *testing.T) {
	_, groups, store := newTestAccounting(t)
	ctx := context.Background()
	seedUser(t, store, "owner")

	g, err := groups.CreateGroup(ctx, "owner", "Fragile Pool")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	flaky := &failingStore{Store: store}
	a := New(flaky, ledger.New(flaky), oracle.NewOffline())
	if _, err := a.CreditUser(ctx, "owner", decimal.NewFromInt(500)); err != nil {
		t.Fatalf("CreditUser failed: %v", err)
	}

	flaky.failGroupUpdates = true
	if _, err := a.Deposit(ctx, g.ID, "owner", decimal.NewFromInt(200)); err == nil {
		t.Fatal("expected Deposit to fail when the group write fails")
	}
	flaky.failGroupUpdates = false

	// The user debit must have been re-credited.
	u, _, err := storage.GetUser(ctx, store, "owner")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if !u.Balance.Equal(decimal.NewFromInt(500)) {
		t.Errorf("user balance = %s, want 500 after compensation", u.Balance)
	}
}

type failingStore struct {
	storage.Store
	failGroupUpdates bool
}

func (f *failingStore) Update(ctx context.Context, kind storage.Kind, key string, expect int64, data []byte, index map[string]string) error {
	if f.failGroupUpdates && kind == storage.KindGroups {
		return errs.New(errs.Unavailable, "injected group update failure")
	}
	return f.Store.Update(ctx, kind, key, expect, data, index)
}

func TestHoldings(t *testing.T) {
	a, groups, store := newTestAccounting(t)
	ctx := context.Background()
	seedUser(t, store, "owner")
	seedUser(t, store, "outsider")

	g, err := groups.CreateGroup(ctx, "owner", "Investment Club")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	putExecutedTrade := func(id, symbol string, qty, cost int64) {
		t.Helper()
		now := time.Now().UTC()
		txn := models.NewTransaction(g.ID, "owner", decimal.NewFromInt(cost), "Buy "+symbol)
		txn.ID = id
		txn.Type = models.TypeInvestment
		txn.Status = models.TransactionExecuted
		txn.ExecutedAt = &now
		txn.Trade = &models.TradeDetails{
			Symbol:    symbol,
			Name:      oracle.LookupName(symbol),
			Quantity:  decimal.NewFromInt(qty),
			TotalCost: decimal.NewFromInt(cost),
			OrderType: "market",
			Side:      "buy",
		}
		if err := storage.PutTransaction(ctx, store, txn); err != nil {
			t.Fatalf("PutTransaction failed: %v", err)
		}
	}

	putExecutedTrade("t1", "AAPL", 2, 300)
	putExecutedTrade("t2", "AAPL", 3, 450)
	putExecutedTrade("t3", "SPY", 1, 400)

	// Pending and general transactions never show up as positions.
	pending := models.NewTransaction(g.ID, "owner", decimal.NewFromInt(100), "Pending buy")
	pending.ID = "t4"
	pending.Type = models.TypeInvestment
	pending.Trade = &models.TradeDetails{Symbol: "MSFT", Quantity: decimal.NewFromInt(1)}
	if err := storage.PutTransaction(ctx, store, pending); err != nil {
		t.Fatalf("PutTransaction failed: %v", err)
	}

	t.Run("aggregates executed positions by symbol", func(t *testing.T) {
		holdings, err := a.Holdings(ctx, g.ID, "owner")
		if err != nil {
			t.Fatalf("Holdings failed: %v", err)
		}
		if len(holdings) != 2 {
			t.Fatalf("got %d holdings, want 2", len(holdings))
		}

		bySymbol := map[string]Holding{}
		for _, h := range holdings {
			bySymbol[h.Symbol] = h
		}

		aapl := bySymbol["AAPL"]
		if !aapl.Quantity.Equal(decimal.NewFromInt(5)) {
			t.Errorf("AAPL quantity = %s, want 5", aapl.Quantity)
		}
		if !aapl.CostBasis.Equal(decimal.NewFromInt(750)) {
			t.Errorf("AAPL cost basis = %s, want 750", aapl.CostBasis)
		}

		quote, err := oracle.NewOffline().Quote(ctx, "AAPL")
		if err != nil {
			t.Fatalf("Quote failed: %v", err)
		}
		wantValue := quote.Price.Mul(decimal.NewFromInt(5)).Round(2)
		if !aapl.MarketValue.Equal(wantValue) {
			t.Errorf("AAPL market value = %s, want %s", aapl.MarketValue, wantValue)
		}

		if _, ok := bySymbol["MSFT"]; ok {
			t.Error("pending trade appeared as a holding")
		}
	})

	t.Run("non-member denied", func(t *testing.T) {
		if _, err := a.Holdings(ctx, g.ID, "outsider"); !errs.Is(err, errs.Forbidden) {
			t.Errorf("expected Forbidden, got %v", err)
		}
	})
}

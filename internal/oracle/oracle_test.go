package oracle

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/trustvault/backend/internal/errs"
)

func TestOfflineQuote(t *testing.T) {
	o := NewOffline()
	ctx := context.Background()

	t.Run("same symbol always quotes the same price", func(t *testing.T) {
		a, err := o.Quote(ctx, "AAPL")
		if err != nil {
			t.Fatalf("Quote failed: %v", err)
		}
		b, err := o.Quote(ctx, "AAPL")
		if err != nil {
			t.Fatalf("Quote failed: %v", err)
		}
		if !a.Price.Equal(b.Price) || !a.ChangePercent.Equal(b.ChangePercent) {
			t.Errorf("quotes differ: %+v vs %+v", a, b)
		}
	})

	t.Run("price and change stay in range", func(t *testing.T) {
		for _, symbol := range []string{"AAPL", "MSFT", "SPY", "XOM", "ZZZZ"} {
			q, err := o.Quote(ctx, symbol)
			if err != nil {
				t.Fatalf("Quote %s failed: %v", symbol, err)
			}
			if q.Price.LessThan(decimal.NewFromInt(50)) || q.Price.GreaterThan(decimal.NewFromInt(500)) {
				t.Errorf("%s price %s outside [50, 500]", symbol, q.Price)
			}
			if q.ChangePercent.LessThan(decimal.NewFromInt(-5)) || q.ChangePercent.GreaterThan(decimal.NewFromInt(5)) {
				t.Errorf("%s change percent %s outside [-5, 5]", symbol, q.ChangePercent)
			}
		}
	})

	t.Run("empty symbol is unknown", func(t *testing.T) {
		if _, err := o.Quote(ctx, ""); !errs.Is(err, errs.NotFound) {
			t.Errorf("expected NotFound, got %v", err)
		}
	})

	t.Run("batch omits unresolvable symbols", func(t *testing.T) {
		quotes, err := o.Quotes(ctx, []string{"AAPL", "", "SPY"})
		if err != nil {
			t.Fatalf("Quotes failed: %v", err)
		}
		if len(quotes) != 2 {
			t.Errorf("got %d quotes, want 2", len(quotes))
		}
		if _, ok := quotes["AAPL"]; !ok {
			t.Error("AAPL missing from batch")
		}
	})
}

func TestLists(t *testing.T) {
	lists := Lists()
	for _, category := range []string{"blue_chips", "etfs", "technology"} {
		if len(lists[category]) == 0 {
			t.Errorf("category %s is empty", category)
		}
	}

	if got := LookupName("AAPL"); got != "Apple Inc." {
		t.Errorf("LookupName(AAPL) = %q", got)
	}
	if got := LookupName("UNLISTED"); got != "UNLISTED" {
		t.Errorf("LookupName falls back to the symbol, got %q", got)
	}
}

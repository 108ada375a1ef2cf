// Package oracle provides market quotes for investment proposals and
// holdings valuation. The service consumes the PriceOracle interface only;
// the offline source ships as the default so the platform works without
// brokerage credentials.
package oracle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/trustvault/backend/internal/errs"
)

// Quote is a point-in-time price for one instrument.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
}

// PriceOracle supplies current prices. Implementations are injected where
// needed, never shared as package state.
type PriceOracle interface {
	// Quote returns the current quote for symbol, or errs.NotFound if the
	// instrument is unknown.
	Quote(ctx context.Context, symbol string) (*Quote, error)

	// Quotes returns quotes for each resolvable symbol; unknown symbols
	// are omitted rather than failing the batch.
	Quotes(ctx context.Context, symbols []string) (map[string]*Quote, error)
}

var errUnknownSymbol = errs.New(errs.NotFound, "unknown symbol")

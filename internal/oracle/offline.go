package oracle

import (
	"context"
	"hash/fnv"

	"github.com/shopspring/decimal"
)

// OfflineOracle prices instruments deterministically from a hash of the
// symbol: a base price between $50 and $500 and a daily change within
// ±5%. The same symbol always quotes the same price, which keeps demo
// environments and tests stable.
type OfflineOracle struct{}

var _ PriceOracle = OfflineOracle{}

// NewOffline returns the deterministic quote source.
func NewOffline() OfflineOracle { return OfflineOracle{} }

func (OfflineOracle) Quote(_ context.Context, symbol string) (*Quote, error) {
	if symbol == "" {
		return nil, errUnknownSymbol
	}

	h := fnv.New64a()
	h.Write([]byte(symbol))
	seed := h.Sum64()

	// Base price in [50.00, 500.00], cents resolution.
	cents := int64(seed % 45001)
	price := decimal.NewFromInt(5000 + cents).Div(decimal.NewFromInt(100))

	// Change percent in [-5.000, +5.000].
	milli := int64((seed / 7) % 10001)
	changePercent := decimal.NewFromInt(milli - 5000).Div(decimal.NewFromInt(1000))

	change := price.Mul(changePercent).Div(decimal.NewFromInt(100)).Round(2)

	return &Quote{
		Symbol:        symbol,
		Price:         price.Round(2),
		Change:        change,
		ChangePercent: changePercent.Round(2),
	}, nil
}

func (o OfflineOracle) Quotes(ctx context.Context, symbols []string) (map[string]*Quote, error) {
	out := make(map[string]*Quote, len(symbols))
	for _, s := range symbols {
		q, err := o.Quote(ctx, s)
		if err != nil {
			continue
		}
		out[s] = q
	}
	return out, nil
}

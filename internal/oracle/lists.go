package oracle

// Listing is one tradable instrument in the curated catalog.
type Listing struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Curated instrument lists by category, served to clients as the
// browsable universe. Order within a category is fixed.
var stockLists = map[string][]Listing{
	"blue_chips": {
		{Symbol: "AAPL", Name: "Apple Inc."},
		{Symbol: "MSFT", Name: "Microsoft Corporation"},
		{Symbol: "GOOGL", Name: "Alphabet Inc."},
		{Symbol: "AMZN", Name: "Amazon.com Inc."},
		{Symbol: "JPM", Name: "JPMorgan Chase & Co."},
		{Symbol: "V", Name: "Visa Inc."},
		{Symbol: "JNJ", Name: "Johnson & Johnson"},
		{Symbol: "WMT", Name: "Walmart Inc."},
		{Symbol: "PG", Name: "Procter & Gamble"},
		{Symbol: "MA", Name: "Mastercard Inc."},
	},
	"etfs": {
		{Symbol: "SPY", Name: "SPDR S&P 500 ETF"},
		{Symbol: "QQQ", Name: "Invesco QQQ Trust"},
		{Symbol: "IWM", Name: "iShares Russell 2000 ETF"},
		{Symbol: "VTI", Name: "Vanguard Total Stock Market ETF"},
		{Symbol: "VOO", Name: "Vanguard S&P 500 ETF"},
		{Symbol: "DIA", Name: "SPDR Dow Jones Industrial Average ETF"},
	},
	"technology": {
		{Symbol: "NVDA", Name: "NVIDIA Corporation"},
		{Symbol: "META", Name: "Meta Platforms Inc."},
		{Symbol: "TSLA", Name: "Tesla Inc."},
	},
	"healthcare": {
		{Symbol: "UNH", Name: "UnitedHealth Group Inc."},
		{Symbol: "PFE", Name: "Pfizer Inc."},
		{Symbol: "ABBV", Name: "AbbVie Inc."},
	},
	"finance": {
		{Symbol: "BAC", Name: "Bank of America Corp."},
		{Symbol: "WFC", Name: "Wells Fargo & Company"},
		{Symbol: "GS", Name: "Goldman Sachs Group Inc."},
	},
	"consumer": {
		{Symbol: "COST", Name: "Costco Wholesale Corporation"},
		{Symbol: "HD", Name: "Home Depot Inc."},
		{Symbol: "NKE", Name: "Nike Inc."},
	},
	"energy": {
		{Symbol: "XOM", Name: "Exxon Mobil Corporation"},
		{Symbol: "CVX", Name: "Chevron Corporation"},
		{Symbol: "COP", Name: "ConocoPhillips"},
	},
	"industrial": {
		{Symbol: "BA", Name: "Boeing Company"},
		{Symbol: "CAT", Name: "Caterpillar Inc."},
		{Symbol: "UPS", Name: "United Parcel Service Inc."},
	},
}

// Lists returns the curated instrument catalog by category.
func Lists() map[string][]Listing {
	return stockLists
}

// LookupName resolves a symbol to its catalog name, falling back to the
// symbol itself for instruments outside the catalog.
func LookupName(symbol string) string {
	for _, listings := range stockLists {
		for _, l := range listings {
			if l.Symbol == symbol {
				return l.Name
			}
		}
	}
	return symbol
}

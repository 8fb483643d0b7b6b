package schema

import "github.com/shopspring/decimal"

// Query is a transient instrument reference supplied by a caller or a file
// row. Any combination of keys may be present. Exchange is a preference;
// Enabled, when non-empty, is a hard restriction on candidate exchanges.
type Query struct {
	ISIN     string     `json:"isin,omitempty"`
	Symbol   string     `json:"symbol,omitempty"`
	Name     string     `json:"name,omitempty"`
	Exchange Exchange   `json:"exchange,omitempty"`
	Enabled  []Exchange `json:"enabledExchanges,omitempty"`
}

// Empty reports whether the query carries no usable key.
func (q Query) Empty() bool {
	return q.ISIN == "" && q.Symbol == "" && q.Name == ""
}

// Match is the resolved form of a query, produced per resolve call. Score is
// populated on the fuzzy path only.
type Match struct {
	Exchange      Exchange        `json:"exchange"`
	Segment       Segment         `json:"segment"`
	TradingSymbol string          `json:"tradingSymbol"`
	GrowwSymbol   string          `json:"growwSymbol,omitempty"`
	Name          string          `json:"name,omitempty"`
	ISIN          string          `json:"isin,omitempty"`
	LotSize       int             `json:"lotSize,omitempty"`
	TickSize      decimal.Decimal `json:"tickSize"`
	Score         float64         `json:"searchScore,omitempty"`
}

// MatchOf projects an instrument into a match with the given score.
func MatchOf(inst Instrument, score float64) Match {
	return Match{
		Exchange:      inst.Exchange,
		Segment:       inst.Segment,
		TradingSymbol: inst.TradingSymbol,
		GrowwSymbol:   inst.GrowwSymbol,
		Name:          inst.Name,
		ISIN:          inst.ISIN,
		LotSize:       inst.LotSize,
		TickSize:      inst.TickSize,
		Score:         score,
	}
}

// ExchangeSymbol renders the "EXCHANGE_SYMBOL" form for the matched
// instrument.
func (m Match) ExchangeSymbol() string {
	return string(m.Exchange) + "_" + m.TradingSymbol
}

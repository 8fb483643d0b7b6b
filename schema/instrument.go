// Package schema defines the canonical data model shared across QuoteGate.
package schema

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quantedge/quotegate/errs"
)

// Exchange names a trading venue an instrument lists on.
type Exchange string

const (
	// ExchangeNSE is the National Stock Exchange of India.
	ExchangeNSE Exchange = "NSE"
	// ExchangeBSE is the Bombay Stock Exchange.
	ExchangeBSE Exchange = "BSE"
)

// Valid reports whether the exchange is recognised.
func (e Exchange) Valid() bool {
	switch e {
	case ExchangeNSE, ExchangeBSE:
		return true
	default:
		return false
	}
}

// ParseExchange normalises a raw exchange string.
func ParseExchange(raw string) (Exchange, bool) {
	e := Exchange(strings.ToUpper(strings.TrimSpace(raw)))
	return e, e.Valid()
}

// Segment identifies the market category governing which instruments are
// indexed for resolution.
type Segment string

const (
	// SegmentCash represents the cash equity segment.
	SegmentCash Segment = "CASH"
	// SegmentFNO represents the futures and options segment.
	SegmentFNO Segment = "FNO"
	// SegmentCommodity represents the commodity segment.
	SegmentCommodity Segment = "COMMODITY"
)

// Valid reports whether the segment is recognised.
func (s Segment) Valid() bool {
	switch s {
	case SegmentCash, SegmentFNO, SegmentCommodity:
		return true
	default:
		return false
	}
}

// ParseSegment normalises a raw segment string.
func ParseSegment(raw string) (Segment, bool) {
	s := Segment(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// Instrument is an immutable snapshot of one exchange-listed instrument from
// the upstream catalog. Instruments are replaced wholesale on cache refresh,
// never mutated field-by-field.
type Instrument struct {
	Exchange      Exchange        `json:"exchange"`
	Segment       Segment         `json:"segment"`
	TradingSymbol string          `json:"trading_symbol"`
	GrowwSymbol   string          `json:"groww_symbol,omitempty"`
	Name          string          `json:"name,omitempty"`
	ISIN          string          `json:"isin,omitempty"`
	ExchangeToken string          `json:"exchange_token,omitempty"`
	LotSize       int             `json:"lot_size,omitempty"`
	TickSize      decimal.Decimal `json:"tick_size"`
}

// Normalize validates and canonicalises an instrument at the cache boundary,
// isolating the rest of the system from upstream schema drift. A non-nil
// error means the row should be dropped.
func (i *Instrument) Normalize() error {
	if i == nil {
		return errs.Validation("instrument payload required")
	}

	exchange, ok := ParseExchange(string(i.Exchange))
	if !ok {
		return errs.Validation("instrument.exchange invalid")
	}
	i.Exchange = exchange

	segment, ok := ParseSegment(string(i.Segment))
	if !ok {
		return errs.Validation("instrument.segment invalid")
	}
	i.Segment = segment

	symbol := strings.TrimSpace(i.TradingSymbol)
	if symbol == "" {
		return errs.Validation("instrument.trading_symbol required")
	}
	i.TradingSymbol = symbol

	i.GrowwSymbol = strings.TrimSpace(i.GrowwSymbol)
	i.Name = strings.TrimSpace(i.Name)
	i.ISIN = strings.ToUpper(strings.TrimSpace(i.ISIN))
	i.ExchangeToken = strings.TrimSpace(i.ExchangeToken)
	if i.LotSize < 0 {
		return errs.Validation("instrument.lot_size must be zero or greater")
	}
	if i.TickSize.IsNegative() {
		return errs.Validation("instrument.tick_size must be zero or greater")
	}
	return nil
}

// ExchangeSymbol renders the "EXCHANGE_SYMBOL" form the upstream quote API
// expects.
func (i Instrument) ExchangeSymbol() string {
	return string(i.Exchange) + "_" + i.TradingSymbol
}

// CloneInstruments returns a copy of the provided instruments slice.
func CloneInstruments(list []Instrument) []Instrument {
	if len(list) == 0 {
		return nil
	}
	out := make([]Instrument, len(list))
	copy(out, list)
	return out
}

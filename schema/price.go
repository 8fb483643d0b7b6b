package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is one normalised last-traded-price observation. Price is zero
// when the upstream value was absent or unparseable; AsOf is the capture time
// in UTC, not an exchange timestamp.
type PriceRecord struct {
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	AsOf     time.Time       `json:"asOf"`
	Source   string          `json:"source"`
	Currency string          `json:"curr"`
}

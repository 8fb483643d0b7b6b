// Package resolve maps ambiguous instrument references (names, tickers,
// ISINs) onto canonical exchange-listed instruments.
package resolve

import (
	"strings"

	"github.com/quantedge/quotegate/schema"
)

// companySuffixes are trimmed from the tail of normalised names, in order.
// Each suffix is tried against the current tail, so "X INDIA LIMITED"
// reduces to "X" in one pass.
var companySuffixes = []string{"LIMITED", "LTD", "PVT", "PRIVATE", "INDIA", "IND"}

// NormalizeName canonicalises a company name for index lookup: uppercase,
// alphanumerics only, corporate suffixes trimmed.
func NormalizeName(name string) string {
	upper := strings.ToUpper(name)
	var b strings.Builder
	b.Grow(len(upper))
	lastSpace := true
	for _, r := range upper {
		switch {
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	out := strings.TrimSpace(b.String())

	for _, suffix := range companySuffixes {
		trimmed := strings.TrimSuffix(out, " "+suffix)
		if trimmed != out {
			out = trimmed
		} else if out == suffix {
			out = ""
		}
	}
	return strings.TrimSpace(out)
}

type searchRow struct {
	inst   schema.Instrument
	name   string
	symbol string
}

// index holds the lookup structures for one universe generation. Each key
// maps to per-exchange listings because NSE and BSE list the same company
// under the same ISIN and often the same symbol.
type index struct {
	byISIN   map[string]map[schema.Exchange]schema.Instrument
	bySymbol map[string]map[schema.Exchange]schema.Instrument
	byName   map[string]map[schema.Exchange]schema.Instrument
	rows     []searchRow
}

// buildIndex constructs lookup indices over the cash-segment slice of the
// universe. Duplicate exchange+symbol rows keep the first occurrence.
func buildIndex(instruments []schema.Instrument) *index {
	idx := &index{
		byISIN:   make(map[string]map[schema.Exchange]schema.Instrument),
		bySymbol: make(map[string]map[schema.Exchange]schema.Instrument),
		byName:   make(map[string]map[schema.Exchange]schema.Instrument),
	}
	seen := make(map[string]struct{})

	for _, inst := range instruments {
		if inst.Segment != schema.SegmentCash {
			continue
		}
		dedupeKey := string(inst.Exchange) + "|" + inst.TradingSymbol
		if _, dup := seen[dedupeKey]; dup {
			continue
		}
		seen[dedupeKey] = struct{}{}

		if isin := strings.ToUpper(strings.TrimSpace(inst.ISIN)); isin != "" {
			put(idx.byISIN, isin, inst)
		}
		if symbol := strings.ToUpper(strings.TrimSpace(inst.TradingSymbol)); symbol != "" {
			put(idx.bySymbol, symbol, inst)
		}
		if name := NormalizeName(inst.Name); name != "" {
			put(idx.byName, name, inst)
		}

		idx.rows = append(idx.rows, searchRow{
			inst:   inst,
			name:   strings.ToUpper(strings.TrimSpace(inst.Name)),
			symbol: strings.ToUpper(strings.TrimSpace(inst.TradingSymbol)),
		})
	}
	return idx
}

func put(m map[string]map[schema.Exchange]schema.Instrument, key string, inst schema.Instrument) {
	listings, ok := m[key]
	if !ok {
		listings = make(map[schema.Exchange]schema.Instrument, 2)
		m[key] = listings
	}
	if _, dup := listings[inst.Exchange]; !dup {
		listings[inst.Exchange] = inst
	}
}

// pickBest selects one listing from a per-exchange set. A non-empty enabled
// set restricts candidates first; an empty restricted set yields no match.
// Among the remainder the preferred exchange wins, then NSE, then BSE.
func pickBest(listings map[schema.Exchange]schema.Instrument, preferred schema.Exchange, enabled []schema.Exchange) (schema.Instrument, bool) {
	if len(listings) == 0 {
		return schema.Instrument{}, false
	}
	allowed := func(e schema.Exchange) bool { return exchangeAllowed(e, enabled) }

	if preferred != "" && allowed(preferred) {
		if inst, ok := listings[preferred]; ok {
			return inst, true
		}
	}
	for _, exchange := range []schema.Exchange{schema.ExchangeNSE, schema.ExchangeBSE} {
		if !allowed(exchange) {
			continue
		}
		if inst, ok := listings[exchange]; ok {
			return inst, true
		}
	}
	for exchange, inst := range listings {
		if allowed(exchange) {
			return inst, true
		}
	}
	return schema.Instrument{}, false
}

func exchangeAllowed(e schema.Exchange, enabled []schema.Exchange) bool {
	if len(enabled) == 0 {
		return true
	}
	for _, candidate := range enabled {
		if candidate == e {
			return true
		}
	}
	return false
}

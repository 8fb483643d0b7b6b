package resolve

import (
	"regexp"
	"sort"
	"strings"

	"github.com/quantedge/quotegate/internal/observability"
	"github.com/quantedge/quotegate/schema"
)

const (
	exactSymbolBonus = 3.0
	exactNameBonus   = 2.0
	prefixBonus      = 0.5
	maxLengthPenalty = 50
)

// fuzzySearch ranks universe rows against a free-text query by token
// overlap. Scores are comparable across queries: a full token match with an
// exact symbol hit scores 1+3, while a partial name overlap lands below 1.
// A non-empty enabled set restricts candidate exchanges. Any internal
// failure degrades to an empty result set rather than taking down the
// caller.
func (idx *index) fuzzySearch(query string, preferred schema.Exchange, enabled []schema.Exchange, limit int) (out []schema.Match) {
	defer func() {
		if r := recover(); r != nil {
			observability.Log().Error("fuzzy search panicked",
				observability.F("query", query),
				observability.F("panic", r),
			)
			out = nil
		}
	}()

	needle := strings.ToUpper(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}

	var tokens []string
	for _, tok := range strings.Fields(needle) {
		if len(tok) > 1 {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return nil
	}

	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	anyToken, err := regexp.Compile(strings.Join(quoted, "|"))
	if err != nil {
		return nil
	}

	var candidates []schema.Match

	for _, row := range idx.rows {
		if !exchangeAllowed(row.inst.Exchange, enabled) {
			continue
		}
		haystack := row.name + " " + row.symbol
		if !anyToken.MatchString(haystack) {
			continue
		}

		matched := 0
		for _, tok := range tokens {
			if strings.Contains(haystack, tok) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		score := float64(matched) / float64(len(tokens))

		if row.symbol == needle {
			score += exactSymbolBonus
		}
		if row.name == needle {
			score += exactNameBonus
		}
		if strings.HasPrefix(row.name, tokens[0]) {
			score += prefixBonus
		}

		lenDelta := len(row.name) - len(needle)
		if lenDelta < 0 {
			lenDelta = -lenDelta
		}
		if lenDelta > maxLengthPenalty {
			lenDelta = maxLengthPenalty
		}
		score -= float64(lenDelta) / 100

		candidates = append(candidates, schema.MatchOf(row.inst, score))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if preferred != "" && (a.Exchange == preferred) != (b.Exchange == preferred) {
			return a.Exchange == preferred
		}
		if a.Exchange != b.Exchange {
			return a.Exchange == schema.ExchangeNSE
		}
		return a.TradingSymbol < b.TradingSymbol
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

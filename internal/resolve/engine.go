package resolve

import (
	"context"
	"strings"
	"sync"

	"github.com/quantedge/quotegate/internal/observability"
	"github.com/quantedge/quotegate/schema"
)

// Universe supplies the instrument catalog and a generation counter that
// changes when the catalog does.
type Universe interface {
	All(ctx context.Context) ([]schema.Instrument, error)
	Generation() uint64
}

// symbolSynonyms maps colloquial company names to their listed ticker when
// the listed name diverges too far for fuzzy matching to bridge.
var symbolSynonyms = map[string]string{
	"ADANI WILMAR": "AWL",
}

// maxSymbolQueryLen bounds the exact-symbol fast path in Search; anything
// longer cannot be a ticker.
const maxSymbolQueryLen = 15

// Engine resolves queries against lazily built indices. Indices are rebuilt
// when the universe generation moves, so a catalog refresh propagates without
// restarting the process.
type Engine struct {
	universe Universe
	cutoff   float64

	mu    sync.RWMutex
	idx   *index
	gen   uint64
	built bool
}

// NewEngine constructs a resolution engine over the given universe.
func NewEngine(universe Universe, fuzzyCutoff float64) *Engine {
	return &Engine{universe: universe, cutoff: fuzzyCutoff}
}

func (e *Engine) indexFor(ctx context.Context) (*index, error) {
	e.mu.RLock()
	if e.built && e.gen == e.universe.Generation() {
		idx := e.idx
		e.mu.RUnlock()
		return idx, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.built && e.gen == e.universe.Generation() {
		return e.idx, nil
	}

	instruments, err := e.universe.All(ctx)
	if err != nil {
		return nil, err
	}
	e.idx = buildIndex(instruments)
	e.gen = e.universe.Generation()
	e.built = true
	observability.Log().Info("rebuilt resolution index",
		observability.F("rows", len(e.idx.rows)),
		observability.F("generation", e.gen),
	)
	return e.idx, nil
}

// Resolve walks the confidence waterfall for a single query: ISIN, then
// exact symbol, then normalised name, then fuzzy search. A miss, including
// a query with no usable key, returns (zero, false, nil); only universe
// failures surface as errors.
func (e *Engine) Resolve(ctx context.Context, q schema.Query) (schema.Match, bool, error) {
	if q.Empty() {
		return schema.Match{}, false, nil
	}

	idx, err := e.indexFor(ctx)
	if err != nil {
		return schema.Match{}, false, err
	}

	if isin := strings.ToUpper(strings.TrimSpace(q.ISIN)); isin != "" {
		if inst, ok := pickBest(idx.byISIN[isin], q.Exchange, q.Enabled); ok {
			observability.Stats().ResolveHit("isin")
			return schema.MatchOf(inst, 0), true, nil
		}
	}

	if symbol := strings.ToUpper(strings.TrimSpace(q.Symbol)); symbol != "" {
		if inst, ok := pickBest(idx.bySymbol[symbol], q.Exchange, q.Enabled); ok {
			observability.Stats().ResolveHit("symbol")
			return schema.MatchOf(inst, 0), true, nil
		}
	}

	if name := NormalizeName(q.Name); name != "" {
		if inst, ok := pickBest(idx.byName[name], q.Exchange, q.Enabled); ok {
			observability.Stats().ResolveHit("name")
			return schema.MatchOf(inst, 0), true, nil
		}
	}

	needle := strings.TrimSpace(strings.Join([]string{q.Name, q.Symbol}, " "))
	matches := idx.fuzzySearch(needle, q.Exchange, q.Enabled, 1)
	if len(matches) > 0 && matches[0].Score >= e.cutoff {
		observability.Stats().ResolveHit("fuzzy")
		return matches[0], true, nil
	}
	return schema.Match{}, false, nil
}

// Search returns ranked candidates for a free-text query without applying
// the acceptance cutoff, so callers can present alternatives. Empty text
// yields an empty result, not an error.
func (e *Engine) Search(ctx context.Context, text string, preferred schema.Exchange, limit int) ([]schema.Match, error) {
	query := strings.ToUpper(strings.TrimSpace(text))
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	idx, err := e.indexFor(ctx)
	if err != nil {
		return nil, err
	}

	if symbol, ok := symbolSynonyms[query]; ok {
		query = symbol
	} else {
		for _, suffix := range []string{" LIMITED", " LTD", " PVT", " PRIVATE"} {
			if strings.HasSuffix(query, suffix) {
				query = strings.TrimSuffix(query, suffix)
				break
			}
		}
		if symbol, ok := symbolSynonyms[query]; ok {
			query = symbol
		}
	}

	if len(query) < maxSymbolQueryLen {
		if inst, ok := pickBest(idx.bySymbol[query], preferred, nil); ok {
			return []schema.Match{schema.MatchOf(inst, 1)}, nil
		}
	}

	return idx.fuzzySearch(query, preferred, nil, limit), nil
}

// Package quote fetches last-traded prices in resilient batches, isolating
// invalid symbols without failing whole requests.
package quote

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/quantedge/quotegate/config"
	"github.com/quantedge/quotegate/errs"
	"github.com/quantedge/quotegate/internal/observability"
	"github.com/quantedge/quotegate/internal/retry"
	"github.com/quantedge/quotegate/schema"
)

const (
	priceSource   = "groww_live"
	priceCurrency = "INR"
)

// BatchQuoter executes one all-or-nothing upstream LTP call.
type BatchQuoter interface {
	LTP(ctx context.Context, segment schema.Segment, exchangeSymbols []string) (map[string]json.Number, error)
}

// Fetcher fans batched LTP requests across a bounded worker pool. When a
// batch fails with a validation error it is bisected until the offending
// symbols are isolated, so one bad symbol costs O(log n) extra calls instead
// of the whole batch.
type Fetcher struct {
	quoter    BatchQuoter
	retry     retry.Policy
	limiter   *rate.Limiter
	segment   schema.Segment
	chunkSize int
	workers   int
	now       func() time.Time
}

// NewFetcher constructs a fetcher over the given quoter.
func NewFetcher(quoter BatchQuoter, policy retry.Policy, limiter *rate.Limiter, cfg config.QuoteSettings) *Fetcher {
	chunkSize := cfg.ChunkSize
	if chunkSize < 1 {
		chunkSize = 1
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Fetcher{
		quoter:    quoter,
		retry:     policy,
		limiter:   limiter,
		segment:   schema.SegmentCash,
		chunkSize: chunkSize,
		workers:   workers,
		now:       time.Now,
	}
}

// FetchLTP returns one price record per distinct resolvable symbol, in first
// occurrence order. Symbols the upstream rejects are dropped silently from
// the result; transport failures that survive retry fail the call.
func (f *Fetcher) FetchLTP(ctx context.Context, exchangeSymbols []string) ([]schema.PriceRecord, error) {
	symbols := dedupe(exchangeSymbols)
	if len(symbols) == 0 {
		return nil, errs.Validation("at least one symbol required")
	}

	var (
		mu     sync.Mutex
		prices = make(map[string]json.Number, len(symbols))
	)

	workers := pool.New().WithMaxGoroutines(f.workers).WithContext(ctx)
	for start := 0; start < len(symbols); start += f.chunkSize {
		end := start + f.chunkSize
		if end > len(symbols) {
			end = len(symbols)
		}
		chunk := symbols[start:end]
		workers.Go(func(ctx context.Context) error {
			fetched, err := f.fetchChunk(ctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			for symbol, price := range fetched {
				prices[symbol] = price
			}
			mu.Unlock()
			return nil
		})
	}
	if err := workers.Wait(); err != nil {
		return nil, err
	}

	asOf := f.now().UTC()
	records := make([]schema.PriceRecord, 0, len(prices))
	for _, symbol := range symbols {
		raw, ok := prices[symbol]
		if !ok {
			continue
		}
		records = append(records, schema.PriceRecord{
			Symbol:   symbol,
			Price:    toDecimal(raw),
			AsOf:     asOf,
			Source:   priceSource,
			Currency: priceCurrency,
		})
	}
	return records, nil
}

// fetchChunk resolves one chunk via an explicit work stack. A batch that the
// upstream rejects as invalid is split in half and both halves requeued; a
// rejected single symbol is logged and dropped. Non-validation errors
// propagate after the retry policy gives up.
func (f *Fetcher) fetchChunk(ctx context.Context, chunk []string) (map[string]json.Number, error) {
	out := make(map[string]json.Number, len(chunk))
	stack := [][]string{chunk}

	for len(stack) > 0 {
		batch := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(batch) == 0 {
			continue
		}

		fetched, err := f.callOnce(ctx, batch)
		if err == nil {
			for symbol, price := range fetched {
				out[symbol] = price
			}
			continue
		}

		kind, _ := errs.Classify(err)
		if kind != errs.KindValidation {
			return nil, err
		}
		if len(batch) == 1 {
			observability.Log().Warn("dropping symbol rejected by upstream",
				observability.F("symbol", batch[0]),
				observability.F("error", err.Error()),
			)
			observability.Stats().InvalidSymbol()
			continue
		}

		mid := len(batch) / 2
		stack = append(stack, batch[mid:], batch[:mid])
	}
	return out, nil
}

func (f *Fetcher) callOnce(ctx context.Context, batch []string) (map[string]json.Number, error) {
	var fetched map[string]json.Number
	err := f.retry.Do(ctx, func(ctx context.Context) error {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var opErr error
		fetched, opErr = f.quoter.LTP(ctx, f.segment, batch)
		return opErr
	})
	return fetched, err
}

// toDecimal converts an upstream price token. Absent or unparseable values
// become zero so one bad field never drops the whole record.
func toDecimal(raw json.Number) decimal.Decimal {
	s := raw.String()
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

package quote_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/quantedge/quotegate/config"
	"github.com/quantedge/quotegate/errs"
	"github.com/quantedge/quotegate/internal/quote"
	"github.com/quantedge/quotegate/internal/retry"
	"github.com/quantedge/quotegate/schema"
)

// fakeQuoter mimics the all-or-nothing upstream batch endpoint: any batch
// containing an invalid symbol fails entirely.
type fakeQuoter struct {
	mu      sync.Mutex
	calls   int
	batches [][]string
	prices  map[string]json.Number
	invalid map[string]bool
	failAll error
}

func (f *fakeQuoter) LTP(_ context.Context, _ schema.Segment, symbols []string) (map[string]json.Number, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batches = append(f.batches, append([]string(nil), symbols...))

	if f.failAll != nil {
		return nil, f.failAll
	}
	for _, s := range symbols {
		if f.invalid[s] {
			return nil, errs.New(errs.KindValidation,
				errs.WithMessage("invalid exchange_symbols"),
				errs.WithUpstreamStatus(400),
			)
		}
	}
	out := make(map[string]json.Number, len(symbols))
	for _, s := range symbols {
		if price, ok := f.prices[s]; ok {
			out[s] = price
		}
	}
	return out, nil
}

func instantPolicy(attempts int) retry.Policy {
	return retry.Policy{
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		MaxAttempts: attempts,
		Sleep:       func(context.Context, time.Duration) error { return nil },
		Jitter:      func(time.Duration) time.Duration { return 0 },
	}
}

func newFetcher(q quote.BatchQuoter, chunkSize, workers int) *quote.Fetcher {
	return quote.NewFetcher(q, instantPolicy(1), nil, config.QuoteSettings{
		ChunkSize: chunkSize,
		Workers:   workers,
	})
}

func symbols(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("NSE_SYM%02d", i)
	}
	return out
}

func pricesFor(syms []string) map[string]json.Number {
	out := make(map[string]json.Number, len(syms))
	for i, s := range syms {
		out[s] = json.Number(fmt.Sprintf("%d.50", 100+i))
	}
	return out
}

func TestFetchLTPHappyPath(t *testing.T) {
	syms := symbols(5)
	q := &fakeQuoter{prices: pricesFor(syms)}
	f := newFetcher(q, 50, 2)

	records, err := f.FetchLTP(context.Background(), syms)
	require.NoError(t, err)
	require.Len(t, records, 5)
	require.Equal(t, 1, q.calls)

	for i, rec := range records {
		require.Equal(t, syms[i], rec.Symbol)
		require.Equal(t, "groww_live", rec.Source)
		require.Equal(t, "INR", rec.Currency)
		require.False(t, rec.Price.IsZero())
		require.Equal(t, time.UTC, rec.AsOf.Location())
	}
}

func TestFetchLTPDeduplicatesPreservingOrder(t *testing.T) {
	q := &fakeQuoter{prices: pricesFor([]string{"NSE_A", "NSE_B"})}
	f := newFetcher(q, 50, 1)

	records, err := f.FetchLTP(context.Background(), []string{"NSE_B", "NSE_A", "NSE_B", ""})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "NSE_B", records[0].Symbol)
	require.Equal(t, "NSE_A", records[1].Symbol)
	require.Equal(t, 1, q.calls)
}

func TestFetchLTPBisectsAroundInvalidSymbol(t *testing.T) {
	syms := symbols(10)
	bad := "NSE_BADSYM"
	all := append(append([]string{}, syms[:5]...), bad)
	all = append(all, syms[5:]...)

	q := &fakeQuoter{
		prices:  pricesFor(syms),
		invalid: map[string]bool{bad: true},
	}
	f := newFetcher(q, 50, 1)

	records, err := f.FetchLTP(context.Background(), all)
	require.NoError(t, err)
	require.Len(t, records, 10)
	for _, rec := range records {
		require.NotEqual(t, bad, rec.Symbol)
	}

	// One bad symbol costs O(log n) extra calls, not one call per symbol.
	require.Greater(t, q.calls, 1)
	require.Less(t, q.calls, len(all))
}

func TestFetchLTPAllInvalidReturnsEmpty(t *testing.T) {
	q := &fakeQuoter{
		prices:  map[string]json.Number{},
		invalid: map[string]bool{"NSE_X": true, "NSE_Y": true},
	}
	f := newFetcher(q, 50, 1)

	records, err := f.FetchLTP(context.Background(), []string{"NSE_X", "NSE_Y"})
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestFetchLTPTransportErrorPropagates(t *testing.T) {
	q := &fakeQuoter{
		failAll: errs.New(errs.KindUpstreamUnavailable, errs.WithMessage("bad gateway")),
	}
	f := newFetcher(q, 50, 1)

	_, err := f.FetchLTP(context.Background(), []string{"NSE_A"})
	require.Error(t, err)
	kind, retryable := errs.Classify(err)
	require.Equal(t, errs.KindUpstreamUnavailable, kind)
	require.True(t, retryable)
}

func TestFetchLTPNonRetryableAuthFailsFast(t *testing.T) {
	q := &fakeQuoter{
		failAll: errs.New(errs.KindAuthenticationFailed, errs.WithMessage("token expired")),
	}
	f := quote.NewFetcher(q, instantPolicy(5), nil, config.QuoteSettings{ChunkSize: 50, Workers: 1})

	_, err := f.FetchLTP(context.Background(), []string{"NSE_A"})
	require.Error(t, err)
	require.Equal(t, 1, q.calls)
}

func TestFetchLTPSplitsIntoChunks(t *testing.T) {
	syms := symbols(10)
	q := &fakeQuoter{prices: pricesFor(syms)}
	f := newFetcher(q, 4, 2)

	records, err := f.FetchLTP(context.Background(), syms)
	require.NoError(t, err)
	require.Len(t, records, 10)
	require.Equal(t, 3, q.calls)
	for _, batch := range q.batches {
		require.LessOrEqual(t, len(batch), 4)
	}
}

func TestFetchLTPNullPriceBecomesZero(t *testing.T) {
	q := &fakeQuoter{
		prices: map[string]json.Number{"NSE_A": ""},
	}
	f := newFetcher(q, 50, 1)

	records, err := f.FetchLTP(context.Background(), []string{"NSE_A"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, records[0].Price.IsZero())
}

func TestFetchLTPWaitsOnRateLimiter(t *testing.T) {
	syms := symbols(4)
	q := &fakeQuoter{prices: pricesFor(syms)}
	limiter := rate.NewLimiter(rate.Limit(1000), 1)
	f := quote.NewFetcher(q, instantPolicy(1), limiter, config.QuoteSettings{ChunkSize: 2, Workers: 2})

	records, err := f.FetchLTP(context.Background(), syms)
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, 2, q.calls)
}

func TestFetchLTPEmptyInputFails(t *testing.T) {
	q := &fakeQuoter{}
	f := newFetcher(q, 50, 1)

	_, err := f.FetchLTP(context.Background(), nil)
	require.Error(t, err)
	kind, _ := errs.Classify(err)
	require.Equal(t, errs.KindValidation, kind)
}

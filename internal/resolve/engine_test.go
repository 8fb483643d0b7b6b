package resolve_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quantedge/quotegate/internal/resolve"
	"github.com/quantedge/quotegate/schema"
)

type stubUniverse struct {
	instruments []schema.Instrument
	gen         uint64
	calls       int
}

func (u *stubUniverse) All(context.Context) ([]schema.Instrument, error) {
	u.calls++
	return u.instruments, nil
}

func (u *stubUniverse) Generation() uint64 { return u.gen }

func fixtureInstruments() []schema.Instrument {
	tick := decimal.NewFromFloat(0.05)
	return []schema.Instrument{
		{Exchange: schema.ExchangeNSE, Segment: schema.SegmentCash, TradingSymbol: "RELIANCE", Name: "RELIANCE INDUSTRIES LIMITED", ISIN: "INE002A01018", LotSize: 1, TickSize: tick},
		{Exchange: schema.ExchangeBSE, Segment: schema.SegmentCash, TradingSymbol: "RELIANCE", Name: "RELIANCE INDUSTRIES LIMITED", ISIN: "INE002A01018", LotSize: 1, TickSize: tick},
		{Exchange: schema.ExchangeNSE, Segment: schema.SegmentCash, TradingSymbol: "TCS", Name: "TATA CONSULTANCY SERVICES LIMITED", ISIN: "INE467B01029", LotSize: 1, TickSize: tick},
		{Exchange: schema.ExchangeNSE, Segment: schema.SegmentCash, TradingSymbol: "AWL", Name: "AWL AGRI BUSINESS LIMITED", ISIN: "INE699H01024", LotSize: 1, TickSize: tick},
		{Exchange: schema.ExchangeBSE, Segment: schema.SegmentCash, TradingSymbol: "SOLARA", Name: "SOLARA ACTIVE PHARMA SCIENCES LIMITED", ISIN: "INE624Z01016", LotSize: 1, TickSize: tick},
		{Exchange: schema.ExchangeNSE, Segment: schema.SegmentFNO, TradingSymbol: "RELIANCE24DECFUT", Name: "RELIANCE DEC FUT", LotSize: 250, TickSize: tick},
	}
}

func newEngine(t *testing.T) (*resolve.Engine, *stubUniverse) {
	t.Helper()
	u := &stubUniverse{instruments: fixtureInstruments(), gen: 1}
	return resolve.NewEngine(u, 0.5), u
}

func TestResolveByISIN(t *testing.T) {
	engine, _ := newEngine(t)

	match, ok, err := engine.Resolve(context.Background(), schema.Query{ISIN: "ine002a01018"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, schema.ExchangeNSE, match.Exchange)
	require.Equal(t, "RELIANCE", match.TradingSymbol)
}

func TestResolvePrefersRequestedExchange(t *testing.T) {
	engine, _ := newEngine(t)

	match, ok, err := engine.Resolve(context.Background(), schema.Query{ISIN: "INE002A01018", Exchange: schema.ExchangeBSE})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, schema.ExchangeBSE, match.Exchange)
}

func TestResolveEnabledExchangeRestriction(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	match, ok, err := engine.Resolve(ctx, schema.Query{
		ISIN:    "INE002A01018",
		Enabled: []schema.Exchange{schema.ExchangeBSE},
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, schema.ExchangeBSE, match.Exchange)

	// Restricting to an exchange with no listing resolves nothing.
	_, ok, err = engine.Resolve(ctx, schema.Query{
		ISIN:    "INE467B01029",
		Enabled: []schema.Exchange{schema.ExchangeBSE},
	})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResolveISINWinsOverConflictingSymbol(t *testing.T) {
	engine, _ := newEngine(t)

	match, ok, err := engine.Resolve(context.Background(), schema.Query{ISIN: "INE467B01029", Symbol: "RELIANCE"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "TCS", match.TradingSymbol)
}

func TestResolveBySymbol(t *testing.T) {
	engine, _ := newEngine(t)

	match, ok, err := engine.Resolve(context.Background(), schema.Query{Symbol: "tcs"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "TCS", match.TradingSymbol)
}

func TestResolveByNormalizedName(t *testing.T) {
	engine, _ := newEngine(t)

	match, ok, err := engine.Resolve(context.Background(), schema.Query{Name: "Tata Consultancy Services Ltd."})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "TCS", match.TradingSymbol)
}

func TestResolveFallsBackToFuzzy(t *testing.T) {
	engine, _ := newEngine(t)

	match, ok, err := engine.Resolve(context.Background(), schema.Query{Name: "Solara Active Pharma"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "SOLARA", match.TradingSymbol)
	require.Equal(t, schema.ExchangeBSE, match.Exchange)
	require.Greater(t, match.Score, 0.0)
}

func TestResolveMissReturnsNoError(t *testing.T) {
	engine, _ := newEngine(t)

	_, ok, err := engine.Resolve(context.Background(), schema.Query{Name: "Zzyzx Holdings Nowhere"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResolveEmptyQueryIsAMiss(t *testing.T) {
	engine, _ := newEngine(t)

	_, ok, err := engine.Resolve(context.Background(), schema.Query{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResolveShortTokenQueryIsAMiss(t *testing.T) {
	engine, _ := newEngine(t)

	_, ok, err := engine.Resolve(context.Background(), schema.Query{Name: "T S"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResolveExcludesDerivatives(t *testing.T) {
	engine, _ := newEngine(t)

	_, ok, err := engine.Resolve(context.Background(), schema.Query{Symbol: "RELIANCE24DECFUT"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIndexRebuildTracksGeneration(t *testing.T) {
	engine, u := newEngine(t)
	ctx := context.Background()

	_, _, err := engine.Resolve(ctx, schema.Query{Symbol: "TCS"})
	require.NoError(t, err)
	_, _, err = engine.Resolve(ctx, schema.Query{Symbol: "AWL"})
	require.NoError(t, err)
	require.Equal(t, 1, u.calls)

	u.instruments = append(u.instruments, schema.Instrument{
		Exchange: schema.ExchangeNSE, Segment: schema.SegmentCash,
		TradingSymbol: "NEWCO", Name: "NEWCO VENTURES LIMITED", ISIN: "INE999X01010",
	})
	u.gen = 2

	match, ok, err := engine.Resolve(ctx, schema.Query{Symbol: "NEWCO"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "NEWCO", match.TradingSymbol)
	require.Equal(t, 2, u.calls)
}

func TestSearchSynonymRemap(t *testing.T) {
	engine, _ := newEngine(t)

	matches, err := engine.Search(context.Background(), "Adani Wilmar", "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	require.Equal(t, "AWL", matches[0].TradingSymbol)
}

func TestSearchExactSymbolFastPath(t *testing.T) {
	engine, _ := newEngine(t)

	matches, err := engine.Search(context.Background(), "reliance", "", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "RELIANCE", matches[0].TradingSymbol)
	require.Equal(t, schema.ExchangeNSE, matches[0].Exchange)
}

func TestSearchTrimsCorporateSuffix(t *testing.T) {
	engine, _ := newEngine(t)

	matches, err := engine.Search(context.Background(), "Solara Active Pharma Sciences Limited", "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	require.Equal(t, "SOLARA", matches[0].TradingSymbol)
}

func TestSearchSynonymAppliesAfterSuffixTrim(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	for _, text := range []string{"Adani Wilmar Limited", "Adani Wilmar Ltd"} {
		matches, err := engine.Search(ctx, text, "", 5)
		require.NoError(t, err, "text %q", text)
		require.NotEmpty(t, matches, "text %q", text)
		require.Equal(t, "AWL", matches[0].TradingSymbol, "text %q", text)
	}
}

func TestSearchEmptyTextReturnsEmpty(t *testing.T) {
	engine, _ := newEngine(t)

	matches, err := engine.Search(context.Background(), "   ", "", 5)
	require.NoError(t, err)
	require.Empty(t, matches)
}

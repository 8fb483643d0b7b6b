package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantedge/quotegate/schema"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Reliance Industries Limited", "RELIANCE INDUSTRIES"},
		{"Tata Consultancy Services Ltd.", "TATA CONSULTANCY SERVICES"},
		{"Foo India Limited", "FOO"},
		{"Bar Private Ltd", "BAR"},
		{"L&T Finance", "L T FINANCE"},
		{"  spaced   out  ", "SPACED OUT"},
		{"LIMITED", ""},
		{"", ""},
		{"Hindalco", "HINDALCO"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NormalizeName(tc.in), "input %q", tc.in)
	}
}

func TestBuildIndexDeduplicatesListings(t *testing.T) {
	instruments := []schema.Instrument{
		{Exchange: schema.ExchangeNSE, Segment: schema.SegmentCash, TradingSymbol: "TCS", Name: "TATA CONSULTANCY SERVICES LIMITED", ISIN: "INE467B01029"},
		{Exchange: schema.ExchangeNSE, Segment: schema.SegmentCash, TradingSymbol: "TCS", Name: "DUPLICATE ROW", ISIN: "INE467B01029"},
		{Exchange: schema.ExchangeBSE, Segment: schema.SegmentCash, TradingSymbol: "TCS", Name: "TATA CONSULTANCY SERVICES LIMITED", ISIN: "INE467B01029"},
	}

	idx := buildIndex(instruments)

	require.Len(t, idx.rows, 2)
	require.Len(t, idx.bySymbol["TCS"], 2)
	require.Equal(t, "TATA CONSULTANCY SERVICES LIMITED", idx.bySymbol["TCS"][schema.ExchangeNSE].Name)
}

func TestBuildIndexIsIdempotent(t *testing.T) {
	instruments := []schema.Instrument{
		{Exchange: schema.ExchangeNSE, Segment: schema.SegmentCash, TradingSymbol: "RELIANCE", Name: "RELIANCE INDUSTRIES LIMITED", ISIN: "INE002A01018"},
		{Exchange: schema.ExchangeBSE, Segment: schema.SegmentCash, TradingSymbol: "RELIANCE", Name: "RELIANCE INDUSTRIES LIMITED", ISIN: "INE002A01018"},
		{Exchange: schema.ExchangeNSE, Segment: schema.SegmentCash, TradingSymbol: "TCS", Name: "TATA CONSULTANCY SERVICES LIMITED", ISIN: "INE467B01029"},
		{Exchange: schema.ExchangeNSE, Segment: schema.SegmentFNO, TradingSymbol: "NIFTY24DECFUT"},
	}

	first := buildIndex(instruments)
	second := buildIndex(instruments)

	require.Equal(t, first.byISIN, second.byISIN)
	require.Equal(t, first.bySymbol, second.bySymbol)
	require.Equal(t, first.byName, second.byName)
	require.Equal(t, first.rows, second.rows)

	for key, listings := range first.byISIN {
		for exchange, inst := range listings {
			require.Equal(t, inst, second.byISIN[key][exchange])
		}
	}
}

func TestBuildIndexSkipsNonCashSegments(t *testing.T) {
	instruments := []schema.Instrument{
		{Exchange: schema.ExchangeNSE, Segment: schema.SegmentFNO, TradingSymbol: "NIFTY24DECFUT"},
		{Exchange: schema.ExchangeNSE, Segment: schema.SegmentCommodity, TradingSymbol: "GOLDM"},
	}

	idx := buildIndex(instruments)
	require.Empty(t, idx.rows)
	require.Empty(t, idx.bySymbol)
}

func TestPickBestOrdering(t *testing.T) {
	nse := schema.Instrument{Exchange: schema.ExchangeNSE, TradingSymbol: "X"}
	bse := schema.Instrument{Exchange: schema.ExchangeBSE, TradingSymbol: "X"}
	both := map[schema.Exchange]schema.Instrument{
		schema.ExchangeNSE: nse,
		schema.ExchangeBSE: bse,
	}

	got, ok := pickBest(both, "", nil)
	require.True(t, ok)
	require.Equal(t, schema.ExchangeNSE, got.Exchange)

	got, ok = pickBest(both, schema.ExchangeBSE, nil)
	require.True(t, ok)
	require.Equal(t, schema.ExchangeBSE, got.Exchange)

	got, ok = pickBest(map[schema.Exchange]schema.Instrument{schema.ExchangeBSE: bse}, schema.ExchangeNSE, nil)
	require.True(t, ok)
	require.Equal(t, schema.ExchangeBSE, got.Exchange)

	_, ok = pickBest(nil, schema.ExchangeNSE, nil)
	require.False(t, ok)
}

func TestPickBestEnabledRestriction(t *testing.T) {
	nse := schema.Instrument{Exchange: schema.ExchangeNSE, TradingSymbol: "X"}
	bse := schema.Instrument{Exchange: schema.ExchangeBSE, TradingSymbol: "X"}
	both := map[schema.Exchange]schema.Instrument{
		schema.ExchangeNSE: nse,
		schema.ExchangeBSE: bse,
	}

	got, ok := pickBest(both, "", []schema.Exchange{schema.ExchangeBSE})
	require.True(t, ok)
	require.Equal(t, schema.ExchangeBSE, got.Exchange)

	// Restriction beats preference.
	got, ok = pickBest(both, schema.ExchangeNSE, []schema.Exchange{schema.ExchangeBSE})
	require.True(t, ok)
	require.Equal(t, schema.ExchangeBSE, got.Exchange)

	_, ok = pickBest(map[schema.Exchange]schema.Instrument{schema.ExchangeNSE: nse}, "", []schema.Exchange{schema.ExchangeBSE})
	require.False(t, ok)
}

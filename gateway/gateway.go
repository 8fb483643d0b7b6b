// Package gateway wires the QuoteGate components into a single service
// facade.
package gateway

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/quantedge/quotegate/config"
	"github.com/quantedge/quotegate/internal/groww"
	"github.com/quantedge/quotegate/internal/quote"
	"github.com/quantedge/quotegate/internal/resolve"
	"github.com/quantedge/quotegate/internal/retry"
	"github.com/quantedge/quotegate/internal/universe"
	"github.com/quantedge/quotegate/schema"
)

// Service exposes instrument resolution and batch quote fetching over a
// shared instrument universe.
type Service struct {
	cfg      config.Settings
	universe *universe.Cache
	engine   *resolve.Engine
	fetcher  *quote.Fetcher
}

// Option customises service construction.
type Option func(*options)

type options struct {
	tokens groww.TokenSource
	quoter quote.BatchQuoter
}

// WithTokenSource overrides the token source built from configuration.
func WithTokenSource(tokens groww.TokenSource) Option {
	return func(o *options) {
		if tokens != nil {
			o.tokens = tokens
		}
	}
}

// WithQuoter overrides the upstream quote client, primarily for tests.
func WithQuoter(quoter quote.BatchQuoter) Option {
	return func(o *options) {
		if quoter != nil {
			o.quoter = quoter
		}
	}
}

// New assembles a service from settings.
func New(cfg config.Settings, opts ...Option) *Service {
	o := options{
		tokens: groww.StaticTokenSource(cfg.Groww.AccessToken),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	client := groww.NewClient(cfg.Groww, o.tokens)
	if o.quoter == nil {
		o.quoter = client
	}

	policy := retry.FromConfig(cfg.Retry)
	cache := universe.New(client, policy, cfg.Resolve)
	limiter := rate.NewLimiter(rate.Limit(cfg.Quote.RequestsPerSec), cfg.Quote.Burst)

	return &Service{
		cfg:      cfg,
		universe: cache,
		engine:   resolve.NewEngine(cache, cfg.Resolve.FuzzyCutoff),
		fetcher:  quote.NewFetcher(o.quoter, policy, limiter, cfg.Quote),
	}
}

// Resolve maps a single query to its canonical instrument. The second return
// is false when nothing in the universe matches with sufficient confidence.
func (s *Service) Resolve(ctx context.Context, q schema.Query) (schema.Match, bool, error) {
	return s.engine.Resolve(ctx, q)
}

// ResolveAll resolves a batch of queries, pairing each with its outcome.
func (s *Service) ResolveAll(ctx context.Context, queries []schema.Query) ([]Resolution, error) {
	out := make([]Resolution, 0, len(queries))
	for _, q := range queries {
		match, ok, err := s.engine.Resolve(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, Resolution{Query: q, Match: match, Resolved: ok})
	}
	return out, nil
}

// Resolution pairs a query with its resolution outcome.
type Resolution struct {
	Query    schema.Query `json:"query"`
	Match    schema.Match `json:"match,omitempty"`
	Resolved bool         `json:"resolved"`
}

// Search returns ranked instrument candidates for free text.
func (s *Service) Search(ctx context.Context, text string, preferred schema.Exchange, limit int) ([]schema.Match, error) {
	return s.engine.Search(ctx, text, preferred, limit)
}

// FetchLTP fetches last traded prices for exchange-qualified symbols.
func (s *Service) FetchLTP(ctx context.Context, exchangeSymbols []string) ([]schema.PriceRecord, error) {
	return s.fetcher.FetchLTP(ctx, exchangeSymbols)
}

// RefreshUniverse forces a reload of the instrument catalog.
func (s *Service) RefreshUniverse(ctx context.Context) error {
	return s.universe.Refresh(ctx)
}

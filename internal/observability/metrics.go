package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks resolution and quote-fetch outcomes.
type Metrics struct {
	resolveHits     *prometheus.CounterVec
	upstreamRetries prometheus.Counter
	invalidSymbols  prometheus.Counter
	upstreamCalls   *prometheus.CounterVec
}

// NewMetrics constructs and registers QuoteGate metrics with the provided
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		resolveHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{ //nolint:exhaustruct
				Namespace: "quotegate",
				Subsystem: "resolve",
				Name:      "hits_total",
				Help:      "Resolution hits by waterfall tier (isin, symbol, name, fuzzy).",
			},
			[]string{"tier"},
		),
		upstreamRetries: prometheus.NewCounter(
			prometheus.CounterOpts{ //nolint:exhaustruct
				Namespace: "quotegate",
				Subsystem: "upstream",
				Name:      "retries_total",
				Help:      "Retry attempts against the upstream API.",
			},
		),
		invalidSymbols: prometheus.NewCounter(
			prometheus.CounterOpts{ //nolint:exhaustruct
				Namespace: "quotegate",
				Subsystem: "quote",
				Name:      "invalid_symbols_total",
				Help:      "Symbols isolated as invalid during batch bisection.",
			},
		),
		upstreamCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{ //nolint:exhaustruct
				Namespace: "quotegate",
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Upstream requests by outcome (ok, error).",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(m.resolveHits, m.upstreamRetries, m.invalidSymbols, m.upstreamCalls)
	return m
}

// ResolveHit records a resolution hit for the given waterfall tier.
func (m *Metrics) ResolveHit(tier string) {
	if m == nil {
		return
	}
	m.resolveHits.WithLabelValues(tier).Inc()
}

// UpstreamRetry records one retry attempt.
func (m *Metrics) UpstreamRetry() {
	if m == nil {
		return
	}
	m.upstreamRetries.Inc()
}

// InvalidSymbol records one symbol dropped as invalid during bisection.
func (m *Metrics) InvalidSymbol() {
	if m == nil {
		return
	}
	m.invalidSymbols.Inc()
}

// UpstreamCall records one upstream request outcome.
func (m *Metrics) UpstreamCall(outcome string) {
	if m == nil {
		return
	}
	m.upstreamCalls.WithLabelValues(outcome).Inc()
}

var defaultMetrics *Metrics

// SetMetrics overrides the global metrics sink. A nil value disables
// recording.
func SetMetrics(m *Metrics) {
	defaultMetrics = m
}

// Stats returns the current global metrics sink, which may be nil.
func Stats() *Metrics {
	return defaultMetrics
}

// Package config centralises runtime configuration helpers for QuoteGate services.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment identifies the runtime environment where QuoteGate operates.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// GrowwSettings aggregates transport and credential configuration for the
// upstream Groww API.
type GrowwSettings struct {
	AccessToken    string
	QuoteBaseURL   string
	InstrumentsURL string
	HTTPTimeout    time.Duration
}

// RetrySettings configures the jittered exponential backoff policy applied to
// upstream calls.
type RetrySettings struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// QuoteSettings controls batch sizing and pacing for LTP fetches.
type QuoteSettings struct {
	ChunkSize      int
	Workers        int
	RequestsPerSec float64
	Burst          int
}

// ResolveSettings controls the resolution engine and the instrument universe
// snapshot cache.
type ResolveSettings struct {
	FuzzyCutoff  float64
	CacheTTL     time.Duration
	SnapshotPath string
}

// Settings contains the QuoteGate configuration tree loaded from defaults and
// overrides.
type Settings struct {
	Environment Environment
	Groww       GrowwSettings
	Retry       RetrySettings
	Quote       QuoteSettings
	Resolve     ResolveSettings
}

// Default returns the default QuoteGate configuration.
func Default() Settings {
	return Settings{
		Environment: EnvProd,
		Groww: GrowwSettings{
			AccessToken:    "",
			QuoteBaseURL:   "https://api.groww.in",
			InstrumentsURL: "https://growwapi-assets.groww.in/instruments/instrument.csv",
			HTTPTimeout:    10 * time.Second,
		},
		Retry: RetrySettings{
			BaseDelay:   250 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			MaxAttempts: 5,
		},
		Quote: QuoteSettings{
			ChunkSize:      50,
			Workers:        3,
			RequestsPerSec: 10,
			Burst:          3,
		},
		Resolve: ResolveSettings{
			FuzzyCutoff:  0.5,
			CacheTTL:     4 * time.Hour,
			SnapshotPath: filepath.Join(os.TempDir(), "quotegate-instruments.json"),
		},
	}
}

// FromEnv loads configuration values from environment variables, overriding
// defaults. Retry knobs keep the millisecond-valued names used by deployments.
func FromEnv() Settings {
	cfg := Default()
	if env := strings.TrimSpace(os.Getenv("QUOTEGATE_ENV")); env != "" {
		cfg.Environment = Environment(strings.ToLower(env))
	}

	if v := strings.TrimSpace(os.Getenv("GROWW_ACCESS_TOKEN")); v != "" {
		cfg.Groww.AccessToken = v
	}
	if v := strings.TrimSpace(os.Getenv("GROWW_QUOTE_BASE_URL")); v != "" {
		cfg.Groww.QuoteBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GROWW_INSTRUMENTS_URL")); v != "" {
		cfg.Groww.InstrumentsURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GROWW_HTTP_TIMEOUT")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.Groww.HTTPTimeout = dur
		}
	}

	if ms, ok := envInt("GROWW_RETRY_BASE_DELAY_MS"); ok && ms > 0 {
		cfg.Retry.BaseDelay = time.Duration(ms) * time.Millisecond
	}
	if ms, ok := envInt("GROWW_RETRY_MAX_DELAY_MS"); ok && ms > 0 {
		cfg.Retry.MaxDelay = time.Duration(ms) * time.Millisecond
	}
	if n, ok := envInt("GROWW_RETRY_MAX_ATTEMPTS"); ok && n > 0 {
		cfg.Retry.MaxAttempts = n
	}

	if n, ok := envInt("QUOTEGATE_QUOTE_CHUNK_SIZE"); ok && n > 0 {
		cfg.Quote.ChunkSize = n
	}
	if n, ok := envInt("QUOTEGATE_QUOTE_WORKERS"); ok && n > 0 {
		cfg.Quote.Workers = n
	}
	if v := strings.TrimSpace(os.Getenv("QUOTEGATE_QUOTE_RATE_LIMIT")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Quote.RequestsPerSec = f
		}
	}

	if v := strings.TrimSpace(os.Getenv("QUOTEGATE_FUZZY_CUTOFF")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Resolve.FuzzyCutoff = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("QUOTEGATE_CACHE_TTL")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil && dur > 0 {
			cfg.Resolve.CacheTTL = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("QUOTEGATE_CACHE_PATH")); v != "" {
		cfg.Resolve.SnapshotPath = v
	}

	return cfg
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Option mutates Settings when applied via Apply.
type Option func(*Settings)

// Apply applies the provided Option set to a copy of the base Settings.
func Apply(base Settings, opts ...Option) Settings {
	cfg := base
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEnvironment configures the top-level environment.
func WithEnvironment(env Environment) Option {
	return func(s *Settings) {
		if env != "" {
			s.Environment = env
		}
	}
}

// WithGrowwAccessToken configures the upstream API access token.
func WithGrowwAccessToken(token string) Option {
	token = strings.TrimSpace(token)
	return func(s *Settings) {
		if token != "" {
			s.Groww.AccessToken = token
		}
	}
}

// WithGrowwEndpoints overrides the quote and instrument catalog base URLs.
func WithGrowwEndpoints(quoteBaseURL, instrumentsURL string) Option {
	quoteBaseURL = strings.TrimSpace(quoteBaseURL)
	instrumentsURL = strings.TrimSpace(instrumentsURL)
	return func(s *Settings) {
		if quoteBaseURL != "" {
			s.Groww.QuoteBaseURL = quoteBaseURL
		}
		if instrumentsURL != "" {
			s.Groww.InstrumentsURL = instrumentsURL
		}
	}
}

// WithHTTPTimeout overrides the transport-level timeout for upstream calls.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(s *Settings) {
		if timeout > 0 {
			s.Groww.HTTPTimeout = timeout
		}
	}
}

// WithRetry overrides the retry policy tunables.
func WithRetry(base, max time.Duration, attempts int) Option {
	return func(s *Settings) {
		if base > 0 {
			s.Retry.BaseDelay = base
		}
		if max > 0 {
			s.Retry.MaxDelay = max
		}
		if attempts > 0 {
			s.Retry.MaxAttempts = attempts
		}
	}
}

// WithQuoteBatching overrides chunk sizing and worker concurrency for LTP
// fetches.
func WithQuoteBatching(chunkSize, workers int) Option {
	return func(s *Settings) {
		if chunkSize > 0 {
			s.Quote.ChunkSize = chunkSize
		}
		if workers > 0 {
			s.Quote.Workers = workers
		}
	}
}

// WithQuoteRateLimit overrides client-side pacing of upstream quote calls.
func WithQuoteRateLimit(requestsPerSec float64, burst int) Option {
	return func(s *Settings) {
		if requestsPerSec > 0 {
			s.Quote.RequestsPerSec = requestsPerSec
		}
		if burst > 0 {
			s.Quote.Burst = burst
		}
	}
}

// WithFuzzyCutoff overrides the fuzzy-match acceptance threshold.
func WithFuzzyCutoff(cutoff float64) Option {
	return func(s *Settings) {
		if cutoff >= 0 {
			s.Resolve.FuzzyCutoff = cutoff
		}
	}
}

// WithSnapshot overrides the universe snapshot location and time-to-live.
func WithSnapshot(path string, ttl time.Duration) Option {
	path = strings.TrimSpace(path)
	return func(s *Settings) {
		if path != "" {
			s.Resolve.SnapshotPath = path
		}
		if ttl > 0 {
			s.Resolve.CacheTTL = ttl
		}
	}
}

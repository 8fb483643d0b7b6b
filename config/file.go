package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// duration wraps time.Duration with yaml support for Go duration strings
// ("250ms", "4h") as well as bare integers interpreted as milliseconds.
type duration time.Duration

// UnmarshalYAML supports duration strings and integer milliseconds.
func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = 0
		return nil
	}
	text := strings.TrimSpace(node.Value)
	if text == "" {
		*d = 0
		return nil
	}
	if parsed, err := time.ParseDuration(text); err == nil {
		*d = duration(parsed)
		return nil
	}
	var ms int64
	if err := node.Decode(&ms); err != nil {
		return fmt.Errorf("duration: invalid value %q", node.Value)
	}
	*d = duration(time.Duration(ms) * time.Millisecond)
	return nil
}

func (d duration) std() time.Duration { return time.Duration(d) }

// fileSettings mirrors Settings for yaml decoding. Zero values leave the base
// configuration untouched.
type fileSettings struct {
	Environment string `yaml:"environment"`
	Groww       struct {
		AccessToken    string   `yaml:"accessToken"`
		QuoteBaseURL   string   `yaml:"quoteBaseUrl"`
		InstrumentsURL string   `yaml:"instrumentsUrl"`
		HTTPTimeout    duration `yaml:"httpTimeout"`
	} `yaml:"groww"`
	Retry struct {
		BaseDelay   duration `yaml:"baseDelay"`
		MaxDelay    duration `yaml:"maxDelay"`
		MaxAttempts int      `yaml:"maxAttempts"`
	} `yaml:"retry"`
	Quote struct {
		ChunkSize      int     `yaml:"chunkSize"`
		Workers        int     `yaml:"workers"`
		RequestsPerSec float64 `yaml:"requestsPerSec"`
		Burst          int     `yaml:"burst"`
	} `yaml:"quote"`
	Resolve struct {
		FuzzyCutoff  *float64 `yaml:"fuzzyCutoff"`
		CacheTTL     duration `yaml:"cacheTtl"`
		SnapshotPath string   `yaml:"snapshotPath"`
	} `yaml:"resolve"`
}

// LoadOrDefault loads settings from the yaml file at path layered over
// environment overrides. The boolean reports whether a file was found; a
// missing file is not an error.
func LoadOrDefault(path string) (Settings, bool, error) {
	base := FromEnv()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return base, false, nil
		}
		return base, false, fmt.Errorf("read config %s: %w", path, err)
	}

	var file fileSettings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, true, fmt.Errorf("parse config %s: %w", path, err)
	}

	opts := []Option{
		WithEnvironment(Environment(file.Environment)),
		WithGrowwAccessToken(file.Groww.AccessToken),
		WithGrowwEndpoints(file.Groww.QuoteBaseURL, file.Groww.InstrumentsURL),
		WithHTTPTimeout(file.Groww.HTTPTimeout.std()),
		WithRetry(file.Retry.BaseDelay.std(), file.Retry.MaxDelay.std(), file.Retry.MaxAttempts),
		WithQuoteBatching(file.Quote.ChunkSize, file.Quote.Workers),
		WithQuoteRateLimit(file.Quote.RequestsPerSec, file.Quote.Burst),
		WithSnapshot(file.Resolve.SnapshotPath, file.Resolve.CacheTTL.std()),
	}
	if file.Resolve.FuzzyCutoff != nil {
		opts = append(opts, WithFuzzyCutoff(*file.Resolve.FuzzyCutoff))
	}
	return Apply(base, opts...), true, nil
}

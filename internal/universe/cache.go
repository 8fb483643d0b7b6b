// Package universe maintains the instrument catalog snapshot with a TTL-based
// on-disk cache.
package universe

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/quantedge/quotegate/config"
	"github.com/quantedge/quotegate/errs"
	"github.com/quantedge/quotegate/internal/observability"
	"github.com/quantedge/quotegate/internal/retry"
	"github.com/quantedge/quotegate/schema"
)

// CatalogClient downloads the full instrument catalog from upstream.
type CatalogClient interface {
	FetchInstruments(ctx context.Context) ([]schema.Instrument, error)
}

type snapshot struct {
	FetchedAt   time.Time           `json:"fetched_at"`
	Instruments []schema.Instrument `json:"instruments"`
}

// Cache serves the instrument universe, refreshing from upstream when the
// in-memory copy and the on-disk snapshot are both stale. Generation
// increments on every successful refresh so downstream indices can detect
// that their view is outdated.
type Cache struct {
	client CatalogClient
	retry  retry.Policy
	path   string
	ttl    time.Duration
	now    func() time.Time

	mu          sync.Mutex
	instruments []schema.Instrument
	fetchedAt   time.Time
	gen         uint64
}

// New constructs a cache over the given catalog client.
func New(client CatalogClient, policy retry.Policy, cfg config.ResolveSettings) *Cache {
	return &Cache{
		client: client,
		retry:  policy,
		path:   cfg.SnapshotPath,
		ttl:    cfg.CacheTTL,
		now:    time.Now,
	}
}

// All returns the current instrument universe, refreshing it first if stale.
// The returned slice is shared and must not be mutated.
func (c *Cache) All(ctx context.Context) ([]schema.Instrument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.instruments) > 0 && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.instruments, nil
	}
	if err := c.refreshLocked(ctx, false); err != nil {
		if len(c.instruments) > 0 {
			observability.Log().Warn("serving stale instrument universe",
				observability.F("age", c.now().Sub(c.fetchedAt).String()),
				observability.F("error", err.Error()),
			)
			return c.instruments, nil
		}
		return nil, err
	}
	return c.instruments, nil
}

// Refresh forces a catalog reload regardless of snapshot freshness.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx, true)
}

// Generation returns a counter that increments on every successful refresh.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Cache) refreshLocked(ctx context.Context, force bool) error {
	if !force {
		if snap, ok := c.loadSnapshot(); ok {
			c.instruments = snap.Instruments
			c.fetchedAt = snap.FetchedAt
			c.gen++
			observability.Log().Info("loaded instrument universe from snapshot",
				observability.F("instruments", len(snap.Instruments)),
				observability.F("path", c.path),
			)
			return nil
		}
	}

	var fetched []schema.Instrument
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var opErr error
		fetched, opErr = c.client.FetchInstruments(ctx)
		return opErr
	})
	if err != nil {
		return err
	}
	if len(fetched) == 0 {
		return errs.New(errs.KindUpstreamUnavailable,
			errs.WithMessage("instrument catalog returned no rows"),
		)
	}

	now := c.now()
	c.instruments = fetched
	c.fetchedAt = now
	c.gen++
	c.storeSnapshot(snapshot{FetchedAt: now, Instruments: fetched})
	observability.Log().Info("refreshed instrument universe",
		observability.F("instruments", len(fetched)),
	)
	return nil
}

// loadSnapshot reads the on-disk snapshot if present and fresh. Any failure
// is a cache miss, never an error.
func (c *Cache) loadSnapshot() (snapshot, bool) {
	if c.path == "" {
		return snapshot{}, false
	}
	info, err := os.Stat(c.path)
	if err != nil {
		return snapshot{}, false
	}
	if c.now().Sub(info.ModTime()) >= c.ttl {
		return snapshot{}, false
	}

	raw, err := os.ReadFile(c.path)
	if err != nil {
		observability.Log().Warn("snapshot unreadable",
			observability.F("path", c.path),
			observability.F("error", err.Error()),
		)
		return snapshot{}, false
	}
	var snap snapshot
	if err := gojson.Unmarshal(raw, &snap); err != nil {
		observability.Log().Warn("snapshot corrupt",
			observability.F("path", c.path),
			observability.F("error", err.Error()),
		)
		return snapshot{}, false
	}
	if len(snap.Instruments) == 0 {
		return snapshot{}, false
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = info.ModTime()
	}
	if c.now().Sub(snap.FetchedAt) >= c.ttl {
		return snapshot{}, false
	}
	return snap, true
}

// storeSnapshot writes the snapshot atomically via rename. Persistence is
// best effort; a write failure only costs the next process a re-download.
func (c *Cache) storeSnapshot(snap snapshot) {
	if c.path == "" {
		return
	}
	raw, err := gojson.Marshal(snap)
	if err != nil {
		observability.Log().Warn("snapshot encode failed",
			observability.F("error", err.Error()),
		)
		return
	}
	tmp := filepath.Join(filepath.Dir(c.path), "."+filepath.Base(c.path)+".tmp")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		observability.Log().Warn("snapshot write failed",
			observability.F("path", tmp),
			observability.F("error", err.Error()),
		)
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		observability.Log().Warn("snapshot rename failed",
			observability.F("path", c.path),
			observability.F("error", err.Error()),
		)
		_ = os.Remove(tmp)
	}
}

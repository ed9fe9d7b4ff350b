package catalog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/adalundhe/meshsim/core/logging"
)

// DefaultListingTTL is how long a snapshot is served before a re-scan.
const DefaultListingTTL = 300 * time.Second

// Lister produces a fresh ordered listing.
type Lister interface {
	Scan(ctx context.Context) ([]ModelDescriptor, error)
}

// ListerFunc adapts a function to the Lister interface.
type ListerFunc func(ctx context.Context) ([]ModelDescriptor, error)

// Scan calls f(ctx).
func (f ListerFunc) Scan(ctx context.Context) ([]ModelDescriptor, error) {
	return f(ctx)
}

// ListingConfig configures a ListingCache.
type ListingConfig struct {
	TTL time.Duration

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// ListingCache serves one snapshot until it is older than the TTL, then
// re-scans synchronously on the next access. Replacement is a pointer swap
// made after the scan completes, so readers never see a partial listing.
type ListingCache struct {
	lister Lister
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	current atomic.Pointer[Snapshot]
	stale   atomic.Bool
	group   singleflight.Group
	scans   atomic.Int64
}

// NewListingCache creates a ListingCache over lister.
func NewListingCache(lister Lister, cfg ListingConfig, logger *slog.Logger) *ListingCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultListingTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ListingCache{
		lister: lister,
		ttl:    cfg.TTL,
		now:    cfg.Now,
		logger: logging.OrDefault(logger),
	}
}

// Get returns the current snapshot, re-scanning first when there is none,
// when it is older than the TTL, or when it was invalidated. Concurrent
// callers that find the snapshot expired share a single scan. The shared
// scan is detached from any one caller's cancellation; each caller stops
// waiting when its own ctx is done.
func (c *ListingCache) Get(ctx context.Context) (*Snapshot, error) {
	if snap := c.fresh(); snap != nil {
		return snap, nil
	}

	scanCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("listing", func() (any, error) {
		if snap := c.fresh(); snap != nil {
			return snap, nil
		}
		return c.refresh(scanCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// fresh returns the held snapshot if it may still be served.
func (c *ListingCache) fresh() *Snapshot {
	snap := c.current.Load()
	if snap == nil || c.stale.Load() {
		return nil
	}
	if snap.Age(c.now()) > c.ttl {
		return nil
	}
	return snap
}

func (c *ListingCache) refresh(ctx context.Context) (*Snapshot, error) {
	// Clear before scanning so an invalidation that races the scan forces
	// another one.
	c.stale.Store(false)

	models, err := c.lister.Scan(ctx)
	if err != nil {
		c.stale.Store(true)
		c.logger.Warn("listing refresh failed", "error", err)
		return nil, err
	}

	snap := NewSnapshot(models, c.now())
	c.current.Store(snap)
	c.scans.Add(1)
	c.logger.Info("listing refreshed", "models", snap.Len(), "ttl", c.ttl)
	return snap, nil
}

// Invalidate marks the held snapshot stale. The next Get re-scans; the old
// snapshot stays valid for callers that already hold it.
func (c *ListingCache) Invalidate() {
	c.stale.Store(true)
}

// Peek returns the held snapshot without refreshing. It may be nil.
func (c *ListingCache) Peek() *Snapshot {
	return c.current.Load()
}

// Scans returns the number of completed scans.
func (c *ListingCache) Scans() int64 {
	return c.scans.Load()
}

// TTL returns the configured time-to-live.
func (c *ListingCache) TTL() time.Duration {
	return c.ttl
}

package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type siteFeeEntry struct {
	fee       *float64
	fetchedAt time.Time
}

// SiteFeeCache wraps a SiteFeeProvider with a TTL cache. Concurrent misses
// for the same site share one upstream call. Errors are not cached.
type SiteFeeCache struct {
	next  SiteFeeProvider
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[uuid.UUID]siteFeeEntry
}

// NewSiteFeeCache caches next for ttl. A ttl of zero or less disables caching.
func NewSiteFeeCache(next SiteFeeProvider, ttl time.Duration, opts ...Option) *SiteFeeCache {
	o := buildOptions(opts)
	return &SiteFeeCache{
		next:    next,
		ttl:     ttl,
		now:     o.now,
		entries: make(map[uuid.UUID]siteFeeEntry),
	}
}

// FeePerDiver implements SiteFeeProvider.
func (c *SiteFeeCache) FeePerDiver(ctx context.Context, siteID uuid.UUID) (*float64, error) {
	if c.ttl <= 0 {
		return c.next.FeePerDiver(ctx, siteID)
	}

	c.mu.RLock()
	e, ok := c.entries[siteID]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.fee, nil
	}

	v, err, _ := c.group.Do(siteID.String(), func() (any, error) {
		fee, err := c.next.FeePerDiver(ctx, siteID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[siteID] = siteFeeEntry{fee: fee, fetchedAt: c.now()}
		c.mu.Unlock()
		return fee, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*float64), nil
}

package anchor

import (
	"context"
	"sync"
	"time"

	"github.com/provenonce/beats/internal/ledger"
	"github.com/provenonce/beats/internal/models"
)

// DefaultCacheTTL bounds how stale a served anchor may be.
const DefaultCacheTTL = 10 * time.Second

// Cache is a single-slot read-through cache in front of ReadLatest.
// Concurrent readers within the TTL share one snapshot; on expiry the
// next caller refreshes. A few concurrent refreshes after expiry are
// acceptable, so no stampede guard is held across the ledger call.
type Cache struct {
	lg  ledger.Ledger
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	tip       *models.GlobalAnchor
	fetchedAt time.Time
}

// NewCache wraps a ledger with a TTL anchor cache.
func NewCache(lg ledger.Ledger, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{lg: lg, ttl: ttl, now: time.Now}
}

// Latest returns the canonical tip, served from the cache slot while it
// is fresh. The returned anchor is shared and must not be mutated.
func (c *Cache) Latest(ctx context.Context) (*models.GlobalAnchor, error) {
	c.mu.Lock()
	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl {
		tip := c.tip
		c.mu.Unlock()
		return tip, nil
	}
	c.mu.Unlock()

	tip, err := ReadLatest(ctx, c.lg)
	if err != nil {
		return nil, err
	}
	// A cold start (no anchor yet) is not cached, so the first anchor
	// is served as soon as it lands.
	if tip == nil {
		return nil, nil
	}

	c.mu.Lock()
	c.tip = tip
	c.fetchedAt = c.now()
	c.mu.Unlock()
	return tip, nil
}

// Invalidate drops the cached slot so the next read hits the ledger.
// Called after publishing a new anchor.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.tip = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

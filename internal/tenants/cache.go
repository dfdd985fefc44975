package tenants

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	tenant  Tenant
	expires time.Time
}

// Cache is a read-through, TTL-bounded tenant cache in front of a Lookup. Concurrent
// misses for the same key share one load. Lookup errors are never cached.
type Cache struct {
	next   Lookup
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewCache(log *slog.Logger, next Lookup, ttl time.Duration) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		logger:  log.With(slog.String("service", "tenant_cache")),
		entries: map[string]cacheEntry{},
	}
}

func (c *Cache) GetByHelpdeskAccount(ctx context.Context, accountID int64) (Tenant, error) {
	return c.get("account:"+strconv.FormatInt(accountID, 10), func() (Tenant, error) {
		return c.next.GetByHelpdeskAccount(ctx, accountID)
	})
}

func (c *Cache) GetByID(ctx context.Context, tenantID string) (Tenant, error) {
	return c.get("id:"+tenantID, func() (Tenant, error) {
		return c.next.GetByID(ctx, tenantID)
	})
}

// Invalidate drops every cached entry for the tenant.
func (c *Cache) Invalidate(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if entry.tenant.ID == tenantID {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) get(key string, load func() (Tenant, error)) (Tenant, error) {
	if c.ttl <= 0 {
		return load()
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expires) {
		return entry.tenant, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		tenant, err := load()
		if err != nil {
			return Tenant{}, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{tenant: tenant, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return tenant, nil
	})
	if err != nil {
		return Tenant{}, err
	}
	if shared {
		c.logger.Debug("tenant load shared", slog.String("key", key))
	}
	return v.(Tenant), nil
}

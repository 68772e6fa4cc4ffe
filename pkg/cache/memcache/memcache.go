// Package memcache is an in-process cache.Store backed by ttlcache.
package memcache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/iota-uz/tenantcrud/pkg/cache"
)

type Cache struct {
	items *ttlcache.Cache[string, []byte]
}

// New creates a cache whose entries expire after ttl unless Set overrides it.
// Call Start to run background expiry and Close to stop it.
func New(ttl time.Duration) *Cache {
	return &Cache{
		items: ttlcache.New(
			ttlcache.WithTTL[string, []byte](ttl),
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		),
	}
}

func (c *Cache) Start() {
	go c.items.Start()
}

func (c *Cache) Close() {
	c.items.Stop()
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := c.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false, nil
	}
	v := item.Value()
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	c.items.Set(key, stored, ttl)
	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.items.Delete(key)
	}
	return nil
}

var _ cache.ExpiryNotifier = (*Cache)(nil)

// OnExpire registers fn for entries dropped by expiry or capacity. Explicit
// deletes are not reported. fn runs on its own goroutine.
func (c *Cache) OnExpire(fn func(key string)) func() {
	return c.items.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, []byte]) {
		if reason == ttlcache.EvictionReasonDeleted {
			return
		}
		fn(item.Key())
	})
}

func (c *Cache) Len() int {
	return c.items.Len()
}

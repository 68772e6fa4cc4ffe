package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Indexed gives a Store without native prefix deletion a secondary index of
// live keys per namespace, so namespaces can be evicted explicitly.
type Indexed struct {
	store     Store
	namespace func(key string) string

	mu    sync.Mutex
	index map[string]map[string]struct{}
}

var _ Cache = (*Indexed)(nil)

// NewIndexed wraps store. namespace returns the namespace of a key or "" when
// the key is not tracked; nil means OrganizationNamespace. When store is an
// ExpiryNotifier, entries it drops by itself leave the index too.
func NewIndexed(store Store, namespace func(key string) string) *Indexed {
	if namespace == nil {
		namespace = OrganizationNamespace
	}
	c := &Indexed{
		store:     store,
		namespace: namespace,
		index:     make(map[string]map[string]struct{}),
	}
	if n, ok := store.(ExpiryNotifier); ok {
		n.OnExpire(c.forget)
	}
	return c
}

// Tracked returns how many keys the index holds.
func (c *Indexed) Tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, set := range c.index {
		n += len(set)
	}
	return n
}

// forget drops key from the index unless it was stored again in the
// meantime. The store lookup runs under mu so a concurrent Set cannot be
// unindexed.
func (c *Indexed) forget(key string) {
	ns := c.namespace(key)
	if ns == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.index[ns]
	if !ok {
		return
	}
	if _, live, err := c.store.Get(context.Background(), key); err == nil && live {
		return
	}
	c.unindex(ns, set, key)
}

func (c *Indexed) unindex(ns string, set map[string]struct{}, key string) {
	delete(set, key)
	if len(set) == 0 {
		delete(c.index, ns)
	}
}

func (c *Indexed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.store.Get(ctx, key)
}

func (c *Indexed) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	ns := c.namespace(key)
	if ns == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	keys, ok := c.index[ns]
	if !ok {
		keys = make(map[string]struct{})
		c.index[ns] = keys
	}
	keys[key] = struct{}{}
	return nil
}

func (c *Indexed) Delete(ctx context.Context, keys ...string) error {
	if err := c.store.Delete(ctx, keys...); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		ns := c.namespace(key)
		if set, ok := c.index[ns]; ok {
			c.unindex(ns, set, key)
		}
	}
	return nil
}

// DeleteByPrefix removes every indexed key starting with prefix. Keys that
// never had a namespace are not reachable this way.
func (c *Indexed) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	c.mu.Lock()
	var keys []string
	for ns, set := range c.index {
		if !strings.HasPrefix(ns, prefix) && !strings.HasPrefix(prefix, ns) {
			continue
		}
		for key := range set {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
	}
	c.mu.Unlock()

	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

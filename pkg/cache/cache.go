// Package cache defines the key-value collaborator used for read-through
// caching and the key layout shared by the store and the invalidator.
package cache

import (
	"context"
	"time"
)

// Store is the minimal backend: exact-key get/set/delete.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Cache adds prefix-wildcard deletion on top of Store.
type Cache interface {
	Store
	// DeleteByPrefix removes every key starting with prefix and returns the
	// number of removed keys.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}

// ExpiryNotifier is implemented by stores that drop entries on their own,
// through TTL expiry or capacity limits. fn receives the key of every such
// entry; the returned func unsubscribes it.
type ExpiryNotifier interface {
	OnExpire(fn func(key string)) func()
}

package memcache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/tenantcrud/pkg/cache"
)

func TestCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := New(time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)

	require.NoError(t, c.Delete(ctx, "k", "missing"))
	_, ok, _ = c.Get(ctx, "k")
	require.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := New(time.Minute)
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIndexed_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	keys := cache.Keys{Collection: "projects"}
	c := cache.NewIndexed(New(time.Minute), nil)

	require.NoError(t, c.Set(ctx, keys.Paged("org-a", "p1"), []byte("1"), 0))
	require.NoError(t, c.Set(ctx, keys.Paged("org-a", "p2"), []byte("2"), 0))
	require.NoError(t, c.Set(ctx, keys.Paged("org-b", "p1"), []byte("3"), 0))
	require.NoError(t, c.Set(ctx, keys.Count("org-a"), []byte("4"), 0))

	n, err := c.DeleteByPrefix(ctx, keys.PagedPrefix("org-a"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, ok, _ := c.Get(ctx, keys.Paged("org-a", "p1"))
	require.False(t, ok)
	_, ok, _ = c.Get(ctx, keys.Paged("org-b", "p1"))
	require.True(t, ok)
	_, ok, _ = c.Get(ctx, keys.Count("org-a"))
	require.True(t, ok)

	n, err = c.DeleteByPrefix(ctx, keys.PagedPrefix("org-a"))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestIndexed_ForgetsExpiredKeys(t *testing.T) {
	ctx := context.Background()
	keys := cache.Keys{Collection: "projects"}
	mc := New(time.Minute)
	mc.Start()
	t.Cleanup(mc.Close)
	c := cache.NewIndexed(mc, nil)

	for i := range 200 {
		require.NoError(t, c.Set(ctx, keys.Paged("org-a", fmt.Sprintf("p%d", i)), []byte("x"), time.Millisecond))
	}
	require.NoError(t, c.Set(ctx, keys.Paged("org-a", "live"), []byte("y"), time.Minute))

	require.Eventually(t, func() bool { return mc.Len() == 1 && c.Tracked() == 1 }, 2*time.Second, 10*time.Millisecond)

	n, err := c.DeleteByPrefix(ctx, keys.PagedPrefix("org-a"))
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Zero(t, c.Tracked())
}

func TestIndexed_KeepsKeysStoredAgain(t *testing.T) {
	ctx := context.Background()
	keys := cache.Keys{Collection: "projects"}
	mc := New(time.Minute)
	mc.Start()
	t.Cleanup(mc.Close)
	c := cache.NewIndexed(mc, nil)
	key := keys.Paged("org-a", "p1")

	require.NoError(t, c.Set(ctx, key, []byte("old"), time.Millisecond))
	require.Eventually(t, func() bool { return mc.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Set(ctx, key, []byte("new"), time.Minute))

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, c.Tracked())
	n, err := c.DeleteByPrefix(ctx, keys.PagedPrefix("org-a"))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

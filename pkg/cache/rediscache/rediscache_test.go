package rediscache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/tenantcrud/pkg/cache"
)

func TestEscapeGlob(t *testing.T) {
	require.Equal(t, `projects:paged:Organization:a\*b\?\[c\]:`, escapeGlob("projects:paged:Organization:a*b?[c]:"))
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions("localhost:6379")
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)

	opts, err = parseOptions("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, 2, opts.DB)

	_, err = parseOptions("  ")
	require.Error(t, err)
}

func TestCache_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	keys := cache.Keys{Collection: "test-" + uuid.NewString()}
	require.NoError(t, c.Set(ctx, keys.Count("o1"), []byte("3"), time.Minute))
	require.NoError(t, c.Set(ctx, keys.Paged("o1", "a"), []byte("[]"), time.Minute))
	require.NoError(t, c.Set(ctx, keys.Paged("o1", "b"), []byte("[]"), time.Minute))
	require.NoError(t, c.Set(ctx, keys.Paged("o2", "a"), []byte("[]"), time.Minute))

	n, err := c.DeleteByPrefix(ctx, keys.PagedPrefix("o1"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, ok, err := c.Get(ctx, keys.Paged("o2", "a"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Delete(ctx, keys.Count("o1"), keys.Paged("o2", "a")))
	_, ok, err = c.Get(ctx, keys.Count("o1"))
	require.NoError(t, err)
	require.False(t, ok)
}

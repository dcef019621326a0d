package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_, ok := c.Get("extract", "RX 570 4Go Asus Strix")
	require.False(t, ok)

	c.Set("extract", "RX 570 4Go Asus Strix", "RX,570")
	got, ok := c.Get("extract", "RX 570 4Go Asus Strix")
	require.True(t, ok)
	require.Equal(t, "RX,570", got)

	_, ok = c.Get("match", "RX 570 4Go Asus Strix")
	require.False(t, ok, "kinds must not share entries")
}

func TestCacheOverwrite(t *testing.T) {
	c := newTestCache(t, time.Hour)

	c.Set("extract", "title", "GTX,970")
	c.Set("extract", "title", "")

	got, ok := c.Get("extract", "title")
	require.True(t, ok)
	require.Equal(t, "", got)
}

func TestCacheExpires(t *testing.T) {
	c := newTestCache(t, time.Minute)

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("extract", "title", "RTX,3070")

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok := c.Get("extract", "title")
	require.False(t, ok)
}

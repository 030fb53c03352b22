package avatar

import (
	"os"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// ThumbnailCache keeps normalized avatar bytes in memory for display, keyed
// by member ID. Entries are invalidated whenever a member's avatar path
// changes; the pipeline only reports that a new asset exists.
type ThumbnailCache struct {
	cache *ttlcache.Cache[int, []byte]
}

// NewThumbnailCache creates a thumbnail cache whose entries expire after ttl.
func NewThumbnailCache(ttl time.Duration) *ThumbnailCache {
	cache := ttlcache.New[int, []byte](
		ttlcache.WithTTL[int, []byte](ttl),
	)
	go cache.Start()
	return &ThumbnailCache{cache: cache}
}

// Get returns the cached thumbnail bytes for a member, or nil when absent.
func (t *ThumbnailCache) Get(memberID int) []byte {
	item := t.cache.Get(memberID)
	if item == nil {
		return nil
	}
	return item.Value()
}

// Has reports whether a thumbnail is cached for the member.
func (t *ThumbnailCache) Has(memberID int) bool {
	return t.cache.Has(memberID)
}

// Load reads the avatar file at path into the cache for the member.
func (t *ThumbnailCache) Load(memberID int, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	t.cache.Set(memberID, data, ttlcache.DefaultTTL)
	return nil
}

// Invalidate removes the member's cached thumbnail.
func (t *ThumbnailCache) Invalidate(memberID int) {
	t.cache.Delete(memberID)
}

// Stop halts the cache's expiry loop.
func (t *ThumbnailCache) Stop() {
	t.cache.Stop()
}

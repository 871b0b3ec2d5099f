package embedder

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is an in-memory LRU of embeddings keyed by content hash. Ingestion
// repeats facet phrases across chunks, so the same text is embedded over and
// over; the cache absorbs those repeats. It is process-scoped state built by
// the caller and passed into the pipeline and query engine, with an explicit
// Clear lifecycle for tests.
type Cache struct {
	cache  *lru.Cache[string, *Embedding]
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000 // Default: cache 10k embeddings
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		// Should never happen with positive size, but fallback to default
		cache, _ = lru.New[string, *Embedding](10000)
	}
	return &Cache{
		cache: cache,
	}
}

// Get retrieves a deep copy of an embedding from cache
// Returns a copy to prevent caller mutations from affecting cached values
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.cache.Get(hash)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)

	vectorCopy := make([]float32, len(emb.Vector))
	copy(vectorCopy, emb.Vector)

	return &Embedding{
		Vector:    vectorCopy,
		Dimension: emb.Dimension,
		Provider:  emb.Provider,
		Model:     emb.Model,
		Hash:      emb.Hash,
	}, true
}

// Set stores an embedding in cache with automatic LRU eviction
func (c *Cache) Set(hash string, emb *Embedding) {
	c.cache.Add(hash, emb)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Stats reports entry count and cumulative hit/miss counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Entries: c.cache.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Clear empties the cache and resets the counters
func (c *Cache) Clear() {
	c.cache.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// Package embedder generates vector embeddings for text via pluggable
// providers.
//
// Three providers are available:
//   - openai: OpenAI embeddings API (text-embedding-3-small, 1536 dims)
//   - jina: Jina AI embeddings API (jina-embeddings-v3, 1024 dims)
//   - local: deterministic offline embeddings for tests and keyless runs
//
// All providers return L2-normalized vectors, so dot product over two
// embeddings is their cosine similarity.
//
// Providers perform no retries. A failed API call returns an error wrapping
// ErrProviderFailed and the caller decides whether and how to retry; the
// ingestion pipeline wraps every embedding call in capped exponential
// backoff.
//
// An optional Cache (LRU keyed by content hash) is shared between the write
// and read paths:
//
//	cache := embedder.NewCache(10000)
//	emb, err := embedder.NewFromEnv(cache)
package embedder

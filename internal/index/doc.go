// Package index implements embedding-backed nearest-neighbor indices over
// text values, one per facet plus one over chunk code.
//
// Each Index maps a text value to a posting: the set of chunk ids the value
// was indexed for. Putting an existing value merges source ids instead of
// creating a duplicate entry. Retrieval embeds the query and ranks entries
// by dot product over L2-normalized vectors.
//
// Persistence is a directory per index holding manifest.json, entries.jsonl
// and vectors.f32 (little-endian float32, row-major), loaded on Open and
// written by Flush.
//
// Indices never retry embedding-provider failures and are not safe for
// concurrent mutation; both are caller obligations enforced by the
// ingestion pipeline's single-writer policy.
package index

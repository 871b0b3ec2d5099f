package index

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dkeller/facetidx/internal/embedder"
)

// Errors returned by index operations
var (
	ErrUnknownFacet      = errors.New("unknown facet")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmptyValue        = errors.New("index value cannot be empty")
)

// TextBlock is one index entry: a text value with the ids of every chunk it
// was indexed for (its posting).
type TextBlock struct {
	Value     string   `json:"value"`
	SourceIDs []string `json:"sourceIds"`
}

// Scored pairs a TextBlock with its similarity score for a query.
type Scored struct {
	Block TextBlock
	Score float64
}

// Index is an embedding-backed nearest-neighbor index over text values.
//
// Mutation is not safe under concurrency: callers must guarantee at most one
// in-flight Put per Index. Reads are safe to run concurrently with each
// other as long as no writer is active.
type Index struct {
	dir      string
	embedder embedder.Embedder

	dim     int
	entries []TextBlock
	vectors [][]float32
	byValue map[string]int

	dirty bool
}

// Open loads the index stored at dir, or initializes an empty one when no
// persisted state exists.
func Open(dir string, emb embedder.Embedder) (*Index, error) {
	idx := &Index{
		dir:      dir,
		embedder: emb,
		dim:      emb.Dimension(),
		byValue:  make(map[string]int),
	}
	if err := idx.load(); err != nil {
		return nil, fmt.Errorf("load index %s: %w", dir, err)
	}
	return idx, nil
}

// Len returns the number of distinct values in the index.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Put inserts value with the given source ids. Repeated insertion of an
// identical value merges source ids into the existing entry's posting and
// does not re-embed. Embedding errors propagate untouched; retry is the
// caller's job.
func (idx *Index) Put(ctx context.Context, value string, sourceIDs []string) error {
	if value == "" {
		return ErrEmptyValue
	}

	if pos, ok := idx.byValue[value]; ok {
		merged := mergeIDs(idx.entries[pos].SourceIDs, sourceIDs)
		if len(merged) != len(idx.entries[pos].SourceIDs) {
			idx.entries[pos].SourceIDs = merged
			idx.dirty = true
		}
		return nil
	}

	emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: value})
	if err != nil {
		return err
	}
	if len(emb.Vector) != idx.dim {
		return fmt.Errorf("%w: got %d want %d", ErrDimensionMismatch, len(emb.Vector), idx.dim)
	}

	idx.entries = append(idx.entries, TextBlock{
		Value:     value,
		SourceIDs: mergeIDs(nil, sourceIDs),
	})
	idx.vectors = append(idx.vectors, emb.Vector)
	idx.byValue[value] = len(idx.entries) - 1
	idx.dirty = true
	return nil
}

// NearestNeighbors embeds the query and returns up to maxHits entries with
// similarity >= minScore, best first. An empty index yields an empty result,
// not an error.
func (idx *Index) NearestNeighbors(ctx context.Context, query string, maxHits int, minScore float64) ([]Scored, error) {
	if len(idx.entries) == 0 || maxHits <= 0 {
		return []Scored{}, nil
	}

	emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, err
	}

	hits := make([]Scored, 0, maxHits)
	for i := range idx.vectors {
		score := dot(idx.vectors[i], emb.Vector)
		if score < minScore {
			continue
		}
		hits = append(hits, Scored{Block: copyBlock(idx.entries[i]), Score: score})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	return hits, nil
}

// Entries returns a fresh copy of all index entries. The copy is finite and
// independent per call; callers may range over it repeatedly.
func (idx *Index) Entries() []TextBlock {
	out := make([]TextBlock, len(idx.entries))
	for i := range idx.entries {
		out[i] = copyBlock(idx.entries[i])
	}
	return out
}

// Clear discards all entries and removes persisted state.
func (idx *Index) Clear() error {
	idx.entries = nil
	idx.vectors = nil
	idx.byValue = make(map[string]int)
	idx.dirty = false
	return idx.removePersisted()
}

// dot computes the dot product of two equal-length vectors. Vectors are
// L2-normalized by the embedder, so this is cosine similarity.
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func copyBlock(b TextBlock) TextBlock {
	ids := make([]string, len(b.SourceIDs))
	copy(ids, b.SourceIDs)
	return TextBlock{Value: b.Value, SourceIDs: ids}
}

// mergeIDs appends ids from add to base, skipping duplicates, preserving
// first-seen order.
func mergeIDs(base, add []string) []string {
	seen := make(map[string]struct{}, len(base)+len(add))
	out := make([]string, 0, len(base)+len(add))
	for _, id := range base {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range add {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

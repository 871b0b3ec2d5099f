// Package fusion merges nearest-neighbor results from the facet indices and
// the code index into one ranked list of chunk ids.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dkeller/facetidx/internal/index"
	"github.com/dkeller/facetidx/internal/store"
	"github.com/dkeller/facetidx/pkg/types"
)

// Errors returned by the engine
var (
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// overfetch widens each per-index retrieval so the fused ranking has enough
// candidates to fill maxHits after merging.
const overfetch = 5

// IndexScores holds one index's intermediate hits for verbose reporting.
type IndexScores struct {
	Index string
	Hits  []index.Scored
}

// Result is a fused query answer.
type Result struct {
	Hits []types.Hit
	// PerIndex is populated only by QueryVerbose.
	PerIndex []IndexScores
	// Degraded lists indices that failed and were excluded from fusion.
	Degraded []string
}

// Engine is the read path: it fans a query out across the indices and fuses
// the scores.
type Engine struct {
	indices *index.Set
	store   *store.ChunkStore
}

// New creates a query engine over an index set and chunk store.
func New(indices *index.Set, st *store.ChunkStore) *Engine {
	return &Engine{indices: indices, store: st}
}

// Query runs text against the four facet indices and the code index and
// returns up to maxHits fused hits with score >= minScore per underlying
// match.
//
// Facet scores accumulate per chunk id: a chunk matching three phrases
// outranks a chunk matching one at the same per-match score. A code-index
// hit then assigns (overwrites) its score for that chunk id.
func (e *Engine) Query(ctx context.Context, text string, maxHits int, minScore float64) (*Result, error) {
	return e.query(ctx, text, maxHits, minScore, false)
}

// QueryVerbose is Query plus the per-index intermediate scores.
func (e *Engine) QueryVerbose(ctx context.Context, text string, maxHits int, minScore float64) (*Result, error) {
	return e.query(ctx, text, maxHits, minScore, true)
}

func (e *Engine) query(ctx context.Context, text string, maxHits int, minScore float64, verbose bool) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	if maxHits <= 0 {
		maxHits = 1
	}

	fetch := maxHits * overfetch
	result := &Result{}
	scores := make(map[string]float64)

	// The facet queries are read-only, so they run concurrently. The
	// accumulator is shared and mutex-guarded; fusion waits for every
	// index before ranking.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range index.QueryFacets {
		g.Go(func() error {
			hits, err := e.indices.Facet(f).NearestNeighbors(gctx, text, fetch, minScore)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Degraded, not failed: remaining indices still
				// contribute.
				log.Printf("query: %s index unavailable: %v", f, err)
				result.Degraded = append(result.Degraded, f.String())
				return nil
			}
			for _, hit := range hits {
				for _, id := range hit.Block.SourceIDs {
					scores[id] += hit.Score
				}
			}
			if verbose {
				result.PerIndex = append(result.PerIndex, IndexScores{Index: f.String(), Hits: hits})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Code index applies after the facets: its score replaces whatever the
	// facets accumulated for that chunk.
	codeHits, err := e.indices.Code().NearestNeighbors(ctx, text, fetch, minScore)
	if err != nil {
		log.Printf("query: code index unavailable: %v", err)
		result.Degraded = append(result.Degraded, "code")
	} else {
		for _, hit := range codeHits {
			for _, id := range hit.Block.SourceIDs {
				scores[id] = hit.Score
			}
		}
		if verbose {
			result.PerIndex = append(result.PerIndex, IndexScores{Index: "code", Hits: codeHits})
		}
	}

	if len(result.Degraded) == len(index.QueryFacets)+1 {
		return nil, fmt.Errorf("all indices unavailable")
	}

	result.Hits = rank(scores, maxHits)
	return result, nil
}

// rank converts the accumulator into a sorted, truncated hit list. Ties
// break on chunk id for deterministic output.
func rank(scores map[string]float64, maxHits int) []types.Hit {
	hits := make([]types.Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, types.Hit{Item: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Item < hits[j].Item
	})
	if len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	return hits
}

// Rendered is a hit joined with its stored chunk for display. Missing
// chunks (store/index drift) are reported per-hit, never fatal to the
// query.
type Rendered struct {
	Hit   types.Hit
	Chunk *types.Chunk
	Err   error
}

// Render fetches the chunk and its stored documentation for each hit.
func (e *Engine) Render(hits []types.Hit) []Rendered {
	out := make([]Rendered, 0, len(hits))
	for _, hit := range hits {
		chunk, err := e.store.Get(hit.Item)
		out = append(out, Rendered{Hit: hit, Chunk: chunk, Err: err})
	}
	return out
}

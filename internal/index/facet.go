package index

import (
	"fmt"

	"github.com/dkeller/facetidx/pkg/types"
)

// Facet identifies one of the five semantic dimensions a chunk is indexed
// under. Using a closed enum with a fixed table keeps facet dispatch
// exhaustive at compile time instead of going through stringly-typed field
// lookups.
type Facet int

const (
	FacetSummaries Facet = iota
	FacetKeywords
	FacetTopics
	FacetGoals
	FacetDependencies
)

// Facets lists all facets in canonical order.
var Facets = []Facet{FacetSummaries, FacetKeywords, FacetTopics, FacetGoals, FacetDependencies}

// QueryFacets are the facets whose scores accumulate during query fusion.
// Summaries are populated at ingestion but fused queries read the four
// phrase facets plus the code index.
var QueryFacets = []Facet{FacetKeywords, FacetTopics, FacetGoals, FacetDependencies}

// String returns the facet name.
func (f Facet) String() string {
	switch f {
	case FacetSummaries:
		return "summaries"
	case FacetKeywords:
		return "keywords"
	case FacetTopics:
		return "topics"
	case FacetGoals:
		return "goals"
	case FacetDependencies:
		return "dependencies"
	default:
		return fmt.Sprintf("facet(%d)", int(f))
	}
}

// Dir returns the on-disk directory name for the facet.
func (f Facet) Dir() string {
	return f.String()
}

// Extract returns the phrases this facet draws from a LineDoc.
func (f Facet) Extract(doc *types.LineDoc) []string {
	switch f {
	case FacetSummaries:
		if doc.Comment == "" {
			return nil
		}
		return []string{doc.Comment}
	case FacetKeywords:
		return doc.Keywords
	case FacetTopics:
		return doc.Topics
	case FacetGoals:
		return doc.Goals
	case FacetDependencies:
		return doc.Dependencies
	default:
		return nil
	}
}

// ParseFacet resolves a facet by name.
func ParseFacet(name string) (Facet, error) {
	for _, f := range Facets {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFacet, name)
}

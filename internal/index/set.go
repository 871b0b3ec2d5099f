package index

import (
	"fmt"
	"path/filepath"

	"github.com/dkeller/facetidx/internal/embedder"
)

// Set bundles the five facet indices and the code index under one root
// directory. Each index lives in its own subdirectory (summaries/,
// keywords/, topics/, goals/, dependencies/, code/).
type Set struct {
	facets map[Facet]*Index
	code   *Index
}

// OpenSet opens or initializes all indices under root. All indices share
// one embedder (and therefore its cache).
func OpenSet(root string, emb embedder.Embedder) (*Set, error) {
	set := &Set{facets: make(map[Facet]*Index, len(Facets))}
	for _, f := range Facets {
		idx, err := Open(filepath.Join(root, f.Dir()), emb)
		if err != nil {
			return nil, fmt.Errorf("open %s index: %w", f, err)
		}
		set.facets[f] = idx
	}
	code, err := Open(filepath.Join(root, "code"), emb)
	if err != nil {
		return nil, fmt.Errorf("open code index: %w", err)
	}
	set.code = code
	return set, nil
}

// Facet returns the index for one facet.
func (s *Set) Facet(f Facet) *Index {
	return s.facets[f]
}

// Code returns the code-embedding index (chunk id -> code text).
func (s *Set) Code() *Index {
	return s.code
}

// Flush persists every index with pending mutations.
func (s *Set) Flush() error {
	for _, f := range Facets {
		if err := s.facets[f].Flush(); err != nil {
			return fmt.Errorf("flush %s index: %w", f, err)
		}
	}
	if err := s.code.Flush(); err != nil {
		return fmt.Errorf("flush code index: %w", err)
	}
	return nil
}

// Clear wipes every index, in memory and on disk.
func (s *Set) Clear() error {
	for _, f := range Facets {
		if err := s.facets[f].Clear(); err != nil {
			return fmt.Errorf("clear %s index: %w", f, err)
		}
	}
	return s.code.Clear()
}

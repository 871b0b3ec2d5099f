// Package types provides shared type definitions for the facetidx indexing core.
//
// This package defines domain types used across the ingestion pipeline and the
// query fusion engine: chunks, blobs, line-level documentation, and search hits.
//
// # Core Types
//
// Chunk represents a named, line-ranged unit of a source file (one function,
// one class) that is independently indexable and displayable:
//
//	chunk := &types.Chunk{
//	    ID:       "src/math.ts#fn foo",
//	    Filename: "src/math.ts",
//	    TreeName: "function_declaration",
//	    Blobs:    []types.Blob{{Start: 12, Lines: body}},
//	}
//
// A Blob is a contiguous line range belonging to a chunk. Breadcrumb blobs are
// non-content marker lines and never receive documentation comments.
//
// LineDoc carries the documenter output for one source line: a natural-language
// comment plus keyword/topic/goal/dependency phrases. A LineDoc attaches to
// every chunk holding a non-breadcrumb blob whose range contains its line, so
// one LineDoc may belong to several overlapping chunks.
package types

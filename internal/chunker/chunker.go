// Package chunker defines the boundary to the external chunking process that
// splits source files into named, line-ranged chunks.
package chunker

import (
	"context"
	"errors"

	"github.com/dkeller/facetidx/pkg/types"
)

// Errors returned by chunker implementations
var (
	ErrChunkerFailed = errors.New("chunker failed")
)

// Chunker splits one source file into a list of chunks. Implementations are
// swappable: the default spawns an external process, tests use an in-memory
// fake. The process-spawn mechanism and its wire shape never leak past this
// interface.
type Chunker interface {
	Chunkify(ctx context.Context, path string) (*types.ChunkedFile, error)
}

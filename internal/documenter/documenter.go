// Package documenter produces line-attributed natural-language documentation
// and facet metadata for chunked source files.
package documenter

import (
	"context"
	"errors"

	"github.com/dkeller/facetidx/pkg/types"
)

// Errors returned by documenter implementations
var (
	ErrDocumenterFailed = errors.New("documenter failed")
	ErrBadResponse      = errors.New("documenter returned malformed response")
)

// Documenter documents one chunked file. It is called with the file's entire
// chunk list so the summarizer sees cross-chunk context; callers skip the
// whole file on error and never persist partial documentation.
type Documenter interface {
	Document(ctx context.Context, file *types.ChunkedFile) ([]types.LineDoc, error)
}

package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyChunkID      = errors.New("chunk ID cannot be empty")
	ErrEmptyFilename     = errors.New("chunk filename cannot be empty")
	ErrNegativeBlobStart = errors.New("blob start offset must be >= 0")
	ErrInvalidLineNumber = errors.New("line number must be >= 1")
)

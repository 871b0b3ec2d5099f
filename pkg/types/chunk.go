package types

import "strings"

// Blob is a contiguous line range belonging to a chunk.
// Start is a 0-based line offset into the owning file; the blob covers
// source lines Start+1 through Start+len(Lines) in 1-based terms.
type Blob struct {
	Start      int      `json:"start"`
	Lines      []string `json:"lines"`
	Breadcrumb bool     `json:"breadcrumb,omitempty"`
}

// Contains reports whether the 1-based line number falls inside the blob.
func (b *Blob) Contains(lineNumber int) bool {
	return lineNumber > b.Start && lineNumber <= b.Start+len(b.Lines)
}

// Chunk represents a named sub-file unit produced by the chunker.
// Its identity is ID; a chunk is owned by exactly one file at a time and
// re-ingesting that file overwrites it.
type Chunk struct {
	ID       string             `json:"id"`
	Filename string             `json:"filename"`
	TreeName string             `json:"treeName"`
	Blobs    []Blob             `json:"blobs"`
	Docs     *CodeDocumentation `json:"docs,omitempty"`
}

// Validate performs basic structural validation of the chunk.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return ErrEmptyChunkID
	}
	if c.Filename == "" {
		return ErrEmptyFilename
	}
	for i := range c.Blobs {
		if c.Blobs[i].Start < 0 {
			return ErrNegativeBlobStart
		}
	}
	return nil
}

// ContainsLine reports whether any non-breadcrumb blob of the chunk spans
// the given 1-based line number. Breadcrumb blobs are markers and never
// eligible to receive documentation.
func (c *Chunk) ContainsLine(lineNumber int) bool {
	for i := range c.Blobs {
		if c.Blobs[i].Breadcrumb {
			continue
		}
		if c.Blobs[i].Contains(lineNumber) {
			return true
		}
	}
	return false
}

// FirstContentLine returns the 1-based first line of the first non-breadcrumb
// blob, or 0 when the chunk has only breadcrumbs.
func (c *Chunk) FirstContentLine() int {
	for i := range c.Blobs {
		if !c.Blobs[i].Breadcrumb {
			return c.Blobs[i].Start + 1
		}
	}
	return 0
}

// Code returns the chunk's source text: all non-breadcrumb blob lines joined
// in blob order. This is the document embedded into the code index.
func (c *Chunk) Code() string {
	var sb strings.Builder
	for i := range c.Blobs {
		if c.Blobs[i].Breadcrumb {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Join(c.Blobs[i].Lines, "\n"))
	}
	return sb.String()
}

// LineCount returns the total number of lines across all blobs.
func (c *Chunk) LineCount() int {
	n := 0
	for i := range c.Blobs {
		n += len(c.Blobs[i].Lines)
	}
	return n
}

// ChunkedFile is the per-file result of a successful chunker invocation.
type ChunkedFile struct {
	Filename string   `json:"filename"`
	Chunks   []*Chunk `json:"chunks"`
}

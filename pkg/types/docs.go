package types

// LineDoc is documenter output attributed to one source line. LineNumber is
// 1-based. The facet lists hold short free-text phrases; any of them may be
// empty.
type LineDoc struct {
	LineNumber   int      `json:"lineNumber"`
	Comment      string   `json:"comment"`
	Keywords     []string `json:"keywords,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	Goals        []string `json:"goals,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Validate checks the LineDoc for structural problems.
func (d *LineDoc) Validate() error {
	if d.LineNumber < 1 {
		return ErrInvalidLineNumber
	}
	return nil
}

// CodeDocumentation is the per-chunk documentation assembled during ingestion.
// Comments are kept in assignment order; the first entry may be a synthetic
// comment naming the chunk's tree-node type.
type CodeDocumentation struct {
	Comments []LineDoc `json:"comments"`
}

// Hit is one ranked query result: a chunk id with its fused score.
type Hit struct {
	Item  string  `json:"item"`
	Score float64 `json:"score"`
}

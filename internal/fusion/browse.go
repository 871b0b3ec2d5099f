package fusion

import (
	"strings"

	"github.com/dkeller/facetidx/internal/index"
)

// Browse lists a facet's entries whose value contains every word of filter
// (case-insensitive). An empty filter lists everything.
func (e *Engine) Browse(f index.Facet, filter string) []index.TextBlock {
	entries := e.indices.Facet(f).Entries()
	words := strings.Fields(strings.ToLower(filter))
	if len(words) == 0 {
		return entries
	}

	matched := entries[:0]
	for _, entry := range entries {
		value := strings.ToLower(entry.Value)
		ok := true
		for _, w := range words {
			if !strings.Contains(value, w) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, entry)
		}
	}
	return matched
}

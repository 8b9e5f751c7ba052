// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search talks to the external paper indexes the pipeline uses:
// Semantic Scholar for keyword search and citation-graph lookups, and arXiv
// and OpenAlex for backfilling missing abstracts.
package search

import (
	"strings"

	"github.com/pdiddy/review-matrix/pkg/types"
)

// paperFields is the field list requested for every paper stub.
var paperFields = []string{"title", "year", "citationCount", "abstract", "externalIds", "url"}

// fieldList joins paperFields, each prefixed with prefix (e.g. "references.").
func fieldList(prefixes ...string) string {
	if len(prefixes) == 0 {
		prefixes = []string{""}
	}
	var parts []string
	for _, p := range prefixes {
		for _, f := range paperFields {
			parts = append(parts, p+f)
		}
	}
	return strings.Join(parts, ",")
}

// PaperDetail is one paper looked up by DOI together with its citation
// neighbourhood.
type PaperDetail struct {
	types.RawPaper
	References []types.RawPaper `json:"references"`
	Citations  []types.RawPaper `json:"citations"`
}

// Related returns references followed by citations.
func (d PaperDetail) Related() []types.RawPaper {
	out := make([]types.RawPaper, 0, len(d.References)+len(d.Citations))
	out = append(out, d.References...)
	return append(out, d.Citations...)
}

// Match is the top hit from the abstract index.
type Match struct {
	Title   string
	Summary string

	// Source names the index that produced the match.
	Source string
}

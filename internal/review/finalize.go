// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"sort"

	"github.com/pdiddy/review-matrix/internal/collect"
	"github.com/pdiddy/review-matrix/pkg/types"
)

// Finalize sorts the accumulated scores highest first and keeps the first
// (highest-scoring) row per DOI. Equal scores keep accumulation order.
func Finalize(accumulated []types.ScoredPaper) []types.ScoredPaper {
	if len(accumulated) == 0 {
		return nil
	}
	sorted := make([]types.ScoredPaper, len(accumulated))
	copy(sorted, accumulated)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RelevanceScore > sorted[j].RelevanceScore
	})

	seen := collect.NewIDSet()
	out := sorted[:0]
	for _, p := range sorted {
		if seen.Has(p.DOI) {
			continue
		}
		seen.Add(p.DOI)
		out = append(out, p)
	}
	return out
}

// Threshold returns the papers scoring at least min, in input order.
func Threshold(papers []types.ScoredPaper, min int) []types.ScoredPaper {
	var out []types.ScoredPaper
	for _, p := range papers {
		if p.RelevanceScore >= min {
			out = append(out, p)
		}
	}
	return out
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/review-matrix/internal/observability"
	"github.com/pdiddy/review-matrix/pkg/types"
)

// CanonicalID normalizes a DOI into the deduplication key. DOIs are case
// insensitive, so the key is the trimmed, lowercased DOI.
func CanonicalID(doi string) string {
	return strings.ToLower(strings.TrimSpace(doi))
}

// IDSet is a set of canonical identifiers.
type IDSet map[string]struct{}

// NewIDSet returns a set holding the canonical form of each id.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts the canonical form of id. Empty ids are ignored.
func (s IDSet) Add(id string) {
	if k := CanonicalID(id); k != "" {
		s[k] = struct{}{}
	}
}

// Has reports whether the canonical form of id is present.
func (s IDSet) Has(id string) bool {
	_, ok := s[CanonicalID(id)]
	return ok
}

// Clone returns an independent copy of s.
func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

// Filter holds the bibliometric cut-offs applied to each batch.
type Filter struct {
	MinCitations int
	YearFrom     int
	YearTo       int
}

// FilterFromCriteria builds a Filter from the search criteria.
func FilterFromCriteria(c types.SearchCriteria) Filter {
	from, to := c.YearBounds()
	return Filter{MinCitations: c.MinCitations, YearFrom: from, YearTo: to}
}

// keepsCitations reports whether a paper passes the citation filter. A
// missing count passes.
func (f Filter) keepsCitations(count *int) bool {
	return count == nil || *count >= f.MinCitations
}

// keepsYear reports whether a paper passes the year window. A missing year
// passes, as does any year when the window is unset.
func (f Filter) keepsYear(year *int) bool {
	if year == nil || (f.YearFrom == 0 && f.YearTo == 0) {
		return true
	}
	return *year >= f.YearFrom && *year <= f.YearTo
}

// Normalizer turns raw API records into deduplicated, filtered candidates
// that carry an abstract.
type Normalizer struct {
	enricher *Enricher
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewNormalizer returns a Normalizer. A nil enricher skips abstract
// backfilling.
func NewNormalizer(enricher *Enricher, logger zerolog.Logger, metrics *observability.Metrics) *Normalizer {
	return &Normalizer{enricher: enricher, logger: logger, metrics: metrics}
}

// Process applies, in order: identifier derivation, exclusion of already
// processed identifiers, in-batch deduplication (first wins), the citation
// filter, the year filter, abstract enrichment, and removal of papers that
// still lack an abstract. Each step logs how many papers it dropped. An empty
// result at any step returns an empty slice without error.
func (n *Normalizer) Process(ctx context.Context, raw []types.RawPaper, exclude IDSet, f Filter) []types.Candidate {
	if len(raw) == 0 {
		n.logger.Info().Msg("no raw papers to process")
		return nil
	}
	n.logger.Info().Int("raw", len(raw)).Msg("normalizing papers")

	papers := make([]types.Candidate, 0, len(raw))
	for _, r := range raw {
		id := CanonicalID(r.DOI())
		if id == "" {
			continue
		}
		papers = append(papers, types.Candidate{
			DOI:           id,
			Title:         strings.TrimSpace(r.Title),
			Year:          r.Year,
			CitationCount: r.CitationCount,
			Abstract:      r.Abstract,
			URL:           r.URL,
		})
	}
	if papers = n.step("missing_doi", len(raw), papers); len(papers) == 0 {
		return nil
	}

	papers = n.apply("excluded", papers, func(p types.Candidate) bool {
		return !exclude.Has(p.DOI)
	})
	if len(papers) == 0 {
		return nil
	}

	seen := make(IDSet, len(papers))
	papers = n.apply("duplicate", papers, func(p types.Candidate) bool {
		if seen.Has(p.DOI) {
			return false
		}
		seen.Add(p.DOI)
		return true
	})
	if len(papers) == 0 {
		return nil
	}

	papers = n.apply("citations", papers, func(p types.Candidate) bool {
		return f.keepsCitations(p.CitationCount)
	})
	if len(papers) == 0 {
		return nil
	}

	papers = n.apply("year", papers, func(p types.Candidate) bool {
		return f.keepsYear(p.Year)
	})
	if len(papers) == 0 {
		return nil
	}

	if n.enricher != nil {
		papers = n.enricher.Enrich(ctx, papers)
	}

	papers = n.apply("no_abstract", papers, func(p types.Candidate) bool {
		return strings.TrimSpace(p.Abstract) != ""
	})

	n.logger.Info().Int("candidates", len(papers)).Msg("normalization complete")
	return papers
}

// apply keeps the papers for which keep returns true.
func (n *Normalizer) apply(step string, papers []types.Candidate, keep func(types.Candidate) bool) []types.Candidate {
	before := len(papers)
	out := papers[:0]
	for _, p := range papers {
		if keep(p) {
			out = append(out, p)
		}
	}
	return n.step(step, before, out)
}

func (n *Normalizer) step(step string, before int, papers []types.Candidate) []types.Candidate {
	dropped := before - len(papers)
	n.metrics.ObserveDropped(step, dropped)
	n.logger.Info().
		Str("step", step).
		Int("dropped", dropped).
		Int("remaining", len(papers)).
		Msg("filter step")
	if len(papers) == 0 {
		return nil
	}
	return papers
}

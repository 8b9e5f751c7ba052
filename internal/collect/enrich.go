// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/review-matrix/internal/observability"
	"github.com/pdiddy/review-matrix/internal/search"
	"github.com/pdiddy/review-matrix/pkg/types"
)

// AbstractIndex finds the best open-access match for a title or DOI.
type AbstractIndex interface {
	Lookup(ctx context.Context, title, doi string) (search.Match, bool, error)
}

// DefaultEnrichmentDelay is the pause between abstract lookups.
const DefaultEnrichmentDelay = time.Second

// Enricher backfills missing abstracts from one or more AbstractIndexes,
// consulted in order.
type Enricher struct {
	indexes  []AbstractIndex
	interval time.Duration
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewEnricher returns an Enricher that waits interval between papers.
// A negative interval disables the wait.
func NewEnricher(indexes []AbstractIndex, interval time.Duration, logger zerolog.Logger, metrics *observability.Metrics) *Enricher {
	if interval == 0 {
		interval = DefaultEnrichmentDelay
	}
	return &Enricher{indexes: indexes, interval: interval, logger: logger, metrics: metrics}
}

// Enrich fills the abstract of every candidate that has none from the first
// index whose top match has a title that contains, or is contained in, the
// candidate title (case-insensitive). A failed lookup is logged and the next
// index is tried; a candidate nothing matches keeps its empty abstract.
// Candidates are updated in place and the same slice is returned.
func (e *Enricher) Enrich(ctx context.Context, papers []types.Candidate) []types.Candidate {
	var missing []int
	for i, p := range papers {
		if strings.TrimSpace(p.Abstract) == "" {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return papers
	}
	e.logger.Info().Int("missing", len(missing)).Msg("filling missing abstracts")

	filled := 0
	for n, i := range missing {
		if n > 0 && !e.wait(ctx) {
			e.logger.Warn().Err(ctx.Err()).Int("skipped", len(missing)-n).Msg("abstract enrichment interrupted")
			break
		}

		outcome := e.enrichOne(ctx, &papers[i])
		if outcome == "filled" {
			filled++
		}
		e.metrics.ObserveEnrichment(outcome)
	}

	e.logger.Info().Int("filled", filled).Int("missing", len(missing)).Msg("abstract enrichment complete")
	return papers
}

// enrichOne tries each index in turn and reports filled, unmatched or
// failed (every consulted index errored).
func (e *Enricher) enrichOne(ctx context.Context, p *types.Candidate) string {
	failures := 0
	for _, idx := range e.indexes {
		m, ok, err := idx.Lookup(ctx, p.Title, p.DOI)
		if err != nil {
			failures++
			e.logger.Warn().Err(err).Str("title", p.Title).Msg("abstract lookup failed")
			continue
		}
		if !ok || !titlesMatch(p.Title, m.Title) || strings.TrimSpace(m.Summary) == "" {
			continue
		}
		p.Abstract = m.Summary
		e.logger.Debug().Str("title", p.Title).Str("source", m.Source).Msg("filled abstract")
		return "filled"
	}
	if failures > 0 && failures == len(e.indexes) {
		return "failed"
	}
	return "unmatched"
}

// wait sleeps for the configured interval; false means ctx ended first.
func (e *Enricher) wait(ctx context.Context) bool {
	if e.interval <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(e.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// titlesMatch accepts either title being a case-insensitive substring of
// the other.
func titlesMatch(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collect gathers candidate papers for each review round: keyword
// search and seed lookups for the first round, citation-graph snowballing
// from the best-scored papers afterwards, followed by normalization,
// filtering and abstract enrichment.
package collect

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/pdiddy/review-matrix/internal/observability"
	"github.com/pdiddy/review-matrix/internal/search"
	"github.com/pdiddy/review-matrix/pkg/types"
)

// PaperSource is the bibliographic API the collector reads from.
type PaperSource interface {
	SearchKeywords(ctx context.Context, keywords []string, limit int) ([]types.RawPaper, error)
	Lookup(ctx context.Context, doi string) (search.PaperDetail, error)
	Related(ctx context.Context, doi string) ([]types.RawPaper, error)
}

// Unlimited disables related-paper truncation.
const Unlimited = -1

// InitialOptions configures the first round of collection.
type InitialOptions struct {
	// KeywordLimit caps keyword search hits.
	KeywordLimit int

	// SnowballFromKeywords adds the DOIs of the first N keyword hits to the
	// seed set whose references and citations are fetched.
	SnowballFromKeywords int

	// RelatedLimit truncates each seed's references+citations; Unlimited
	// keeps all.
	RelatedLimit int
}

// SeedSelection configures how snowball seeds are chosen from a round's
// scored papers.
type SeedSelection struct {
	TopN int

	// Threshold, when non-nil, also selects every paper scoring at least
	// this much; the larger of the two selections is used.
	Threshold *int
}

// Collector fetches raw candidates. Every lookup failure is logged and
// treated as an empty result, so the methods never return an error.
type Collector struct {
	source  PaperSource
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New returns a Collector reading from source.
func New(source PaperSource, logger zerolog.Logger, metrics *observability.Metrics) *Collector {
	return &Collector{source: source, logger: logger, metrics: metrics}
}

// Initial merges keyword search hits with per-DOI seed lookups. Each seed
// contributes the paper itself followed by its references and citations.
// The DOIs of the first SnowballFromKeywords keyword hits are snowballed
// the same way.
func (c *Collector) Initial(ctx context.Context, keywords, seedDOIs []string, opts InitialOptions) []types.RawPaper {
	var out []types.RawPaper

	var hits []types.RawPaper
	if len(keywords) > 0 {
		var err error
		hits, err = c.source.SearchKeywords(ctx, keywords, opts.KeywordLimit)
		if err != nil {
			c.metrics.ObserveLookupFailure("keyword_search")
			c.logger.Error().Err(err).Strs("keywords", keywords).Msg("keyword search failed")
			hits = nil
		}
		if opts.KeywordLimit > 0 && len(hits) > opts.KeywordLimit {
			hits = hits[:opts.KeywordLimit]
		}
		c.logger.Info().Int("hits", len(hits)).Msg("keyword search complete")
		out = append(out, hits...)
	}

	seen := NewIDSet()
	for _, doi := range seedDOIs {
		if doi == "" || seen.Has(doi) {
			continue
		}
		seen.Add(doi)

		d, err := c.source.Lookup(ctx, doi)
		if err != nil {
			c.metrics.ObserveLookupFailure("seed")
			c.logger.Error().Err(err).Str("doi", doi).Msg("seed lookup failed")
			continue
		}
		if d.DOI() == "" && d.Title != "" {
			d.ExternalIDs = &types.ExternalIDs{DOI: doi}
		}
		if d.Title != "" {
			out = append(out, d.RawPaper)
		}
		out = append(out, truncate(d.Related(), opts.RelatedLimit)...)
	}

	if opts.SnowballFromKeywords > 0 {
		var extra []string
		for i, p := range hits {
			if i >= opts.SnowballFromKeywords {
				break
			}
			if doi := p.DOI(); doi != "" && !seen.Has(doi) {
				seen.Add(doi)
				extra = append(extra, doi)
			}
		}
		c.logger.Info().Int("seeds", len(extra)).Msg("adding top keyword hits to snowball seeds")
		for _, doi := range extra {
			out = append(out, c.related(ctx, doi, opts.RelatedLimit)...)
		}
	}

	c.logger.Info().Int("raw", len(out)).Msg("initial collection complete")
	return out
}

// Snowball picks seeds from the scored papers (see SelectSeeds) and returns
// the references then citations of each, truncated to relatedLimit per seed.
func (c *Collector) Snowball(ctx context.Context, scored []types.ScoredPaper, sel SeedSelection, relatedLimit int) []types.RawPaper {
	seeds := SelectSeeds(scored, sel)
	c.logger.Info().Int("seeds", len(seeds)).Int("scored", len(scored)).Msg("snowballing")

	var out []types.RawPaper
	done := NewIDSet()
	for _, s := range seeds {
		if s.DOI == "" || done.Has(s.DOI) {
			continue
		}
		done.Add(s.DOI)
		out = append(out, c.related(ctx, s.DOI, relatedLimit)...)
	}

	c.logger.Info().Int("raw", len(out)).Msg("snowball complete")
	return out
}

func (c *Collector) related(ctx context.Context, doi string, limit int) []types.RawPaper {
	related, err := c.source.Related(ctx, doi)
	if err != nil {
		c.metrics.ObserveLookupFailure("related")
		c.logger.Error().Err(err).Str("doi", doi).Msg("failed to get related papers")
		return nil
	}
	return truncate(related, limit)
}

// SelectSeeds orders papers by descending score (stable) and returns the
// top TopN. When a threshold is set and more papers score at or above it
// than TopN, those papers are returned instead.
func SelectSeeds(scored []types.ScoredPaper, sel SeedSelection) []types.ScoredPaper {
	if len(scored) == 0 {
		return nil
	}
	ranked := make([]types.ScoredPaper, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})

	topN := sel.TopN
	if topN < 0 {
		topN = 0
	}
	if topN > len(ranked) {
		topN = len(ranked)
	}
	selected := ranked[:topN]

	if sel.Threshold != nil {
		var above []types.ScoredPaper
		for _, p := range ranked {
			if p.RelevanceScore >= *sel.Threshold {
				above = append(above, p)
			}
		}
		if len(above) > len(selected) {
			selected = above
		}
	}
	return selected
}

// truncate keeps the first limit papers; Unlimited (or any negative limit)
// keeps all.
func truncate(papers []types.RawPaper, limit int) []types.RawPaper {
	if limit < 0 || len(papers) <= limit {
		return papers
	}
	return papers[:limit]
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package screen scores candidate papers for relevance to the research scope.
package screen

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/review-matrix/internal/workpool"
	"github.com/pdiddy/review-matrix/pkg/types"
)

// Reasons recorded when a paper could not be scored.
const (
	ReasonNoAbstract = "No abstract available"
	ReasonLLMError   = "LLM Error occurred"
)

// Scorer returns a relevance judgement for one paper.
type Scorer interface {
	Score(ctx context.Context, scope, title, abstract string) (types.Screening, error)
}

// Screener fans scoring out over a bounded worker pool.
type Screener struct {
	scorer  Scorer
	workers int
	logger  zerolog.Logger
}

// New returns a Screener using at most workers concurrent calls.
func New(scorer Scorer, workers int, logger zerolog.Logger) *Screener {
	return &Screener{scorer: scorer, workers: workpool.Width(workers), logger: logger}
}

// Screen scores every candidate against scope. The output has one row per
// input row in the same order. Papers without an abstract get score 0
// without an LLM call; a failed call also yields score 0 and never stops
// the batch.
func (s *Screener) Screen(ctx context.Context, papers []types.Candidate, scope string) ([]types.ScoredPaper, error) {
	s.logger.Info().Int("papers", len(papers)).Int("workers", s.workers).Msg("starting screening")

	out, err := workpool.Map(ctx, papers, s.workers, func(ctx context.Context, _ int, p types.Candidate) types.ScoredPaper {
		return types.ScoredPaper{Candidate: p, Screening: s.screenOne(ctx, p, scope)}
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("scored", len(out)).Msg("screening complete")
	return out, nil
}

func (s *Screener) screenOne(ctx context.Context, p types.Candidate, scope string) types.Screening {
	if strings.TrimSpace(p.Abstract) == "" {
		s.logger.Warn().Str("title", p.Title).Msg("skipping screening: missing abstract")
		return types.Screening{RelevanceScore: 0, RelevanceReason: ReasonNoAbstract}
	}

	res, err := s.scorer.Score(ctx, scope, p.Title, p.Abstract)
	if err != nil {
		s.logger.Error().Err(err).Str("title", p.Title).Str("doi", p.DOI).Msg("error screening paper")
		return types.Screening{RelevanceScore: 0, RelevanceReason: ReasonLLMError}
	}
	return res
}

// ResearchScope returns the natural-language query when set, otherwise a
// scope built from the keywords.
func ResearchScope(c types.SearchCriteria) string {
	if q := strings.TrimSpace(c.NaturalLanguageQuery); q != "" {
		return q
	}
	return "Focus on: " + strings.Join(c.Keywords, ", ")
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract fills the structured review-matrix fields for papers that
// cleared the screening threshold.
package extract

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/pdiddy/review-matrix/internal/workpool"
	"github.com/pdiddy/review-matrix/pkg/types"
)

// Backend abstracts the LLM extraction call so tests can supply a mock.
type Backend interface {
	Extract(ctx context.Context, title, abstract string) (types.Extraction, error)
}

// Summary holds counts from one extraction batch.
type Summary struct {
	Extracted int
	Failed    int
}

// Total returns the number of papers processed.
func (s Summary) Total() int { return s.Extracted + s.Failed }

// HasFailures reports whether any paper fell back to error markers.
func (s Summary) HasFailures() bool { return s.Failed > 0 }

// Extractor runs extraction over a bounded worker pool.
type Extractor struct {
	backend Backend
	workers int
	logger  zerolog.Logger
}

// New returns an Extractor using at most workers concurrent calls.
func New(backend Backend, workers int, logger zerolog.Logger) *Extractor {
	return &Extractor{backend: backend, workers: workpool.Width(workers), logger: logger}
}

// ExtractAll extracts every paper, preserving input order. A failed call
// writes "Error" into every extraction field of that row and the batch
// continues. Progress is logged as workers finish.
func (e *Extractor) ExtractAll(ctx context.Context, papers []types.ScoredPaper) ([]types.ExtractedPaper, Summary, error) {
	total := len(papers)
	e.logger.Info().Int("papers", total).Int("workers", e.workers).Msg("starting extraction")

	var done, failed atomic.Int64
	out, err := workpool.Map(ctx, papers, e.workers, func(ctx context.Context, _ int, p types.ScoredPaper) types.ExtractedPaper {
		ex, err := e.backend.Extract(ctx, p.Title, p.Abstract)
		if err != nil {
			failed.Add(1)
			e.logger.Error().Err(err).Str("title", p.Title).Str("doi", p.DOI).Msg("error extracting paper")
			ex = types.FailedExtraction()
		}
		n := done.Add(1)
		e.logger.Info().Int64("completed", n).Int("total", total).Msgf("Extraction: %d/%d", n, total)
		return types.ExtractedPaper{ScoredPaper: p, Extraction: ex}
	})
	if err != nil {
		return nil, Summary{}, err
	}

	s := Summary{Extracted: total - int(failed.Load()), Failed: int(failed.Load())}
	e.logger.Info().Int("extracted", s.Extracted).Int("failed", s.Failed).Msg("extraction complete")
	return out, s, nil
}

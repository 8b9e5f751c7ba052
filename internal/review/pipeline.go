// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package review drives a literature review run: collect, score and
// snowball for a number of rounds, then finalize the scores, extract
// structured fields from the relevant papers and write the review matrix.
//
// Every round's output is checkpointed in the run directory before the next
// phase starts. Rerunning against the same directory loads each existing
// checkpoint instead of recomputing it.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/review-matrix/internal/checkpoint"
	"github.com/pdiddy/review-matrix/internal/collect"
	"github.com/pdiddy/review-matrix/internal/extract"
	"github.com/pdiddy/review-matrix/internal/matrix"
	"github.com/pdiddy/review-matrix/internal/observability"
	"github.com/pdiddy/review-matrix/internal/screen"
	"github.com/pdiddy/review-matrix/pkg/types"
)

// State is the value threaded through the rounds of a run.
type State struct {
	// Iteration is the number of completed rounds.
	Iteration int

	// Frontier holds the raw candidates for the next round.
	Frontier []types.RawPaper

	// Accumulated is every scored row so far, in round order.
	Accumulated []types.ScoredPaper

	// Seen holds the DOIs already scored.
	Seen collect.IDSet

	// Done is set once no further round should run.
	Done bool
}

// Result summarizes a finished run.
type Result struct {
	// Artifact is the path of the final table, empty when nothing was
	// collected.
	Artifact string

	// Fallback is set when no paper cleared the threshold and the
	// unthresholded scores were written instead.
	Fallback bool

	Iterations int
	Papers     int
	Extraction extract.Summary
}

// Pipeline wires the stages of a run together.
type Pipeline struct {
	criteria   types.SearchCriteria
	project    string
	run        checkpoint.RunDir
	collector  *collect.Collector
	normalizer *collect.Normalizer
	screener   *screen.Screener
	extractor  *extract.Extractor
	logger     zerolog.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// Stages are the components a Pipeline drives.
type Stages struct {
	Collector  *collect.Collector
	Normalizer *collect.Normalizer
	Screener   *screen.Screener
	Extractor  *extract.Extractor
}

// New returns a Pipeline writing its checkpoints into run.
func New(cfg types.ReviewConfig, run checkpoint.RunDir, stages Stages, logger zerolog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		criteria:   cfg.SearchCriteria,
		project:    cfg.ProjectName,
		run:        run,
		collector:  stages.Collector,
		normalizer: stages.Normalizer,
		screener:   stages.Screener,
		extractor:  stages.Extractor,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Run executes every remaining phase of the run and returns its outcome.
// A run whose final artifact already exists is reported as complete
// without doing any work.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	manifest, err := p.run.LoadManifest(p.project, p.now())
	if err != nil {
		return Result{}, err
	}
	p.logger = p.logger.With().Str("run_id", manifest.RunID).Logger()

	if artifact, fallback, ok := p.finished(); ok {
		p.logger.Info().Str("artifact", artifact).Msg("run already complete")
		return Result{Artifact: artifact, Fallback: fallback, Iterations: manifest.CompletedIterations}, nil
	}

	p.logger.Info().
		Int("iterations", p.criteria.Iterations).
		Str("run_dir", p.run.Root).
		Msg("starting review")

	state, err := p.Start(ctx)
	if err != nil {
		return Result{}, err
	}
	for !state.Done {
		if state, err = p.Step(ctx, state); err != nil {
			return Result{}, err
		}
		manifest.CompletedIterations = state.Iteration
		manifest.UpdatedAt = p.now().UTC()
		if err := p.run.SaveManifest(manifest); err != nil {
			return Result{}, err
		}
	}

	res, err := p.finish(ctx, state)
	if err != nil {
		return Result{}, err
	}

	if err := p.metrics.WriteTextfile(p.run.Metrics()); err != nil {
		p.logger.Warn().Err(err).Msg("could not write metrics")
	}

	manifest.Status = checkpoint.StatusComplete
	manifest.Artifact = res.Artifact
	manifest.UpdatedAt = p.now().UTC()
	if err := p.run.SaveManifest(manifest); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (p *Pipeline) finished() (artifact string, fallback bool, ok bool) {
	if checkpoint.Exists(p.run.FinalMatrix()) {
		return p.run.FinalMatrix(), false, true
	}
	if checkpoint.Exists(p.run.Fallback()) {
		return p.run.Fallback(), true, true
	}
	return "", false, false
}

// Start returns the initial state, with the first frontier taken from
// keyword search and seed lookups or from its checkpoint.
func (p *Pipeline) Start(ctx context.Context) (State, error) {
	path := p.run.IterationCandidates(1)
	if checkpoint.Exists(path) {
		frontier, err := checkpoint.ReadRaw(path)
		if err != nil {
			return State{}, err
		}
		p.logger.Info().Str("checkpoint", path).Int("raw", len(frontier)).Msg("loaded initial candidates")
		return State{Frontier: frontier, Seen: collect.NewIDSet()}, nil
	}

	frontier := p.collector.Initial(ctx, p.criteria.Keywords, p.criteria.SeedPaperDOIs, collect.InitialOptions{
		KeywordLimit:         p.criteria.KeywordSearchLimit,
		SnowballFromKeywords: p.criteria.SnowballFromKeywordsLimit,
		RelatedLimit:         p.criteria.MaxRelatedPapers,
	})
	if err := checkpoint.WriteRaw(path, frontier); err != nil {
		return State{}, err
	}
	return State{Frontier: frontier, Seen: collect.NewIDSet()}, nil
}

// Step runs one round on s and returns the next state; s is not modified.
// The round filters and scores the frontier, appends the scores to the
// accumulator and, unless it was the last round, snowballs the next
// frontier from this round's scores. An empty round ends the run early.
func (p *Pipeline) Step(ctx context.Context, s State) (State, error) {
	if s.Done {
		return s, nil
	}
	k := s.Iteration + 1
	logger := p.logger.With().Int("iteration", k).Logger()
	logger.Info().Int("raw", len(s.Frontier)).Msg("starting iteration")

	scored, err := p.scoreRound(ctx, k, s)
	if err != nil {
		return s, err
	}
	p.metrics.SetIterationCandidates(k, len(scored))

	next := State{
		Iteration:   k,
		Accumulated: s.Accumulated,
		Seen:        s.Seen.Clone(),
	}
	if len(scored) == 0 {
		logger.Info().Msg("no new candidates; stopping early")
		next.Done = true
		return next, nil
	}

	next.Accumulated = make([]types.ScoredPaper, 0, len(s.Accumulated)+len(scored))
	next.Accumulated = append(next.Accumulated, s.Accumulated...)
	next.Accumulated = append(next.Accumulated, scored...)
	for _, sp := range scored {
		next.Seen.Add(sp.DOI)
	}
	if err := checkpoint.WriteScored(p.run.Cumulative(), next.Accumulated); err != nil {
		return s, err
	}

	if k >= p.criteria.Iterations {
		next.Done = true
		logger.Info().Int("accumulated", len(next.Accumulated)).Msg("iteration complete")
		return next, nil
	}

	if next.Frontier, err = p.snowball(ctx, k, scored); err != nil {
		return s, err
	}
	logger.Info().
		Int("accumulated", len(next.Accumulated)).
		Int("next_raw", len(next.Frontier)).
		Msg("iteration complete")
	return next, nil
}

// scoreRound returns round k's scored table, loading it from its
// checkpoint when present. An emptied-out round writes a header-only table.
func (p *Pipeline) scoreRound(ctx context.Context, k int, s State) ([]types.ScoredPaper, error) {
	path := p.run.IterationScored(k)
	if checkpoint.Exists(path) {
		scored, err := checkpoint.ReadScored(path)
		if err != nil {
			return nil, err
		}
		p.logger.Info().Str("checkpoint", path).Int("scored", len(scored)).Msg("loaded scored iteration")
		return scored, nil
	}

	candidates := p.normalizer.Process(ctx, s.Frontier, s.Seen, collect.FilterFromCriteria(p.criteria))
	for i := range candidates {
		candidates[i].Iteration = k
	}

	var scored []types.ScoredPaper
	if len(candidates) > 0 {
		var err error
		scored, err = p.screener.Screen(ctx, candidates, screen.ResearchScope(p.criteria))
		if err != nil {
			return nil, fmt.Errorf("screening iteration %d: %w", k, err)
		}
	}
	if err := checkpoint.WriteScored(path, scored); err != nil {
		return nil, err
	}
	return scored, nil
}

func (p *Pipeline) snowball(ctx context.Context, k int, scored []types.ScoredPaper) ([]types.RawPaper, error) {
	path := p.run.IterationCandidates(k + 1)
	if checkpoint.Exists(path) {
		return checkpoint.ReadRaw(path)
	}

	sel := collect.SeedSelection{TopN: p.criteria.TopNForSnowball}
	if p.criteria.UseThresholdForSnowball {
		t := p.criteria.ScreeningThreshold
		sel.Threshold = &t
	}
	frontier := p.collector.Snowball(ctx, scored, sel, p.criteria.MaxRelatedPapers)
	if err := checkpoint.WriteRaw(path, frontier); err != nil {
		return nil, err
	}
	return frontier, nil
}

// finish finalizes the accumulator and writes the final artifact: the
// extracted matrix of papers that clear the screening threshold, or the
// unthresholded scores when none do.
func (p *Pipeline) finish(ctx context.Context, s State) (Result, error) {
	res := Result{Iterations: s.Iteration}

	final := Finalize(s.Accumulated)
	if len(final) == 0 {
		p.logger.Warn().Msg("no papers collected; nothing to write")
		return res, nil
	}

	kept := Threshold(final, p.criteria.ScreeningThreshold)
	p.logger.Info().
		Int("papers", len(final)).
		Int("threshold", p.criteria.ScreeningThreshold).
		Int("kept", len(kept)).
		Msg("finalized scores")

	if len(kept) == 0 {
		p.logger.Warn().Str("artifact", p.run.Fallback()).Msg("no papers cleared the threshold; writing unthresholded scores")
		if err := checkpoint.WriteScored(p.run.Fallback(), final); err != nil {
			return res, err
		}
		res.Artifact = p.run.Fallback()
		res.Fallback = true
		res.Papers = len(final)
		return res, nil
	}

	extracted, summary, err := p.extractor.ExtractAll(ctx, kept)
	if err != nil {
		return res, fmt.Errorf("extracting: %w", err)
	}

	if err := checkpoint.WriteExtracted(p.run.FinalMatrix(), extracted); err != nil {
		return res, err
	}
	if err := p.index(ctx, extracted); err != nil {
		p.logger.Warn().Err(err).Str("index", p.run.MatrixDB()).Msg("could not index review matrix")
	}

	res.Artifact = p.run.FinalMatrix()
	res.Papers = len(extracted)
	res.Extraction = summary
	p.logger.Info().Str("artifact", res.Artifact).Int("papers", res.Papers).Msg("review matrix written")
	return res, nil
}

func (p *Pipeline) index(ctx context.Context, papers []types.ExtractedPaper) error {
	store, err := matrix.Open(p.run.MatrixDB())
	if err != nil {
		return fmt.Errorf("opening matrix index: %w", err)
	}
	defer store.Close()

	n, err := store.Ingest(ctx, papers)
	if err != nil {
		return fmt.Errorf("indexing matrix: %w", err)
	}
	p.logger.Info().Int("indexed", n).Str("index", p.run.MatrixDB()).Msg("matrix indexed")
	return nil
}

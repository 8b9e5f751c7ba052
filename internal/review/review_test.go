// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/review-matrix/internal/checkpoint"
	"github.com/pdiddy/review-matrix/internal/collect"
	"github.com/pdiddy/review-matrix/internal/extract"
	"github.com/pdiddy/review-matrix/internal/matrix"
	"github.com/pdiddy/review-matrix/internal/observability"
	"github.com/pdiddy/review-matrix/internal/screen"
	"github.com/pdiddy/review-matrix/internal/search"
	"github.com/pdiddy/review-matrix/pkg/types"
)

// --- fakes ---

func intp(v int) *int { return &v }

func raw(doi string, citations int) types.RawPaper {
	return types.RawPaper{
		Title:         "Paper " + doi,
		Year:          intp(2020),
		CitationCount: intp(citations),
		Abstract:      "abstract " + doi,
		ExternalIDs:   &types.ExternalIDs{DOI: doi},
	}
}

type fakeSource struct {
	mu      sync.Mutex
	hits    []types.RawPaper
	related map[string][]types.RawPaper
	calls   int
}

func (f *fakeSource) SearchKeywords(context.Context, []string, int) ([]types.RawPaper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.hits, nil
}

func (f *fakeSource) Lookup(_ context.Context, doi string) (search.PaperDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return search.PaperDetail{}, errors.New("not found")
}

func (f *fakeSource) Related(_ context.Context, doi string) ([]types.RawPaper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.related[doi], nil
}

type fakeLLM struct {
	mu       sync.Mutex
	scores   map[string]int
	scored   []string
	extracts int
}

func (f *fakeLLM) Score(_ context.Context, _, title, _ string) (types.Screening, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scored = append(f.scored, title)
	return types.Screening{RelevanceScore: f.scores[title], RelevanceReason: "r", Summary: "s"}, nil
}

func (f *fakeLLM) Extract(_ context.Context, title, _ string) (types.Extraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extracts++
	return types.Extraction{Problem: "p " + title, Category: types.CategoryMethod, OneLineSummary: "o"}, nil
}

func criteria() types.SearchCriteria {
	return types.SearchCriteria{
		Keywords:           []string{"x"},
		KeywordSearchLimit: 100,
		MaxRelatedPapers:   collect.Unlimited,
		MinCitations:       10,
		YearRange:          []int{2000, 2025},
		ScreeningThreshold: 7,
		Iterations:         2,
		TopNForSnowball:    1,
	}
}

func newPipeline(t *testing.T, root string, c types.SearchCriteria, src *fakeSource, llm *fakeLLM) *Pipeline {
	t.Helper()
	run, err := checkpoint.Open(root)
	require.NoError(t, err)

	logger := zerolog.Nop()
	metrics := observability.NewMetrics()
	stages := Stages{
		Collector:  collect.New(src, logger, metrics),
		Normalizer: collect.NewNormalizer(nil, logger, metrics),
		Screener:   screen.New(llm, 3, logger),
		Extractor:  extract.New(llm, 3, logger),
	}
	cfg := types.ReviewConfig{ProjectName: "test", SearchCriteria: c}
	return New(cfg, run, stages, logger, metrics)
}

func twoRoundSource() *fakeSource {
	return &fakeSource{
		hits: []types.RawPaper{raw("10.1/a", 50), raw("10.1/b", 5)},
		related: map[string][]types.RawPaper{
			"10.1/a": {raw("10.1/A", 99), raw("10.1/c", 20)},
		},
	}
}

// --- tests ---

func TestFinalizeKeepsHighestScorePerDOI(t *testing.T) {
	acc := []types.ScoredPaper{
		{Candidate: types.Candidate{DOI: "10.1/x", Iteration: 1}, Screening: types.Screening{RelevanceScore: 6}},
		{Candidate: types.Candidate{DOI: "10.1/y", Iteration: 1}, Screening: types.Screening{RelevanceScore: 7}},
		{Candidate: types.Candidate{DOI: "10.1/X", Iteration: 2}, Screening: types.Screening{RelevanceScore: 9}},
	}
	got := Finalize(acc)
	require.Len(t, got, 2)
	assert.Equal(t, 9, got[0].RelevanceScore)
	assert.Equal(t, 2, got[0].Iteration)
	assert.Equal(t, "10.1/y", got[1].DOI)
	assert.Equal(t, 6, acc[0].RelevanceScore, "input must not be reordered")
	assert.Nil(t, Finalize(nil))
}

func TestFinalizeStableOnTies(t *testing.T) {
	acc := []types.ScoredPaper{
		{Candidate: types.Candidate{DOI: "10.1/first"}, Screening: types.Screening{RelevanceScore: 8}},
		{Candidate: types.Candidate{DOI: "10.1/second"}, Screening: types.Screening{RelevanceScore: 8}},
	}
	got := Finalize(acc)
	assert.Equal(t, "10.1/first", got[0].DOI)
	assert.Equal(t, "10.1/second", got[1].DOI)
}

func TestThreshold(t *testing.T) {
	papers := []types.ScoredPaper{
		{Screening: types.Screening{RelevanceScore: 9}},
		{Screening: types.Screening{RelevanceScore: 6}},
		{Screening: types.Screening{RelevanceScore: 7}},
	}
	assert.Len(t, Threshold(papers, 7), 2)
	assert.Empty(t, Threshold(papers, 10))
}

func TestRunTwoIterations(t *testing.T) {
	root := t.TempDir()
	src := twoRoundSource()
	llm := &fakeLLM{scores: map[string]int{"Paper 10.1/a": 9, "Paper 10.1/c": 8}}

	res, err := newPipeline(t, root, criteria(), src, llm).Run(context.Background())
	require.NoError(t, err)

	run, _ := checkpoint.Open(root)
	assert.Equal(t, run.FinalMatrix(), res.Artifact)
	assert.False(t, res.Fallback)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 2, res.Papers)
	assert.Equal(t, extract.Summary{Extracted: 2}, res.Extraction)

	// 10.1/b fails the citation filter and 10.1/A repeats 10.1/a.
	assert.ElementsMatch(t, []string{"Paper 10.1/a", "Paper 10.1/c"}, llm.scored)

	final, err := checkpoint.ReadExtracted(run.FinalMatrix())
	require.NoError(t, err)
	require.Len(t, final, 2)
	assert.Equal(t, "10.1/a", final[0].DOI)
	assert.Equal(t, 1, final[0].Iteration)
	assert.Equal(t, "10.1/c", final[1].DOI)
	assert.Equal(t, 2, final[1].Iteration)
	assert.Equal(t, "p Paper 10.1/c", final[1].Problem)

	for _, path := range []string{
		run.IterationCandidates(1), run.IterationCandidates(2),
		run.IterationScored(1), run.IterationScored(2),
		run.Cumulative(), run.Metrics(), run.MatrixDB(),
	} {
		assert.True(t, checkpoint.Exists(path), path)
	}
	assert.False(t, checkpoint.Exists(run.IterationCandidates(3)))

	cumulative, err := checkpoint.ReadScored(run.Cumulative())
	require.NoError(t, err)
	assert.Len(t, cumulative, 2)

	m, err := run.LoadManifest("test", time.Now())
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusComplete, m.Status)
	assert.Equal(t, 2, m.CompletedIterations)
	assert.Equal(t, run.FinalMatrix(), m.Artifact)

	store, err := matrix.Open(run.MatrixDB())
	require.NoError(t, err)
	defer store.Close()
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunWritesMatrixWhenIndexFails(t *testing.T) {
	root := t.TempDir()
	run, err := checkpoint.Open(root)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(run.MatrixDB(), 0o755))

	llm := &fakeLLM{scores: map[string]int{"Paper 10.1/a": 9, "Paper 10.1/c": 8}}
	res, err := newPipeline(t, root, criteria(), twoRoundSource(), llm).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, run.FinalMatrix(), res.Artifact)
	assert.Equal(t, 2, res.Papers)
	final, err := checkpoint.ReadExtracted(run.FinalMatrix())
	require.NoError(t, err)
	assert.Len(t, final, 2)

	m, err := run.LoadManifest("test", time.Now())
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusComplete, m.Status)
}

func TestRunFallbackWhenNothingClearsThreshold(t *testing.T) {
	root := t.TempDir()
	c := criteria()
	c.Iterations = 1
	llm := &fakeLLM{scores: map[string]int{"Paper 10.1/a": 3}}

	res, err := newPipeline(t, root, c, twoRoundSource(), llm).Run(context.Background())
	require.NoError(t, err)

	run, _ := checkpoint.Open(root)
	assert.True(t, res.Fallback)
	assert.Equal(t, run.Fallback(), res.Artifact)
	assert.Zero(t, llm.extracts)
	assert.False(t, checkpoint.Exists(run.FinalMatrix()))

	scored, err := checkpoint.ReadScored(run.Fallback())
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, 3, scored[0].RelevanceScore)
}

func TestRunStopsEarlyOnEmptyRound(t *testing.T) {
	root := t.TempDir()
	c := criteria()
	c.Iterations = 3
	src := &fakeSource{hits: []types.RawPaper{raw("10.1/a", 50)}}
	llm := &fakeLLM{scores: map[string]int{"Paper 10.1/a": 9}}

	res, err := newPipeline(t, root, c, src, llm).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 1, res.Papers)

	run, _ := checkpoint.Open(root)
	empty, err := checkpoint.ReadScored(run.IterationScored(2))
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.False(t, checkpoint.Exists(run.IterationCandidates(3)))
}

func TestRunNothingCollected(t *testing.T) {
	root := t.TempDir()
	llm := &fakeLLM{}

	res, err := newPipeline(t, root, criteria(), &fakeSource{}, llm).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Artifact)
	assert.Empty(t, llm.scored)

	run, _ := checkpoint.Open(root)
	assert.False(t, checkpoint.Exists(run.FinalMatrix()))
	assert.False(t, checkpoint.Exists(run.Fallback()))
}

func TestRunResumesFromCheckpoints(t *testing.T) {
	root := t.TempDir()
	llm := &fakeLLM{scores: map[string]int{"Paper 10.1/a": 9, "Paper 10.1/c": 8}}
	_, err := newPipeline(t, root, criteria(), twoRoundSource(), llm).Run(context.Background())
	require.NoError(t, err)

	run, _ := checkpoint.Open(root)
	require.NoError(t, os.Remove(run.FinalMatrix()))

	src := twoRoundSource()
	again := &fakeLLM{}
	res, err := newPipeline(t, root, criteria(), src, again).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, src.calls, "collection should come from checkpoints")
	assert.Empty(t, again.scored, "scores should come from checkpoints")
	assert.Equal(t, 2, again.extracts)
	assert.Equal(t, 2, res.Papers)
}

func TestRunAlreadyComplete(t *testing.T) {
	root := t.TempDir()
	llm := &fakeLLM{scores: map[string]int{"Paper 10.1/a": 9, "Paper 10.1/c": 8}}
	_, err := newPipeline(t, root, criteria(), twoRoundSource(), llm).Run(context.Background())
	require.NoError(t, err)

	src := twoRoundSource()
	again := &fakeLLM{}
	res, err := newPipeline(t, root, criteria(), src, again).Run(context.Background())
	require.NoError(t, err)

	run, _ := checkpoint.Open(root)
	assert.Equal(t, run.FinalMatrix(), res.Artifact)
	assert.Zero(t, src.calls)
	assert.Zero(t, again.extracts)
}

func TestStepDoesNotMutateState(t *testing.T) {
	root := t.TempDir()
	c := criteria()
	c.Iterations = 1
	llm := &fakeLLM{scores: map[string]int{"Paper 10.1/c": 8}}
	p := newPipeline(t, root, c, &fakeSource{}, llm)

	prev := []types.ScoredPaper{{Candidate: types.Candidate{DOI: "10.1/a"}, Screening: types.Screening{RelevanceScore: 9}}}
	in := State{
		Frontier:    []types.RawPaper{raw("10.1/a", 50), raw("10.1/c", 50)},
		Accumulated: prev,
		Seen:        collect.NewIDSet("10.1/a"),
	}

	out, err := p.Step(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Iteration)
	assert.True(t, out.Done)
	require.Len(t, out.Accumulated, 2)
	assert.Equal(t, "10.1/c", out.Accumulated[1].DOI)
	assert.True(t, out.Seen.Has("10.1/c"))

	assert.Len(t, in.Accumulated, 1)
	assert.False(t, in.Seen.Has("10.1/c"))
	assert.Equal(t, []string{"Paper 10.1/c"}, llm.scored)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/review-matrix/internal/search"
	"github.com/pdiddy/review-matrix/pkg/types"
)

func intp(v int) *int { return &v }

func raw(doi, title string, citations, year int, abstract string) types.RawPaper {
	return types.RawPaper{
		Title:         title,
		Year:          intp(year),
		CitationCount: intp(citations),
		Abstract:      abstract,
		ExternalIDs:   &types.ExternalIDs{DOI: doi},
	}
}

// fakeSource is an in-memory PaperSource.
type fakeSource struct {
	hits      []types.RawPaper
	searchErr error
	details   map[string]search.PaperDetail
	failDOIs  map[string]bool

	searched []string
	lookups  []string
	related  []string
}

func (f *fakeSource) SearchKeywords(_ context.Context, keywords []string, limit int) ([]types.RawPaper, error) {
	f.searched = append(f.searched, keywords...)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeSource) Lookup(_ context.Context, doi string) (search.PaperDetail, error) {
	f.lookups = append(f.lookups, doi)
	if f.failDOIs[doi] {
		return search.PaperDetail{}, errors.New("retries exhausted")
	}
	return f.details[doi], nil
}

func (f *fakeSource) Related(_ context.Context, doi string) ([]types.RawPaper, error) {
	f.related = append(f.related, doi)
	if f.failDOIs[doi] {
		return nil, errors.New("HTTP 404")
	}
	return f.details[doi].Related(), nil
}

func titles(papers []types.RawPaper) []string {
	var out []string
	for _, p := range papers {
		out = append(out, p.Title)
	}
	return out
}

func scoredWith(scores ...int) []types.ScoredPaper {
	out := make([]types.ScoredPaper, len(scores))
	for i, s := range scores {
		out[i] = types.ScoredPaper{
			Candidate: types.Candidate{DOI: "10.1/p" + string(rune('a'+i))},
			Screening: types.Screening{RelevanceScore: s},
		}
	}
	return out
}

func scoresOf(papers []types.ScoredPaper) []int {
	var out []int
	for _, p := range papers {
		out = append(out, p.RelevanceScore)
	}
	return out
}

func TestSelectSeeds(t *testing.T) {
	scored := scoredWith(7, 10, 5, 9, 6, 8)
	tests := []struct {
		name      string
		topN      int
		threshold *int
		want      []int
	}{
		{"top two without threshold", 2, nil, []int{10, 9}},
		{"threshold wider than top n", 2, intp(8), []int{10, 9, 8}},
		{"top n wider than threshold", 5, intp(9), []int{10, 9, 8, 7, 6}},
		{"equal sizes keep top n", 3, intp(8), []int{10, 9, 8}},
		{"top n larger than table", 10, nil, []int{10, 9, 8, 7, 6, 5}},
		{"zero top n with threshold", 0, intp(10), []int{10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectSeeds(scored, SeedSelection{TopN: tt.topN, Threshold: tt.threshold})
			assert.Equal(t, tt.want, scoresOf(got))
		})
	}
}

func TestSelectSeedsStableAndNonMutating(t *testing.T) {
	scored := scoredWith(5, 9, 9, 1)
	got := SelectSeeds(scored, SeedSelection{TopN: 2})
	require.Len(t, got, 2)
	assert.Equal(t, "10.1/pb", got[0].DOI)
	assert.Equal(t, "10.1/pc", got[1].DOI)
	assert.Equal(t, []int{5, 9, 9, 1}, scoresOf(scored))
	assert.Nil(t, SelectSeeds(nil, SeedSelection{TopN: 3}))
}

func TestInitialMergesKeywordHitsAndSeeds(t *testing.T) {
	src := &fakeSource{
		hits: []types.RawPaper{
			raw("10.1/k1", "K1", 50, 2020, "a"),
			raw("10.1/k2", "K2", 50, 2020, "a"),
			raw("10.1/k3", "K3", 50, 2020, "a"),
		},
		details: map[string]search.PaperDetail{
			"10.1/seed": {
				RawPaper:   raw("10.1/seed", "Seed", 10, 2019, "s"),
				References: []types.RawPaper{raw("10.1/r1", "R1", 1, 2019, "r"), raw("10.1/r2", "R2", 1, 2019, "r")},
				Citations:  []types.RawPaper{raw("10.1/c1", "C1", 1, 2019, "c")},
			},
		},
	}
	c := New(src, zerolog.Nop(), nil)

	got := c.Initial(context.Background(), []string{"graph", "nets"}, []string{"10.1/seed"}, InitialOptions{KeywordLimit: 2, RelatedLimit: Unlimited})

	assert.Equal(t, []string{"K1", "K2", "Seed", "R1", "R2", "C1"}, titles(got))
	assert.Equal(t, []string{"graph", "nets"}, src.searched)
}

func TestInitialSeedFailureIsIsolated(t *testing.T) {
	src := &fakeSource{
		details: map[string]search.PaperDetail{
			"10.1/good": {RawPaper: raw("10.1/good", "Good", 10, 2020, "g")},
		},
		failDOIs: map[string]bool{"10.1/bad": true},
	}
	c := New(src, zerolog.Nop(), nil)

	got := c.Initial(context.Background(), nil, []string{"10.1/bad", "10.1/good", "10.1/GOOD"}, InitialOptions{RelatedLimit: Unlimited})

	assert.Equal(t, []string{"Good"}, titles(got))
	assert.Equal(t, []string{"10.1/bad", "10.1/good"}, src.lookups)
	assert.Empty(t, src.searched)
}

func TestInitialKeywordSearchFailureYieldsNoHits(t *testing.T) {
	src := &fakeSource{searchErr: errors.New("retries exhausted")}
	c := New(src, zerolog.Nop(), nil)
	got := c.Initial(context.Background(), []string{"x"}, nil, InitialOptions{KeywordLimit: 100})
	assert.Empty(t, got)
}

func TestInitialSnowballsFromKeywordHits(t *testing.T) {
	src := &fakeSource{
		hits: []types.RawPaper{
			raw("10.1/k1", "K1", 50, 2020, "a"),
			{Title: "No DOI"},
			raw("10.1/k3", "K3", 50, 2020, "a"),
		},
		details: map[string]search.PaperDetail{
			"10.1/k1": {References: []types.RawPaper{raw("10.1/r1", "R1", 1, 2019, "r")}},
			"10.1/k3": {Citations: []types.RawPaper{raw("10.1/c3", "C3", 1, 2019, "c")}},
		},
	}
	c := New(src, zerolog.Nop(), nil)

	got := c.Initial(context.Background(), []string{"x"}, nil, InitialOptions{KeywordLimit: 100, SnowballFromKeywords: 2, RelatedLimit: Unlimited})

	assert.Equal(t, []string{"K1", "No DOI", "K3", "R1"}, titles(got))
	assert.Equal(t, []string{"10.1/k1"}, src.related)
}

func TestSnowballReferencesThenCitationsTruncated(t *testing.T) {
	src := &fakeSource{
		details: map[string]search.PaperDetail{
			"10.1/pa": {
				References: []types.RawPaper{raw("10.1/r1", "R1", 1, 2019, "r"), raw("10.1/r2", "R2", 1, 2019, "r")},
				Citations:  []types.RawPaper{raw("10.1/c1", "C1", 1, 2019, "c")},
			},
			"10.1/pb": {
				Citations: []types.RawPaper{raw("10.1/c2", "C2", 1, 2019, "c")},
			},
		},
		failDOIs: map[string]bool{"10.1/pc": true},
	}
	c := New(src, zerolog.Nop(), nil)
	scored := scoredWith(9, 8, 7, 1)

	all := c.Snowball(context.Background(), scored, SeedSelection{TopN: 3}, Unlimited)
	assert.Equal(t, []string{"R1", "R2", "C1", "C2"}, titles(all))
	assert.Equal(t, []string{"10.1/pa", "10.1/pb", "10.1/pc"}, src.related)

	limited := c.Snowball(context.Background(), scored, SeedSelection{TopN: 2}, 2)
	assert.Equal(t, []string{"R1", "R2", "C2"}, titles(limited))
}

func TestTruncate(t *testing.T) {
	papers := []types.RawPaper{{Title: "a"}, {Title: "b"}, {Title: "c"}}
	assert.Len(t, truncate(papers, Unlimited), 3)
	assert.Len(t, truncate(papers, 2), 2)
	assert.Len(t, truncate(papers, 5), 3)
	assert.Empty(t, truncate(papers, 0))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/review-matrix/internal/secrets"
	"github.com/pdiddy/review-matrix/pkg/types"
)

func loadYAML(t *testing.T, body string) (types.ReviewConfig, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "review-matrix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	v := viper.New()
	Configure(v, path)
	require.NoError(t, Read(v))
	return Load(v)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	c := cfg.SearchCriteria

	assert.Equal(t, 100, c.KeywordSearchLimit)
	assert.Equal(t, -1, c.MaxRelatedPapers)
	assert.Equal(t, 0, c.SnowballFromKeywordsLimit)
	assert.Equal(t, 10, c.MinCitations)
	assert.Equal(t, []int{2000, 2025}, c.YearRange)
	assert.Equal(t, 7, c.ScreeningThreshold)
	assert.Equal(t, 1, c.Iterations)
	assert.Equal(t, 5, c.TopNForSnowball)
	assert.Equal(t, 10, c.MaxRetries)
	assert.Equal(t, DefaultModel, cfg.LLM.ModelScreening)
	assert.Equal(t, DefaultModel, cfg.LLM.ModelExtraction)
	assert.Equal(t, 5, cfg.LLM.MaxScreeningWorkers)
	assert.Equal(t, 30*time.Second, cfg.Search.Timeout)
	assert.Equal(t, time.Second, cfg.Search.EnrichmentDelay)
	assert.Equal(t, []string{"arxiv"}, cfg.Search.AbstractSources)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	cfg, err := loadYAML(t, `
project_name: gnn
search_criteria:
  keywords: [graph neural network, molecules]
  seed_paper_dois: ["10.1038/nature14539"]
  year_range: [2015, 2024]
  iterations: 3
llm_settings:
  max_screening_workers: 8
search:
  timeout: 10s
`)
	require.NoError(t, err)
	assert.Equal(t, "gnn", cfg.ProjectName)
	assert.Equal(t, []string{"graph neural network", "molecules"}, cfg.SearchCriteria.Keywords)
	assert.Equal(t, []string{"10.1038/nature14539"}, cfg.SearchCriteria.SeedPaperDOIs)
	assert.Equal(t, []int{2015, 2024}, cfg.SearchCriteria.YearRange)
	assert.Equal(t, 3, cfg.SearchCriteria.Iterations)
	assert.Equal(t, 8, cfg.LLM.MaxScreeningWorkers)
	assert.Equal(t, 10*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 10, cfg.SearchCriteria.MinCitations)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("REVIEW_MATRIX_SEARCH_CRITERIA_MIN_CITATIONS", "50")
	cfg, err := loadYAML(t, "search_criteria:\n  keywords: [x]\n")
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.SearchCriteria.MinCitations)
}

func TestReadMissingDefaultFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	v := viper.New()
	Configure(v, "")
	assert.NoError(t, Read(v))
}

func TestValidate(t *testing.T) {
	valid := func() types.ReviewConfig {
		cfg := Defaults()
		cfg.SearchCriteria.Keywords = []string{"graph"}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*types.ReviewConfig)
		wantErr string
	}{
		{"valid", func(*types.ReviewConfig) {}, ""},
		{"seeds only", func(c *types.ReviewConfig) {
			c.SearchCriteria.Keywords = nil
			c.SearchCriteria.SeedPaperDOIs = []string{"10.1145/3292500.3330701"}
		}, ""},
		{"no keywords or seeds", func(c *types.ReviewConfig) { c.SearchCriteria.Keywords = nil }, "keywords or seed_paper_dois"},
		{"bad doi", func(c *types.ReviewConfig) {
			c.SearchCriteria.SeedPaperDOIs = []string{"not-a-doi"}
		}, `"not-a-doi" is not a DOI`},
		{"year order", func(c *types.ReviewConfig) { c.SearchCriteria.YearRange = []int{2024, 2010} }, "from must not be after to"},
		{"year length", func(c *types.ReviewConfig) { c.SearchCriteria.YearRange = []int{2024} }, "year_range must have 2 entries"},
		{"threshold", func(c *types.ReviewConfig) { c.SearchCriteria.ScreeningThreshold = 11 }, "screening_threshold must be at most 10"},
		{"workers", func(c *types.ReviewConfig) { c.LLM.MaxExtractionWorkers = 0 }, "max_extraction_workers must be at least 1"},
		{"workers cap", func(c *types.ReviewConfig) { c.LLM.MaxScreeningWorkers = 21 }, "max_screening_workers must be at most 20"},
		{"iterations", func(c *types.ReviewConfig) { c.SearchCriteria.Iterations = 0 }, "iterations must be at least 1"},
		{"log format", func(c *types.ReviewConfig) { c.Logging.Format = "xml" }, `logging.format: "xml" must be one of [json console]`},
		{"abstract source", func(c *types.ReviewConfig) { c.Search.AbstractSources = []string{"arxiv", "crossref"} }, `"crossref" must be one of`},
		{"no abstract source", func(c *types.ReviewConfig) { c.Search.AbstractSources = nil }, "abstract_sources must be at least 1"},
		{"project slash", func(c *types.ReviewConfig) { c.ProjectName = "a/b" }, "project_name"},
		{"empty model", func(c *types.ReviewConfig) { c.LLM.ModelScreening = "" }, "model_screening is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveCredentials(t *testing.T) {
	t.Setenv(GoogleAPIKeyEnv, "")
	t.Setenv(SemanticScholarAPIKeyEnv, "")
	t.Setenv(OpenAlexEmailEnv, "")

	var cfg types.ReviewConfig
	err := ResolveCredentials(&cfg, secrets.Set{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	s := secrets.Set{
		secrets.GoogleAPIKey:          "g-file",
		secrets.SemanticScholarAPIKey: "s2-file",
		secrets.OpenAlexEmail:         "me@example.com",
	}
	require.NoError(t, ResolveCredentials(&cfg, s))
	assert.Equal(t, "g-file", cfg.LLM.APIKey)
	assert.Equal(t, "s2-file", cfg.Search.SemanticScholarAPIKey)
	assert.Equal(t, "me@example.com", cfg.Search.OpenAlexEmail)

	t.Setenv(GoogleAPIKeyEnv, "g-env")
	cfg = types.ReviewConfig{}
	require.NoError(t, ResolveCredentials(&cfg, s))
	assert.Equal(t, "g-env", cfg.LLM.APIKey)
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("REVIEW_MATRIX_TEST_DOTENV=from-file\nREVIEW_MATRIX_TEST_KEEP=from-file\n"), 0o644))
	t.Setenv("REVIEW_MATRIX_TEST_KEEP", "from-env")
	t.Setenv("REVIEW_MATRIX_TEST_DOTENV", "")
	os.Unsetenv("REVIEW_MATRIX_TEST_DOTENV")

	LoadDotEnv()
	assert.Equal(t, "from-file", os.Getenv("REVIEW_MATRIX_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("REVIEW_MATRIX_TEST_KEEP"))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the review-matrix pipeline:
// the paper records that flow from collection through scoring and extraction,
// and the configuration consumed by each stage.
package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-attempt HTTP request timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig holds settings for the bibliographic and abstract APIs.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"-" yaml:"-" mapstructure:"semantic_scholar_api_key"`

	// RequestsPerSecond throttles Semantic Scholar calls (0 disables the limiter).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gte=0"`

	// EnrichmentDelay is the pause between abstract lookups (default 1s).
	EnrichmentDelay time.Duration `json:"enrichment_delay" yaml:"enrichment_delay" mapstructure:"enrichment_delay"`

	// AbstractSources lists the abstract indexes consulted in order
	// (default [arxiv]).
	AbstractSources []string `json:"abstract_sources" yaml:"abstract_sources" mapstructure:"abstract_sources" validate:"min=1,dive,oneof=arxiv openalex"`

	// OpenAlexEmail is sent to OpenAlex for polite pool access.
	OpenAlexEmail string `json:"-" yaml:"-" mapstructure:"openalex_email"`
}

// SearchCriteria drives collection, snowballing and screening.
type SearchCriteria struct {
	// Keywords are joined with spaces to form the keyword search query.
	Keywords []string `json:"keywords" yaml:"keywords" mapstructure:"keywords" validate:"dive,required"`

	// NaturalLanguageQuery is the research scope given to the scorer. When
	// empty the scope is derived from Keywords.
	NaturalLanguageQuery string `json:"natural_language_query" yaml:"natural_language_query" mapstructure:"natural_language_query"`

	// SeedPaperDOIs are looked up directly and added to the first frontier.
	SeedPaperDOIs []string `json:"seed_paper_dois" yaml:"seed_paper_dois" mapstructure:"seed_paper_dois" validate:"dive,doi"`

	// KeywordSearchLimit caps keyword search hits (default 100).
	KeywordSearchLimit int `json:"keyword_search_limit" yaml:"keyword_search_limit" mapstructure:"keyword_search_limit" validate:"min=1,max=100"`

	// MaxRelatedPapers truncates references+citations per seed; -1 is unlimited.
	MaxRelatedPapers int `json:"max_related_papers" yaml:"max_related_papers" mapstructure:"max_related_papers" validate:"min=-1"`

	// SnowballFromKeywordsLimit adds the DOIs of the first N keyword hits to
	// the initial snowball seeds (0 disables).
	SnowballFromKeywordsLimit int `json:"snowball_from_keywords_limit" yaml:"snowball_from_keywords_limit" mapstructure:"snowball_from_keywords_limit" validate:"min=0"`

	// MinCitations drops papers whose known citation count is lower.
	MinCitations int `json:"min_citations" yaml:"min_citations" mapstructure:"min_citations" validate:"min=0"`

	// YearRange is the inclusive [from, to] publication year window.
	YearRange []int `json:"year_range" yaml:"year_range" mapstructure:"year_range" validate:"len=2"`

	// ScreeningThreshold is the minimum score for extraction and, when
	// UseThresholdForSnowball is set, for snowball seeding.
	ScreeningThreshold int `json:"screening_threshold" yaml:"screening_threshold" mapstructure:"screening_threshold" validate:"min=0,max=10"`

	// UseThresholdForSnowball widens snowball seeding to every paper scoring
	// at least ScreeningThreshold when that selects more than TopNForSnowball.
	UseThresholdForSnowball bool `json:"use_threshold_for_snowball" yaml:"use_threshold_for_snowball" mapstructure:"use_threshold_for_snowball"`

	// Iterations is the number of collect-score rounds (default 1).
	Iterations int `json:"iterations" yaml:"iterations" mapstructure:"iterations" validate:"min=1"`

	// TopNForSnowball is the snowball fan-out per round (default 5).
	TopNForSnowball int `json:"top_n_for_snowball" yaml:"top_n_for_snowball" mapstructure:"top_n_for_snowball" validate:"min=0"`

	// MaxRetries is the attempt budget for rate-limited API calls (default 10).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"min=1"`
}

// YearBounds returns the inclusive year window.
func (c SearchCriteria) YearBounds() (from, to int) {
	if len(c.YearRange) != 2 {
		return 0, 0
	}
	return c.YearRange[0], c.YearRange[1]
}

// LLMSettings holds settings for the Gemini calls.
type LLMSettings struct {
	// APIKey is the Gemini key. Never read from the config file.
	APIKey string `json:"-" yaml:"-" mapstructure:"-"`

	// ModelScreening is the model used for relevance scoring.
	ModelScreening string `json:"model_screening" yaml:"model_screening" mapstructure:"model_screening" validate:"required"`

	// ModelExtraction is the model used for structured extraction.
	ModelExtraction string `json:"model_extraction" yaml:"model_extraction" mapstructure:"model_extraction" validate:"required"`

	// MaxScreeningWorkers bounds concurrent scoring calls (default 5).
	MaxScreeningWorkers int `json:"max_screening_workers" yaml:"max_screening_workers" mapstructure:"max_screening_workers" validate:"min=1,max=20"`

	// MaxExtractionWorkers bounds concurrent extraction calls (default 5).
	MaxExtractionWorkers int `json:"max_extraction_workers" yaml:"max_extraction_workers" mapstructure:"max_extraction_workers" validate:"min=1,max=20"`

	// PromptsDir optionally holds screening.txt / extraction.txt overrides.
	PromptsDir string `json:"prompts_dir" yaml:"prompts_dir" mapstructure:"prompts_dir"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn warning error"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// ReviewConfig groups everything one pipeline run needs.
type ReviewConfig struct {
	ProjectName    string         `json:"project_name" yaml:"project_name" mapstructure:"project_name" validate:"required,excludesall=/\\"`
	DataDir        string         `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir" validate:"required"`
	SearchCriteria SearchCriteria `json:"search_criteria" yaml:"search_criteria" mapstructure:"search_criteria"`
	LLM            LLMSettings    `json:"llm_settings" yaml:"llm_settings" mapstructure:"llm_settings"`
	Search         SearchConfig   `json:"search" yaml:"search" mapstructure:"search"`
	Logging        LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads and validates the review configuration.
//
// Values come from a YAML file, REVIEW_MATRIX_* environment variables and
// the defaults registered by SetDefaults, in viper's usual precedence.
// Credentials never come from the config file; see ResolveCredentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pdiddy/review-matrix/internal/secrets"
	"github.com/pdiddy/review-matrix/pkg/types"
)

// Config file and environment naming.
const (
	FileName  = "review-matrix"
	EnvPrefix = "REVIEW_MATRIX"
)

// Credential environment variables.
const (
	GoogleAPIKeyEnv          = "GOOGLE_API_KEY"
	SemanticScholarAPIKeyEnv = "SEMANTIC_SCHOLAR_API_KEY"
	OpenAlexEmailEnv         = "OPENALEX_EMAIL"
)

// DefaultModel is used for both screening and extraction.
const DefaultModel = "gemini-2.0-flash-lite"

// ErrMissingAPIKey is returned when no Google API key can be found.
var ErrMissingAPIKey = errors.New("GOOGLE_API_KEY not found in environment, .env or " + secrets.DefaultDir + "/" + secrets.GoogleAPIKey)

var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/[-._;()/:a-zA-Z0-9]+$`)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project_name", "review")
	v.SetDefault("data_dir", "data")

	v.SetDefault("search_criteria.keywords", []string{})
	v.SetDefault("search_criteria.natural_language_query", "")
	v.SetDefault("search_criteria.seed_paper_dois", []string{})
	v.SetDefault("search_criteria.keyword_search_limit", 100)
	v.SetDefault("search_criteria.max_related_papers", -1)
	v.SetDefault("search_criteria.snowball_from_keywords_limit", 0)
	v.SetDefault("search_criteria.min_citations", 10)
	v.SetDefault("search_criteria.year_range", []int{2000, 2025})
	v.SetDefault("search_criteria.screening_threshold", 7)
	v.SetDefault("search_criteria.use_threshold_for_snowball", false)
	v.SetDefault("search_criteria.iterations", 1)
	v.SetDefault("search_criteria.top_n_for_snowball", 5)
	v.SetDefault("search_criteria.max_retries", 10)

	v.SetDefault("llm_settings.model_screening", DefaultModel)
	v.SetDefault("llm_settings.model_extraction", DefaultModel)
	v.SetDefault("llm_settings.max_screening_workers", 5)
	v.SetDefault("llm_settings.max_extraction_workers", 5)
	v.SetDefault("llm_settings.prompts_dir", "")

	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("search.user_agent", "review-matrix")
	v.SetDefault("search.requests_per_second", 1.0)
	v.SetDefault("search.enrichment_delay", time.Second)
	v.SetDefault("search.abstract_sources", []string{"arxiv"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Configure points v at the config file and environment. An empty file
// searches ./review-matrix.yaml and ~/.config/review-matrix/.
func Configure(v *viper.Viper, file string) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// Read loads the config file into v. A missing file is not an error when
// no explicit path was configured.
func Read(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("reading config: %w", err)
}

// Load decodes v into a ReviewConfig and validates it.
func Load(v *viper.Viper) (types.ReviewConfig, error) {
	var cfg types.ReviewConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Defaults returns the configuration produced by SetDefaults alone.
func Defaults() types.ReviewConfig {
	v := viper.New()
	SetDefaults(v)
	var cfg types.ReviewConfig
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Validate checks cfg against its field rules and the cross-field rules.
func Validate(cfg types.ReviewConfig) error {
	err := newValidator().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("doi", func(fl validator.FieldLevel) bool {
		return doiPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	v.RegisterStructValidation(validateCriteria, types.SearchCriteria{})
	return v
}

func validateCriteria(sl validator.StructLevel) {
	c := sl.Current().Interface().(types.SearchCriteria)
	if len(c.Keywords) == 0 && len(c.SeedPaperDOIs) == 0 {
		sl.ReportError(c.Keywords, "keywords", "Keywords", "keywords_or_seeds", "")
	}
	if from, to := c.YearBounds(); len(c.YearRange) == 2 && from > to {
		sl.ReportError(c.YearRange, "year_range", "YearRange", "year_order", "")
	}
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "keywords_or_seeds":
		return field + ": keywords or seed_paper_dois must be given"
	case "year_order":
		return field + ": from must not be after to"
	case "doi":
		return fmt.Sprintf("%s: %q is not a DOI", field, fe.Value())
	case "len":
		return fmt.Sprintf("%s must have %s entries", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		if fe.Kind() == reflect.String && fe.Value() != nil {
			return fmt.Sprintf("%s: %q must be one of [%s]", field, fe.Value(), fe.Param())
		}
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// LoadDotEnv loads ~/.env and ./.env without overriding variables that are
// already set. Missing files are ignored.
func LoadDotEnv() {
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".env"))
	}
	_ = godotenv.Load()
}

// ResolveCredentials fills the API keys from the environment or the
// secrets set. The Google key is required.
func ResolveCredentials(cfg *types.ReviewConfig, s secrets.Set) error {
	cfg.LLM.APIKey = s.Resolve(GoogleAPIKeyEnv, secrets.GoogleAPIKey)
	if cfg.Search.SemanticScholarAPIKey == "" {
		cfg.Search.SemanticScholarAPIKey = s.Resolve(SemanticScholarAPIKeyEnv, secrets.SemanticScholarAPIKey)
	}
	if cfg.Search.OpenAlexEmail == "" {
		cfg.Search.OpenAlexEmail = s.Resolve(OpenAlexEmailEnv, secrets.OpenAlexEmail)
	}
	if cfg.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

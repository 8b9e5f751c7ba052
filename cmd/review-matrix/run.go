// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/review-matrix/internal/checkpoint"
	"github.com/pdiddy/review-matrix/internal/collect"
	"github.com/pdiddy/review-matrix/internal/config"
	"github.com/pdiddy/review-matrix/internal/extract"
	"github.com/pdiddy/review-matrix/internal/httputil"
	"github.com/pdiddy/review-matrix/internal/llm"
	"github.com/pdiddy/review-matrix/internal/observability"
	"github.com/pdiddy/review-matrix/internal/review"
	"github.com/pdiddy/review-matrix/internal/screen"
	"github.com/pdiddy/review-matrix/internal/search"
	"github.com/pdiddy/review-matrix/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run (or resume) a literature review",
	Long: `Run collects, scores and snowballs papers for the configured number of
iterations, then extracts structured fields from every paper that clears
the screening threshold and writes final/final_review_matrix.csv.

A new run directory <data_dir>/<YYYYMMDD_HHMMSS>_<project_name> is created
unless --run-dir names an existing one, in which case the run resumes from
its checkpoints using the config snapshot stored there.`,
	RunE: runReview,
}

func init() {
	runCmd.Flags().String("run-dir", "", "resume an existing run directory")
	rootCmd.AddCommand(runCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runDir, _ := cmd.Flags().GetString("run-dir")

	cfg, run, err := prepareRun(runDir)
	if err != nil {
		return err
	}

	logFile, err := run.OpenLog()
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger := observability.NewLogger(cfg.Logging, logFile)
	metrics := observability.NewMetrics()

	pipeline, err := buildPipeline(ctx, cfg, run, logger, metrics)
	if err != nil {
		logger.Error().Err(err).Msg("could not start review")
		return err
	}

	res, err := pipeline.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("review failed")
		return err
	}

	switch {
	case res.Artifact == "":
		fmt.Fprintln(os.Stdout, "No papers collected.")
	case res.Fallback:
		fmt.Fprintf(os.Stdout, "No paper cleared the threshold; %d scored papers written to %s\n", res.Papers, res.Artifact)
	default:
		fmt.Fprintf(os.Stdout, "%d papers written to %s\n", res.Papers, res.Artifact)
	}
	if res.Extraction.HasFailures() {
		fmt.Fprintf(os.Stdout, "%d of %d extractions failed\n", res.Extraction.Failed, res.Extraction.Total())
	}
	return nil
}

// prepareRun resolves the configuration and run directory. A resumed run
// uses the config snapshot saved when it was created. Credentials are
// resolved before a new run directory is created.
func prepareRun(runDir string) (types.ReviewConfig, checkpoint.RunDir, error) {
	var (
		cfg types.ReviewConfig
		run checkpoint.RunDir
		err error
	)

	if runDir != "" {
		if run, err = checkpoint.Open(runDir); err != nil {
			return cfg, run, err
		}
		if cfg, err = resumeConfig(run); err != nil {
			return cfg, run, err
		}
	} else if cfg, err = config.Load(viper.GetViper()); err != nil {
		return cfg, run, err
	}

	if err := config.ResolveCredentials(&cfg, loadedSecrets); err != nil {
		return cfg, run, err
	}

	if runDir == "" {
		if run, err = checkpoint.Create(cfg.DataDir, cfg.ProjectName, time.Now()); err != nil {
			return cfg, run, err
		}
	}
	if err := run.SaveConfig(cfg); err != nil {
		return cfg, run, err
	}
	return cfg, run, nil
}

// resumeConfig loads the snapshot stored in run, falling back to the
// current configuration when the run has none.
func resumeConfig(run checkpoint.RunDir) (types.ReviewConfig, error) {
	if !checkpoint.Exists(run.Path(checkpoint.ConfigFile)) {
		return config.Load(viper.GetViper())
	}
	cfg, err := run.LoadConfig()
	if err != nil {
		return cfg, err
	}
	return cfg, config.Validate(cfg)
}

func buildPipeline(ctx context.Context, cfg types.ReviewConfig, run checkpoint.RunDir, logger zerolog.Logger, metrics *observability.Metrics) (*review.Pipeline, error) {
	timeout := cfg.Search.Timeout
	if timeout <= 0 {
		timeout = httputil.DefaultTimeout
	}
	hc := &http.Client{Timeout: timeout}

	policy := httputil.DefaultRetryPolicy(cfg.SearchCriteria.MaxRetries)
	s2 := search.NewSemanticScholar(cfg.Search, policy, hc, logger, metrics)
	indexes, err := abstractIndexes(cfg.Search, hc)
	if err != nil {
		return nil, err
	}

	prompts, err := llm.LoadPrompts(cfg.LLM.PromptsDir)
	if err != nil {
		return nil, err
	}
	gemini, err := llm.NewGemini(ctx, cfg.LLM, prompts, metrics)
	if err != nil {
		return nil, err
	}

	enricher := collect.NewEnricher(indexes, cfg.Search.EnrichmentDelay, observability.Component(logger, "enricher"), metrics)
	stages := review.Stages{
		Collector:  collect.New(s2, observability.Component(logger, "collector"), metrics),
		Normalizer: collect.NewNormalizer(enricher, observability.Component(logger, "collector"), metrics),
		Screener:   screen.New(gemini, cfg.LLM.MaxScreeningWorkers, observability.Component(logger, "screener")),
		Extractor:  extract.New(gemini, cfg.LLM.MaxExtractionWorkers, observability.Component(logger, "extractor")),
	}
	return review.New(cfg, run, stages, observability.Component(logger, "pipeline"), metrics), nil
}

// abstractIndexes builds the configured abstract sources in order.
func abstractIndexes(cfg types.SearchConfig, hc *http.Client) ([]collect.AbstractIndex, error) {
	var out []collect.AbstractIndex
	for _, name := range cfg.AbstractSources {
		switch name {
		case "arxiv":
			out = append(out, search.NewArxiv(hc, cfg.UserAgent))
		case "openalex":
			out = append(out, search.NewOpenAlex(hc, cfg.OpenAlexEmail, cfg.UserAgent))
		default:
			return nil, fmt.Errorf("unknown abstract source %q", name)
		}
	}
	return out, nil
}

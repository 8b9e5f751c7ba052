// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the review-matrix CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/review-matrix/internal/config"
	"github.com/pdiddy/review-matrix/internal/observability"
	"github.com/pdiddy/review-matrix/internal/secrets"
	"github.com/pdiddy/review-matrix/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets secrets.Set

// rootCmd is the base command for the review-matrix CLI.
var rootCmd = &cobra.Command{
	Use:   "review-matrix",
	Short: "Build a systematic literature review matrix",
	Long: `review-matrix collects candidate papers by keyword search, seed DOIs and
citation snowballing, scores each one for relevance with an LLM, and extracts
structured review fields from the papers that clear the screening threshold.

Every phase is checkpointed in a run directory so an interrupted run can be
resumed with --run-dir. The final matrix is written as CSV and indexed in
SQLite for the matrix subcommands.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()

		startup := observability.NewLogger(startupLogging())
		s, err := secrets.Load(secrets.DefaultDir, startup)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			startup.Debug().Strs("secrets", s.Names()).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./review-matrix.yaml or ~/.config/review-matrix/review-matrix.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	v := viper.GetViper()
	config.Configure(v, cfgFile)
	if err := config.Read(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if used := v.ConfigFileUsed(); used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}

// startupLogging returns the logging settings from viper before the full
// config has been validated.
func startupLogging() types.LoggingConfig {
	return types.LoggingConfig{
		Level:  viper.GetString("logging.level"),
		Format: viper.GetString("logging.format"),
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Error().Err(err).Msg("review-matrix failed")
		stop()
		os.Exit(1)
	}
}

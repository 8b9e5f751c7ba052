// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/review-matrix/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Init writes review-matrix.yaml with every setting at its default value
and example keywords. Edit the search criteria, then start a review with
"review-matrix run". API keys are not stored in the file; set GOOGLE_API_KEY
(and optionally SEMANTIC_SCHOLAR_API_KEY) in the environment or .env, or
place them in .secrets/.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringP("output", "o", config.FileName+".yaml", "path of the config file to write")
	initCmd.Flags().Bool("force", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(output); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", output)
	}

	cfg := config.Defaults()
	cfg.ProjectName = "my_review"
	cfg.SearchCriteria.Keywords = []string{"graph neural network", "drug discovery"}
	cfg.SearchCriteria.NaturalLanguageQuery = "Graph neural network methods for molecular property prediction"

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	fmt.Fprintf(os.Stdout, "Wrote %s\n", output)
	return nil
}

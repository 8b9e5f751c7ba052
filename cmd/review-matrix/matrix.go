// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/review-matrix/internal/checkpoint"
	"github.com/pdiddy/review-matrix/internal/matrix"
	"github.com/pdiddy/review-matrix/pkg/types"
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Search or export a finished review matrix",
	Long: `Matrix works with the SQLite index written to final/review.db at the end
of a run. Use subcommands to search it or export it.`,
}

// --- query subcommand ---

var matrixQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the review matrix with full-text search and filters",
	Long: `Query searches titles, abstracts and summaries with FTS5 full-text
search, optionally filtered by minimum relevance score and category. Without
a query text the matrix is listed highest score first.`,
	RunE: runMatrixQuery,
}

func runMatrixQuery(cmd *cobra.Command, args []string) error {
	store, err := openMatrix(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	opts, err := queryOptsFromFlags(cmd, args)
	if err != nil {
		return err
	}
	results, err := store.Query(cmd.Context(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatQueryOutput(os.Stdout, results, jsonOutput)
}

func formatQueryOutput(w io.Writer, results []types.ExtractedPaper, jsonOutput bool) error {
	if jsonOutput {
		if results == nil {
			results = []types.ExtractedPaper{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "%-4s  %-5s  %-12s  %-50s  %s\n", "Rank", "Score", "Category", "Title", "DOI")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for i, r := range results {
		title := r.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(w, "%-4d  %-5d  %-12s  %-50s  %s\n", i+1, r.RelevanceScore, r.Category, title, r.DOI)
	}
	fmt.Fprintf(w, "\n%d results\n", len(results))
	return nil
}

// --- export subcommand ---

var matrixExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the review matrix to YAML or JSON",
	Long: `Export writes the full matrix (or a filtered subset) as YAML or JSON to
stdout or to --output. Supports the same filter flags as query.`,
	RunE: runMatrixExport,
}

func runMatrixExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	store, err := openMatrix(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	opts, err := queryOptsFromFlags(cmd, args)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}
	if err := store.Export(cmd.Context(), w, format, opts); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "Exported to %s\n", output)
	}
	return nil
}

// --- shared helpers ---

func openMatrix(cmd *cobra.Command) (*matrix.Store, error) {
	runDir, _ := cmd.Flags().GetString("run-dir")
	run, err := checkpoint.Open(runDir)
	if err != nil {
		return nil, err
	}
	if !checkpoint.Exists(run.MatrixDB()) {
		return nil, fmt.Errorf("no matrix index in %s (has the run finished?)", runDir)
	}
	return matrix.Open(run.MatrixDB())
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) (matrix.QueryOptions, error) {
	minScore, _ := cmd.Flags().GetInt("min-score")
	category, _ := cmd.Flags().GetString("category")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	opts := matrix.QueryOptions{
		Text:       strings.Join(args, " "),
		MinScore:   minScore,
		MaxResults: maxResults,
	}
	if category != "" {
		c := types.Category(category)
		if !c.Valid() && c != types.CategoryError {
			return opts, fmt.Errorf("unknown category %q", category)
		}
		opts.Category = c
	}
	return opts, nil
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("run-dir", "", "run directory containing final/review.db")
	cmd.Flags().Int("min-score", 0, "minimum relevance score")
	cmd.Flags().String("category", "", "filter by category (Method, Survey, Theory, Application)")
	_ = cmd.MarkFlagRequired("run-dir")
}

func init() {
	addFilterFlags(matrixQueryCmd)
	matrixQueryCmd.Flags().Int("max-results", 20, "maximum number of results")
	matrixQueryCmd.Flags().Bool("json", false, "output results as JSON")

	addFilterFlags(matrixExportCmd)
	matrixExportCmd.Flags().Int("max-results", 0, "maximum number of results (0 exports all)")
	matrixExportCmd.Flags().String("format", matrix.FormatYAML, "export format: yaml or json")
	matrixExportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")

	matrixCmd.AddCommand(matrixQueryCmd, matrixExportCmd)
	rootCmd.AddCommand(matrixCmd)
}

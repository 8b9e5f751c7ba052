// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pdiddy/review-matrix/pkg/types"
)

// bom is the UTF-8 byte order mark written at the start of every table so
// spreadsheet tools detect the encoding.
const bom = "\ufeff"

var (
	rawColumns = []string{"paper_id", "doi", "title", "year", "citation_count", "abstract", "url"}

	scoredColumns = []string{
		"doi", "title", "year", "citation_count", "abstract", "url", "iteration",
		"relevance_score", "relevance_reason", "summary",
	}

	extractedColumns = append(append([]string{}, scoredColumns...),
		"problem", "method", "dataset", "metric", "limitation", "category", "one_line_summary")
)

// WriteRaw persists a raw frontier.
func WriteRaw(path string, papers []types.RawPaper) error {
	rows := make([][]string, len(papers))
	for i, p := range papers {
		rows[i] = []string{p.PaperID, p.DOI(), p.Title, formatInt(p.Year), formatInt(p.CitationCount), p.Abstract, p.URL}
	}
	return writeTable(path, rawColumns, rows)
}

// ReadRaw loads a raw frontier written by WriteRaw.
func ReadRaw(path string) ([]types.RawPaper, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	out := make([]types.RawPaper, 0, len(t.rows))
	for i := range t.rows {
		p := types.RawPaper{
			PaperID:  t.get(i, "paper_id"),
			Title:    t.get(i, "title"),
			Abstract: t.get(i, "abstract"),
			URL:      t.get(i, "url"),
		}
		if doi := t.get(i, "doi"); doi != "" {
			p.ExternalIDs = &types.ExternalIDs{DOI: doi}
		}
		if p.Year, err = t.optInt(i, "year"); err != nil {
			return nil, err
		}
		if p.CitationCount, err = t.optInt(i, "citation_count"); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// WriteScored persists a scored table. An empty slice writes a header-only
// file.
func WriteScored(path string, papers []types.ScoredPaper) error {
	rows := make([][]string, len(papers))
	for i, p := range papers {
		rows[i] = scoredRow(p)
	}
	return writeTable(path, scoredColumns, rows)
}

// ReadScored loads a table written by WriteScored.
func ReadScored(path string) ([]types.ScoredPaper, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	out := make([]types.ScoredPaper, 0, len(t.rows))
	for i := range t.rows {
		p, err := t.scored(i)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// WriteExtracted persists the final review matrix.
func WriteExtracted(path string, papers []types.ExtractedPaper) error {
	rows := make([][]string, len(papers))
	for i, p := range papers {
		rows[i] = append(scoredRow(p.ScoredPaper),
			p.Problem, p.Method, p.Dataset, p.Metric, p.Limitation, string(p.Category), p.OneLineSummary)
	}
	return writeTable(path, extractedColumns, rows)
}

// ReadExtracted loads a matrix written by WriteExtracted.
func ReadExtracted(path string) ([]types.ExtractedPaper, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	out := make([]types.ExtractedPaper, 0, len(t.rows))
	for i := range t.rows {
		sp, err := t.scored(i)
		if err != nil {
			return nil, err
		}
		out = append(out, types.ExtractedPaper{
			ScoredPaper: sp,
			Extraction: types.Extraction{
				Problem:        t.get(i, "problem"),
				Method:         t.get(i, "method"),
				Dataset:        t.get(i, "dataset"),
				Metric:         t.get(i, "metric"),
				Limitation:     t.get(i, "limitation"),
				Category:       types.Category(t.get(i, "category")),
				OneLineSummary: t.get(i, "one_line_summary"),
			},
		})
	}
	return out, nil
}

func scoredRow(p types.ScoredPaper) []string {
	return []string{
		p.DOI, p.Title, formatInt(p.Year), formatInt(p.CitationCount), p.Abstract, p.URL,
		strconv.Itoa(p.Iteration), strconv.Itoa(p.RelevanceScore), p.RelevanceReason, p.Summary,
	}
}

func writeTable(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	buf.WriteString(bom)
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header of %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing rows of %s: %w", path, err)
	}
	return writeAtomic(path, buf.Bytes())
}

type table struct {
	path string
	cols map[string]int
	rows [][]string
}

func readTable(path string) (*table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, []byte(bom))

	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	t := &table{path: path, cols: map[string]int{}}
	if len(records) == 0 {
		return t, nil
	}
	for i, name := range records[0] {
		t.cols[strings.TrimSpace(name)] = i
	}
	t.rows = records[1:]
	return t, nil
}

func (t *table) get(row int, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(t.rows[row]) {
		return ""
	}
	return t.rows[row][i]
}

func (t *table) optInt(row int, col string) (*int, error) {
	s := strings.TrimSpace(t.get(row, col))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%s row %d: column %s: %w", t.path, row+2, col, err)
	}
	return &v, nil
}

func (t *table) reqInt(row int, col string) (int, error) {
	v, err := t.optInt(row, col)
	if err != nil || v == nil {
		return 0, err
	}
	return *v, nil
}

func (t *table) scored(i int) (types.ScoredPaper, error) {
	p := types.ScoredPaper{
		Candidate: types.Candidate{
			DOI:      t.get(i, "doi"),
			Title:    t.get(i, "title"),
			Abstract: t.get(i, "abstract"),
			URL:      t.get(i, "url"),
		},
		Screening: types.Screening{
			RelevanceReason: t.get(i, "relevance_reason"),
			Summary:         t.get(i, "summary"),
		},
	}
	var err error
	if p.Year, err = t.optInt(i, "year"); err != nil {
		return p, err
	}
	if p.CitationCount, err = t.optInt(i, "citation_count"); err != nil {
		return p, err
	}
	if p.Iteration, err = t.reqInt(i, "iteration"); err != nil {
		return p, err
	}
	if p.RelevanceScore, err = t.reqInt(i, "relevance_score"); err != nil {
		return p, err
	}
	return p, nil
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package matrix

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pdiddy/review-matrix/pkg/types"
)

// QueryOptions holds parameters for matrix queries.
type QueryOptions struct {
	// Text is an FTS5 query over title, abstract and summary. Without FTS5
	// it is matched as a case-insensitive substring.
	Text string

	// MinScore keeps papers scoring at least this much.
	MinScore int

	// Category filters by extraction category.
	Category types.Category

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Query returns matching papers. Full-text queries are ranked by FTS
// relevance; otherwise results follow matrix order (highest score first).
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]types.ExtractedPaper, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	const cols = `p.doi, p.title, p.year, p.citation_count, p.abstract, p.url, p.iteration,
		p.relevance_score, p.relevance_reason, p.summary,
		p.problem, p.method, p.dataset, p.metric, p.limitation, p.category, p.one_line_summary`

	var (
		qb     strings.Builder
		args   []any
		text   = strings.TrimSpace(opts.Text)
		useFTS = text != "" && s.fts
	)

	switch {
	case useFTS:
		qb.WriteString(`SELECT ` + cols + `
			FROM papers_fts
			JOIN papers p ON p.rowid = papers_fts.rowid
			WHERE papers_fts MATCH ?`)
		args = append(args, opts.Text)
	case text != "":
		qb.WriteString(`SELECT ` + cols + ` FROM papers p
			WHERE (p.title LIKE ? ESCAPE '\' OR p.abstract LIKE ? ESCAPE '\' OR p.summary LIKE ? ESCAPE '\')`)
		pattern := "%" + likeEscaper.Replace(text) + "%"
		args = append(args, pattern, pattern, pattern)
	default:
		qb.WriteString(`SELECT ` + cols + ` FROM papers p WHERE 1=1`)
	}

	if opts.MinScore > 0 {
		qb.WriteString(` AND p.relevance_score >= ?`)
		args = append(args, opts.MinScore)
	}
	if opts.Category != "" {
		qb.WriteString(` AND p.category = ?`)
		args = append(args, string(opts.Category))
	}

	if useFTS {
		qb.WriteString(` ORDER BY papers_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY p.position`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying matrix: %w", err)
	}
	defer rows.Close()

	var results []types.ExtractedPaper
	for rows.Next() {
		var (
			p         types.ExtractedPaper
			year      sql.NullInt64
			citations sql.NullInt64
			category  string
		)
		if err := rows.Scan(
			&p.DOI, &p.Title, &year, &citations, &p.Abstract, &p.URL, &p.Iteration,
			&p.RelevanceScore, &p.RelevanceReason, &p.Summary,
			&p.Problem, &p.Method, &p.Dataset, &p.Metric, &p.Limitation, &category, &p.OneLineSummary,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		p.Year = intPtr(year)
		p.CitationCount = intPtr(citations)
		p.Category = types.Category(category)
		results = append(results, p)
	}
	return results, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Count returns the number of indexed papers.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM papers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting papers: %w", err)
	}
	return n, nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package matrix indexes a finished review matrix in SQLite so it can be
// searched and exported after the run.
package matrix

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/review-matrix/pkg/types"
)

// Store is the SQLite index of one run's review matrix.
type Store struct {
	db         *sql.DB
	maxResults int

	// fts is false when the sqlite3 driver was built without FTS5; text
	// queries then fall back to substring matching.
	fts bool
}

// Open opens or creates the index at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, maxResults: 20}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// FullText reports whether text queries use the FTS5 index.
func (s *Store) FullText() bool {
	return s.fts
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doi TEXT NOT NULL UNIQUE,
			position INTEGER NOT NULL,
			title TEXT,
			year INTEGER,
			citation_count INTEGER,
			abstract TEXT,
			url TEXT,
			iteration INTEGER,
			relevance_score INTEGER NOT NULL,
			relevance_reason TEXT,
			summary TEXT,
			problem TEXT,
			method TEXT,
			dataset TEXT,
			metric TEXT,
			limitation TEXT,
			category TEXT,
			one_line_summary TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_score ON papers(relevance_score)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_category ON papers(category)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='papers_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		s.fts = true
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE papers_fts USING fts5(title, abstract, summary, content=papers, content_rowid=rowid)`,
		`CREATE TRIGGER papers_ai AFTER INSERT ON papers BEGIN
			INSERT INTO papers_fts(rowid, title, abstract, summary) VALUES (new.rowid, new.title, new.abstract, new.summary);
		END`,
		`CREATE TRIGGER papers_ad AFTER DELETE ON papers BEGIN
			INSERT INTO papers_fts(papers_fts, rowid, title, abstract, summary) VALUES('delete', old.rowid, old.title, old.abstract, old.summary);
		END`,
		`CREATE TRIGGER papers_au AFTER UPDATE ON papers BEGIN
			INSERT INTO papers_fts(papers_fts, rowid, title, abstract, summary) VALUES('delete', old.rowid, old.title, old.abstract, old.summary);
			INSERT INTO papers_fts(rowid, title, abstract, summary) VALUES (new.rowid, new.title, new.abstract, new.summary);
		END`,
	}
	for i, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			if i == 0 && strings.Contains(err.Error(), "no such module: fts5") {
				return nil
			}
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	s.fts = true
	return nil
}

// Ingest replaces the indexed matrix with papers, keeping their order.
// It returns the number of rows written.
func (s *Store) Ingest(ctx context.Context, papers []types.ExtractedPaper) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM papers`); err != nil {
		return 0, fmt.Errorf("clearing papers: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (doi, position, title, year, citation_count, abstract, url, iteration,
			relevance_score, relevance_reason, summary,
			problem, method, dataset, metric, limitation, category, one_line_summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(doi) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for i, p := range papers {
		res, err := stmt.ExecContext(ctx,
			p.DOI, i, p.Title, nullInt(p.Year), nullInt(p.CitationCount), p.Abstract, p.URL, p.Iteration,
			p.RelevanceScore, p.RelevanceReason, p.Summary,
			p.Problem, p.Method, p.Dataset, p.Metric, p.Limitation, string(p.Category), p.OneLineSummary,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting %s: %w", p.DOI, err)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			n++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return n, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

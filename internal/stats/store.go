// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stats builds a queryable SQLite index over the latest snapshot
// and author roster: per-journal and per-country distributions, top
// authors, reconciled-term frequencies, and full-text search over titles
// and abstracts.
package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/snapshot"
	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

const dbFile = "expert-db.sqlite"

// Store manages the analysis SQLite database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// NewStore opens or creates the analysis database under dir.
func NewStore(dir string, cfg types.StatsConfig) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating stats directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			pmid TEXT PRIMARY KEY,
			title TEXT,
			authors TEXT,
			journal TEXT,
			date TEXT,
			year INTEGER,
			abstract TEXT,
			keywords TEXT,
			mesh_terms TEXT,
			combined_terms TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS authors (
			author TEXT NOT NULL,
			author_id INTEGER NOT NULL,
			affiliation TEXT,
			organization TEXT,
			city TEXT,
			country TEXT,
			pmid_count INTEGER,
			pmids TEXT,
			PRIMARY KEY (author, author_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_journal ON papers(journal)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_year ON papers(year)`,
		`CREATE INDEX IF NOT EXISTS idx_authors_country ON authors(country)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='papers_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE papers_fts USING fts5(title, abstract, content=papers, content_rowid=rowid)`,
			`CREATE TRIGGER papers_ai AFTER INSERT ON papers BEGIN
				INSERT INTO papers_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
			END`,
			`CREATE TRIGGER papers_ad AFTER DELETE ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
			END`,
			`CREATE TRIGGER papers_au AFTER UPDATE ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
				INSERT INTO papers_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}
	return nil
}

// IngestSummary holds counts from one index rebuild.
type IngestSummary struct {
	Papers  int
	Authors int
}

// Ingest rebuilds the index from the given snapshot and roster. Snapshots
// are the source of truth; the database is derived and rebuilt whole, so
// stale rows from removed records never linger.
func (s *Store) Ingest(ctx context.Context, snap *snapshot.Snapshot, roster *snapshot.Roster) (IngestSummary, error) {
	var summary IngestSummary

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM papers`); err != nil {
		return summary, fmt.Errorf("clearing papers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM authors`); err != nil {
		return summary, fmt.Errorf("clearing authors: %w", err)
	}

	paperStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (pmid, title, authors, journal, date, year, abstract, keywords, mesh_terms, combined_terms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return summary, fmt.Errorf("preparing paper insert: %w", err)
	}
	defer paperStmt.Close()

	for _, r := range snap.Records {
		_, err := paperStmt.ExecContext(ctx,
			r.PMID, r.Title, r.Authors, r.Journal, r.Date, r.Year(),
			r.Abstract, listJSON(r.Keywords), listJSON(r.MeshTerms), listJSON(r.CombinedTerms),
		)
		if err != nil {
			return summary, fmt.Errorf("inserting paper %s: %w", r.PMID, err)
		}
		summary.Papers++
	}

	authorStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO authors (author, author_id, affiliation, organization, city, country, pmid_count, pmids)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return summary, fmt.Errorf("preparing author insert: %w", err)
	}
	defer authorStmt.Close()

	for _, row := range roster.Rows {
		if row.AuthorID == types.UnresolvedID {
			continue
		}
		_, err := authorStmt.ExecContext(ctx,
			row.Author, row.AuthorID, row.Affiliation, row.Organization,
			row.City, row.Country, row.PMIDCount, listJSON(row.PMIDs),
		)
		if err != nil {
			return summary, fmt.Errorf("inserting author %s: %w", row.Author, err)
		}
		summary.Authors++
	}

	if err := tx.Commit(); err != nil {
		return summary, err
	}
	return summary, nil
}

// listJSON always produces a valid JSON array so json_each works on every
// row.
func listJSON(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}

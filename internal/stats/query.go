// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stats

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

// CountRow is one name/count pair from an aggregation.
type CountRow struct {
	Name  string
	Count int
}

func (s *Store) limitOr(limit int) int {
	if limit <= 0 {
		return s.maxResults
	}
	return limit
}

func (s *Store) countQuery(ctx context.Context, query string, limit int) ([]CountRow, error) {
	rows, err := s.db.QueryContext(ctx, query, s.limitOr(limit))
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	var out []CountRow
	for rows.Next() {
		var r CountRow
		if err := rows.Scan(&r.Name, &r.Count); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// JournalDistribution returns journals by paper count, descending.
func (s *Store) JournalDistribution(ctx context.Context, limit int) ([]CountRow, error) {
	return s.countQuery(ctx,
		`SELECT journal, COUNT(*) AS n FROM papers
		 WHERE journal != '' GROUP BY journal ORDER BY n DESC, journal LIMIT ?`, limit)
}

// TopAuthors returns resolved author identities by publication count,
// descending. Same-named authors with different identities stay separate
// rows.
func (s *Store) TopAuthors(ctx context.Context, limit int) ([]CountRow, error) {
	return s.countQuery(ctx,
		`SELECT author, pmid_count FROM authors
		 ORDER BY pmid_count DESC, author LIMIT ?`, limit)
}

// CountryCounts returns countries by resolved author count, descending.
// The Unknown placeholder is a country like any other here; callers that
// want it hidden can drop the row.
func (s *Store) CountryCounts(ctx context.Context, limit int) ([]CountRow, error) {
	return s.countQuery(ctx,
		`SELECT country, COUNT(*) AS n FROM authors
		 WHERE country != '' GROUP BY country ORDER BY n DESC, country LIMIT ?`, limit)
}

// TermFrequencies returns reconciled keywords by occurrence across papers,
// descending.
func (s *Store) TermFrequencies(ctx context.Context, limit int) ([]CountRow, error) {
	return s.countQuery(ctx,
		`SELECT value, COUNT(*) AS n FROM papers, json_each(papers.combined_terms)
		 GROUP BY value ORDER BY n DESC, value LIMIT ?`, limit)
}

// YearCounts returns publication counts per year, ascending, skipping
// records whose date did not parse to a year.
func (s *Store) YearCounts(ctx context.Context) ([]CountRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year, COUNT(*) FROM papers WHERE year > 0 GROUP BY year ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	var out []CountRow
	for rows.Next() {
		var year, n int
		if err := rows.Scan(&year, &n); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, CountRow{Name: fmt.Sprintf("%d", year), Count: n})
	}
	return out, rows.Err()
}

// Search runs a full-text query over titles and abstracts, ranked by
// relevance.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]types.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.pmid, p.title, p.authors, p.journal, p.date, p.abstract
		 FROM papers_fts
		 JOIN papers p ON p.rowid = papers_fts.rowid
		 WHERE papers_fts MATCH ?
		 ORDER BY papers_fts.rank LIMIT ?`,
		query, s.limitOr(limit))
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		var r types.Record
		var abstract sql.NullString
		if err := rows.Scan(&r.PMID, &r.Title, &r.Authors, &r.Journal, &r.Date, &abstract); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if abstract.Valid {
			r.Abstract = abstract.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

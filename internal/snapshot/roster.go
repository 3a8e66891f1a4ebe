// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package snapshot

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

// Roster is one dated copy of the author roster.
type Roster struct {
	Date time.Time
	Rows []types.RosterRow
}

// LoadLatestRoster returns the most recently dated roster, or an empty one
// when none exists.
func (st *Store) LoadLatestRoster() (*Roster, error) {
	path, date, err := st.latest(rosterPrefix)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return &Roster{}, nil
	}

	rows, skipped, err := readRoster(path)
	if err != nil {
		return nil, fmt.Errorf("loading roster %s: %w", path, err)
	}
	for _, line := range skipped {
		st.log.Warn().Str("file", filepath.Base(path)).Int("line", line).Msg("skipping malformed roster row")
	}
	return &Roster{Date: date, Rows: rows}, nil
}

// SaveRoster writes rows as the roster for date, with the same old-file
// immutability rule as record snapshots.
func (st *Store) SaveRoster(rows []types.RosterRow, date time.Time) (string, error) {
	if _, newest, err := st.latest(rosterPrefix); err != nil {
		return "", err
	} else if !newest.IsZero() && date.Before(newest) {
		return "", fmt.Errorf("roster for %s is older than existing %s",
			date.Format(verFmt), newest.Format(verFmt))
	}

	path := filepath.Join(st.dir, rosterPrefix+date.Format(verFmt)+fileExt)
	if err := writeRoster(path, rows); err != nil {
		return "", fmt.Errorf("writing roster: %w", err)
	}
	return path, nil
}

// AppendEntries folds newly observed affiliation entries into the roster,
// aggregating by (author, affiliation): the merged identifier lists are
// unions, de-duplicated and sorted, so the result is independent of arrival
// order. Geography and identity columns of existing rows are preserved; a
// row that gains new identifiers keeps them (the affiliation text, the
// identity evidence, did not change).
func AppendEntries(rows []types.RosterRow, entries []types.AffiliationEntry) []types.RosterRow {
	type key struct{ author, affiliation string }

	out := make([]types.RosterRow, len(rows))
	copy(out, rows)

	index := make(map[key]int, len(out))
	for i, row := range out {
		index[key{row.Author, row.Affiliation}] = i
	}

	for _, e := range entries {
		if e.Author == "" {
			continue
		}
		k := key{e.Author, e.Affiliation}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, types.RosterRow{
				Author:      e.Author,
				Affiliation: e.Affiliation,
				AuthorID:    types.UnresolvedID,
			})
			i = index[k]
		}
		out[i].PMIDs = append(out[i].PMIDs, e.PMID)
	}

	for i := range out {
		out[i].PMIDs = sortedUnique(out[i].PMIDs)
		out[i].PMIDCount = len(out[i].PMIDs)
	}
	return out
}

func sortedUnique(items []string) []string {
	seen := make(map[string]bool, len(items))
	var unique []string
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		unique = append(unique, it)
	}
	sort.Strings(unique)
	return unique
}

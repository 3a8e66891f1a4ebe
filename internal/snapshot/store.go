// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package snapshot persists the record table as dated CSV files, one per run
// date, and the author roster alongside it. A snapshot is immutable once a
// later date's snapshot exists; incremental runs always read the newest file
// and write a fresh one.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

const (
	recordPrefix = "pubmed_results_ver."
	rosterPrefix = "author_info_ver."
	fileExt      = ".csv"

	// verFmt is the filename-embedded version date, e.g.
	// pubmed_results_ver.20250826.csv.
	verFmt = "20060102"
)

var verRe = regexp.MustCompile(`ver\.(\d{8})\.csv$`)

// Store reads and writes dated snapshot and roster files under one directory.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

// Snapshot is one dated copy of the record table.
type Snapshot struct {
	// Date is the version date embedded in the filename; zero for the
	// empty snapshot returned when no file exists yet.
	Date    time.Time
	Records []types.Record
}

// PMIDSet returns the set of identifiers present in the snapshot.
func (s *Snapshot) PMIDSet() map[string]bool {
	set := make(map[string]bool, len(s.Records))
	for _, r := range s.Records {
		if r.PMID != "" {
			set[r.PMID] = true
		}
	}
	return set
}

// LoadLatest returns the most recently dated snapshot, by filename-embedded
// date. No snapshot on disk is a clean empty result, not an error. Malformed
// rows are skipped individually and audited.
func (st *Store) LoadLatest() (*Snapshot, error) {
	path, date, err := st.latest(recordPrefix)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return &Snapshot{}, nil
	}

	records, skipped, err := readRecords(path)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", path, err)
	}
	for _, line := range skipped {
		st.log.Warn().Str("file", filepath.Base(path)).Int("line", line).Msg("skipping malformed snapshot row")
	}
	return &Snapshot{Date: date, Records: records}, nil
}

// Merge combines newly crawled records into an existing set. Every
// identifier appears once in the result: for an identifier present in both,
// each non-empty field of the new record wins over the old (the journal
// column in particular, which older snapshots may lack). Existing order is
// preserved; unseen records append in arrival order. Merging an empty new
// set returns the existing records unchanged.
func Merge(existing, fresh []types.Record) []types.Record {
	merged := make([]types.Record, len(existing))
	copy(merged, existing)

	index := make(map[string]int, len(existing))
	for i, r := range existing {
		if r.PMID != "" {
			index[r.PMID] = i
		}
	}

	for _, nr := range fresh {
		if i, ok := index[nr.PMID]; ok && nr.PMID != "" {
			merged[i] = Overlay(merged[i], nr)
			continue
		}
		if nr.PMID != "" {
			index[nr.PMID] = len(merged)
		}
		merged = append(merged, nr)
	}
	return merged
}

// Overlay fills old with new's non-empty fields.
func Overlay(old, new types.Record) types.Record {
	if new.Title != "" {
		old.Title = new.Title
	}
	if new.Authors != "" {
		old.Authors = new.Authors
	}
	if new.Journal != "" {
		old.Journal = new.Journal
	}
	if new.Date != "" {
		old.Date = new.Date
	}
	if new.Abstract != "" {
		old.Abstract = new.Abstract
	}
	if len(new.Keywords) > 0 {
		old.Keywords = new.Keywords
	}
	if len(new.MeshTerms) > 0 {
		old.MeshTerms = new.MeshTerms
	}
	if len(new.CombinedTerms) > 0 {
		old.CombinedTerms = new.CombinedTerms
	}
	return old
}

// Dedupe removes entries with an empty identifier and later repeats of an
// already-seen identifier (first occurrence wins). Every drop is audited.
func (st *Store) Dedupe(records []types.Record) ([]types.Record, int) {
	seen := make(map[string]bool, len(records))
	unique := records[:0:0]
	dropped := 0

	for _, r := range records {
		switch {
		case r.PMID == "":
			dropped++
			st.log.Warn().Str("title", r.Title).Msg("dropping record with empty identifier")
		case seen[r.PMID]:
			dropped++
			st.log.Warn().Str("pmid", r.PMID).Str("title", r.Title).Msg("dropping duplicate identifier")
		default:
			seen[r.PMID] = true
			unique = append(unique, r)
		}
	}
	return unique, dropped
}

// Save writes records as the snapshot for date. It refuses to write a date
// older than the newest existing snapshot: old dated files are immutable.
// Re-writing the same date is allowed (the post-dedupe rewrite of the
// current run's file).
func (st *Store) Save(records []types.Record, date time.Time) (string, error) {
	if _, newest, err := st.latest(recordPrefix); err != nil {
		return "", err
	} else if !newest.IsZero() && date.Before(newest) {
		return "", fmt.Errorf("snapshot for %s is older than existing %s",
			date.Format(verFmt), newest.Format(verFmt))
	}

	path := filepath.Join(st.dir, recordPrefix+date.Format(verFmt)+fileExt)
	if err := writeRecords(path, records); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	return path, nil
}

// latest returns the newest dated file with the given prefix, or empty when
// none exists.
func (st *Store) latest(prefix string) (string, time.Time, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", time.Time{}, nil
		}
		return "", time.Time{}, fmt.Errorf("reading snapshot directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || len(name) < len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		if verRe.MatchString(name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", time.Time{}, nil
	}

	// Version dates sort lexically.
	sort.Strings(names)
	name := names[len(names)-1]
	date, err := time.Parse(verFmt, verRe.FindStringSubmatch(name)[1])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parsing version date in %s: %w", name, err)
	}
	return filepath.Join(st.dir, name), date, nil
}

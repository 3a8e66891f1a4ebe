// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"os"
	"path/filepath"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/snapshot"
	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

const defaultCheckpointEvery = 5

// tableCheckpoint persists the partially enriched record table at a fixed
// temporary path. A restarted pass restores it first, so rows completed
// before an interruption fall out of the candidate set and are not redone.
type tableCheckpoint struct {
	path  string
	every int
	done  int
}

func newTableCheckpoint(dir, name string, every int) *tableCheckpoint {
	if every <= 0 {
		every = defaultCheckpointEvery
	}
	return &tableCheckpoint{path: filepath.Join(dir, name), every: every}
}

// Restore overlays checkpointed rows into records, keyed by identifier, and
// reports how many rows carried saved work. A missing checkpoint file means
// a fresh run.
func (c *tableCheckpoint) Restore(records []types.Record) (int, error) {
	saved, _, err := snapshot.ReadRecordsFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	index := make(map[string]int, len(records))
	for i, r := range records {
		index[r.PMID] = i
	}
	restored := 0
	for _, s := range saved {
		if i, ok := index[s.PMID]; ok {
			records[i] = snapshot.Overlay(records[i], s)
			restored++
		}
	}
	return restored, nil
}

// Step records one more completed row and flushes the table every N
// completions.
func (c *tableCheckpoint) Step(records []types.Record) error {
	c.done++
	if c.done%c.every != 0 {
		return nil
	}
	return snapshot.WriteRecordsFile(c.path, records)
}

// Remove deletes the checkpoint after a clean completion.
func (c *tableCheckpoint) Remove() {
	os.Remove(c.path)
}

// rosterCheckpoint is the roster-table counterpart, keyed by
// (author, affiliation) and restoring the geography columns.
type rosterCheckpoint struct {
	path  string
	every int
	done  int
}

func newRosterCheckpoint(dir, name string, every int) *rosterCheckpoint {
	if every <= 0 {
		every = defaultCheckpointEvery
	}
	return &rosterCheckpoint{path: filepath.Join(dir, name), every: every}
}

// Load returns the whole checkpointed roster table when one exists. The
// details pass works from the saved table directly, since it adds rows as
// well as columns.
func (c *rosterCheckpoint) Load() ([]types.RosterRow, bool, error) {
	saved, _, err := snapshot.ReadRosterFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return saved, true, nil
}

func (c *rosterCheckpoint) Restore(rows []types.RosterRow) (int, error) {
	saved, _, err := snapshot.ReadRosterFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	type key struct{ author, affiliation string }
	index := make(map[key]int, len(rows))
	for i, row := range rows {
		index[key{row.Author, row.Affiliation}] = i
	}
	restored := 0
	for _, s := range saved {
		i, ok := index[key{s.Author, s.Affiliation}]
		if !ok || s.Country == "" {
			continue
		}
		rows[i].Organization = s.Organization
		rows[i].City = s.City
		rows[i].Country = s.Country
		restored++
	}
	return restored, nil
}

func (c *rosterCheckpoint) Step(rows []types.RosterRow) error {
	c.done++
	if c.done%c.every != 0 {
		return nil
	}
	return snapshot.WriteRosterFile(c.path, rows)
}

func (c *rosterCheckpoint) Remove() {
	os.Remove(c.path)
}

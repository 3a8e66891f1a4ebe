// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package snapshot

import "github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"

// The enrichment checkpoints reuse the snapshot schema for their temp
// files; these wrappers expose the codec for arbitrary paths.

// ReadRecordsFile loads a record CSV from path. The second result lists
// line numbers of rows that were skipped as malformed.
func ReadRecordsFile(path string) ([]types.Record, []int, error) {
	return readRecords(path)
}

// WriteRecordsFile writes records to path atomically.
func WriteRecordsFile(path string, records []types.Record) error {
	return writeRecords(path, records)
}

// ReadRosterFile loads a roster CSV from path.
func ReadRosterFile(path string) ([]types.RosterRow, []int, error) {
	return readRoster(path)
}

// WriteRosterFile writes roster rows to path atomically.
func WriteRosterFile(path string, rows []types.RosterRow) error {
	return writeRoster(path, rows)
}

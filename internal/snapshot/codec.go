// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package snapshot

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

// recordHeader is the snapshot column order. The enrichment columns trail
// the listing columns so early snapshots are a prefix of later ones.
var recordHeader = []string{
	"PMID", "Title", "Authors", "Journal", "Date",
	"Abstract", "Keywords", "MeshTerms", "CombinedTerms",
}

// rosterHeader is the author roster column order.
var rosterHeader = []string{
	"Author", "Affiliation", "PMID", "PMID_Count",
	"AuthorID", "Organization", "City", "Country",
}

// encodeList serializes a list-valued cell as a JSON array so it round-trips
// through a safe literal parser. A nil list serializes as the empty cell; an
// empty non-nil list keeps its "[]" so a fetched-but-empty term list is not
// mistaken for a never-fetched one after a reload.
func encodeList(items []string) string {
	if items == nil {
		return ""
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func decodeList(cell string) ([]string, error) {
	if cell == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(cell), &items); err != nil {
		return nil, fmt.Errorf("parsing list cell %q: %w", cell, err)
	}
	return items, nil
}

// readRecords loads a record CSV, returning the rows it could parse and the
// line numbers of rows it skipped.
func readRecords(path string) ([]types.Record, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	col, err := columnIndex(header, recordHeader[:5])
	if err != nil {
		return nil, nil, err
	}

	var records []types.Record
	var skipped []int
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped = append(skipped, line)
			continue
		}

		rec, err := decodeRecord(row, col)
		if err != nil {
			skipped = append(skipped, line)
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func decodeRecord(row []string, col map[string]int) (types.Record, error) {
	cell := func(name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	rec := types.Record{
		PMID:     cell("PMID"),
		Title:    cell("Title"),
		Authors:  cell("Authors"),
		Journal:  cell("Journal"),
		Date:     cell("Date"),
		Abstract: cell("Abstract"),
	}
	var err error
	if rec.Keywords, err = decodeList(cell("Keywords")); err != nil {
		return types.Record{}, err
	}
	if rec.MeshTerms, err = decodeList(cell("MeshTerms")); err != nil {
		return types.Record{}, err
	}
	if rec.CombinedTerms, err = decodeList(cell("CombinedTerms")); err != nil {
		return types.Record{}, err
	}
	return rec, nil
}

// writeRecords writes the record CSV atomically: temp file, then rename.
func writeRecords(path string, records []types.Record) error {
	return writeCSV(path, recordHeader, len(records), func(i int) []string {
		r := records[i]
		return []string{
			r.PMID, r.Title, r.Authors, r.Journal, r.Date,
			r.Abstract, encodeList(r.Keywords), encodeList(r.MeshTerms), encodeList(r.CombinedTerms),
		}
	})
}

// readRoster loads a roster CSV with the same skip-malformed policy.
func readRoster(path string) ([]types.RosterRow, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	col, err := columnIndex(header, rosterHeader[:3])
	if err != nil {
		return nil, nil, err
	}

	var rows []types.RosterRow
	var skipped []int
	for line := 2; ; line++ {
		raw, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped = append(skipped, line)
			continue
		}

		row, err := decodeRosterRow(raw, col)
		if err != nil {
			skipped = append(skipped, line)
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

func decodeRosterRow(raw []string, col map[string]int) (types.RosterRow, error) {
	cell := func(name string) string {
		if i, ok := col[name]; ok && i < len(raw) {
			return raw[i]
		}
		return ""
	}

	row := types.RosterRow{
		Author:       cell("Author"),
		Affiliation:  cell("Affiliation"),
		AuthorID:     types.UnresolvedID,
		Organization: cell("Organization"),
		City:         cell("City"),
		Country:      cell("Country"),
	}
	var err error
	if row.PMIDs, err = decodeList(cell("PMID")); err != nil {
		return types.RosterRow{}, err
	}
	row.PMIDCount = len(row.PMIDs)
	if cell("AuthorID") != "" {
		if row.AuthorID, err = strconv.Atoi(cell("AuthorID")); err != nil {
			return types.RosterRow{}, fmt.Errorf("parsing AuthorID %q: %w", cell("AuthorID"), err)
		}
	}
	return row, nil
}

func writeRoster(path string, rows []types.RosterRow) error {
	return writeCSV(path, rosterHeader, len(rows), func(i int) []string {
		row := rows[i]
		id := ""
		if row.AuthorID != types.UnresolvedID {
			id = strconv.Itoa(row.AuthorID)
		}
		return []string{
			row.Author, row.Affiliation, encodeList(row.PMIDs), strconv.Itoa(len(row.PMIDs)),
			id, row.Organization, row.City, row.Country,
		}
	})
}

func writeCSV(path string, header []string, n int, rowAt func(int) []string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(rowAt(i)); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// columnIndex maps header names to positions and checks the required
// columns are present; a missing required column is a structural error that
// aborts the load.
func columnIndex(header, required []string) (map[string]int, error) {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("required column %q absent", name)
		}
	}
	return col, nil
}

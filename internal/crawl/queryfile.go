// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// QueryFile is the on-disk base query: the search expression and the date
// bounds of the study window. It is a required structural input; a missing
// or unparsable file aborts the run.
type QueryFile struct {
	// Query is the full search expression, synonyms already expanded
	// (e.g. `("pediatric surgery"[Title/Abstract]) AND ...`).
	Query string `yaml:"query"`

	// StartDate and EndDate bound the study window, YYYY-MM-DD.
	// EndDate may be "today" or empty for the current date.
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date,omitempty"`
}

const dateFmt = "2006-01-02"

// ReadQueryFile loads the base query from path.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file %s: %w", path, err)
	}
	if strings.TrimSpace(qf.Query) == "" {
		return nil, fmt.Errorf("query file %s: query is empty", path)
	}
	return &qf, nil
}

// Range resolves the query file's date bounds against now.
func (qf *QueryFile) Range(now time.Time) (Interval, error) {
	start, err := time.Parse(dateFmt, qf.StartDate)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid start_date %q: %w", qf.StartDate, err)
	}

	end := now
	if e := strings.TrimSpace(strings.ToLower(qf.EndDate)); e != "" && e != "today" {
		end, err = time.Parse(dateFmt, qf.EndDate)
		if err != nil {
			return Interval{}, fmt.Errorf("invalid end_date %q: %w", qf.EndDate, err)
		}
	}

	iv := NewInterval(start, end)
	if iv.End.Before(iv.Start) {
		return Interval{}, fmt.Errorf("end_date %s precedes start_date %s",
			iv.End.Format(dateFmt), iv.Start.Format(dateFmt))
	}
	return iv, nil
}

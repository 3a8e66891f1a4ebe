// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the expert-db pipeline.
package types

import "time"

// Record is one literature item keyed by its PubMed identifier. It is
// created by the crawl stage with the listing fields populated and is
// progressively filled in by the enrichment stages. A field that is already
// non-empty is never overwritten by a later stage.
type Record struct {
	// PMID is the PubMed identifier. Unique across a snapshot after
	// de-duplication; records with an empty PMID are dropped.
	PMID string `json:"pmid" yaml:"pmid"`

	// Title is the article title as shown in the result listing.
	Title string `json:"title" yaml:"title"`

	// Authors is the display author string from the listing
	// (e.g. "Smith J, Jones A").
	Authors string `json:"authors" yaml:"authors"`

	// Journal is the journal name extracted from the citation line.
	Journal string `json:"journal" yaml:"journal"`

	// Date is the partial publication date: "2006 Jan" or "2006".
	Date string `json:"date" yaml:"date"`

	// Abstract is the free-text abstract, empty until enriched.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Keywords is the model- or page-derived keyword set.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// MeshTerms is the controlled-vocabulary term set. Major topics carry
	// a trailing asterisk (e.g. "Laparoscopy*").
	MeshTerms []string `json:"mesh_terms,omitempty" yaml:"mesh_terms,omitempty"`

	// CombinedTerms is the reconciled keyword set produced by the combine
	// stage from Keywords and MeshTerms.
	CombinedTerms []string `json:"combined_terms,omitempty" yaml:"combined_terms,omitempty"`
}

// pubDateLayouts are the partial date forms PubMed citation lines use.
var pubDateLayouts = []string{"2006 Jan", "2006"}

// PubDate parses the partial publication date. The second return value is
// false when the date is empty or in an unrecognized form.
func (r Record) PubDate() (time.Time, bool) {
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, r.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Year returns the publication year, or 0 when the date is unparsable.
func (r Record) Year() int {
	t, ok := r.PubDate()
	if !ok {
		return 0
	}
	return t.Year()
}

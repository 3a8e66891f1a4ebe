// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// AffiliationEntry is one observation of an author name on one record:
// the display name, the raw affiliation text (may be empty) and the PMID of
// the owning record. Many entries share an author name.
type AffiliationEntry struct {
	Author      string `json:"author" yaml:"author"`
	Affiliation string `json:"affiliation" yaml:"affiliation"`
	PMID        string `json:"pmid" yaml:"pmid"`
}

// RosterRow is one aggregated line of the author roster: an (author name,
// affiliation) pair with the merged set of record identifiers. The identity
// and geography columns are appended by the resolve and enrich stages.
type RosterRow struct {
	Author      string   `json:"author" yaml:"author"`
	Affiliation string   `json:"affiliation" yaml:"affiliation"`
	PMIDs       []string `json:"pmids" yaml:"pmids"`
	PMIDCount   int      `json:"pmid_count" yaml:"pmid_count"`

	// AuthorID is the identity number scoped to the author name,
	// assigned in first-seen order starting at 0. UnresolvedID until the
	// resolve stage has run.
	AuthorID int `json:"author_id" yaml:"author_id"`

	// Organization, City and Country are derived from the affiliation
	// text by the geography enrichment. "Unknown" marks an oracle
	// failure, empty marks not-yet-processed.
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
	City         string `json:"city,omitempty" yaml:"city,omitempty"`
	Country      string `json:"country,omitempty" yaml:"country,omitempty"`
}

// UnresolvedID marks a roster row the resolve stage has not processed.
const UnresolvedID = -1

// GeoUnknown is the placeholder written when geography extraction fails
// after exhausting retries.
const GeoUnknown = "Unknown"

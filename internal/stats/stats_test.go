// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/snapshot"
	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), types.StatsConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	snap := &snapshot.Snapshot{Records: []types.Record{
		{PMID: "1", Title: "Laparoscopic repair in infants", Journal: "J Pediatr Surg",
			Date: "2021 Mar", Abstract: "Laparoscopy outcomes in neonates.",
			CombinedTerms: []string{"Laparoscopy", "Hernia"}},
		{PMID: "2", Title: "Open repair outcomes", Journal: "J Pediatr Surg",
			Date: "2020", CombinedTerms: []string{"Hernia"}},
		{PMID: "3", Title: "Appendectomy trends", Journal: "Pediatrics",
			Date: "2021"},
	}}
	roster := &snapshot.Roster{Rows: []types.RosterRow{
		{Author: "John Smith", AuthorID: 0, Affiliation: "Hosp X", Country: "Norway",
			PMIDs: []string{"1", "2"}, PMIDCount: 2},
		{Author: "John Smith", AuthorID: 1, Affiliation: "Hosp Y", Country: "United States of America",
			PMIDs: []string{"3"}, PMIDCount: 1},
		{Author: "Ann Jones", AuthorID: 0, Affiliation: "Hosp Z", Country: "Norway",
			PMIDs: []string{"1"}, PMIDCount: 1},
		{Author: "Unresolved U", AuthorID: types.UnresolvedID, PMIDs: []string{"2"}, PMIDCount: 1},
	}}

	summary, err := s.Ingest(context.Background(), snap, roster)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Papers)
	// Unresolved rows stay out of the index.
	assert.Equal(t, 3, summary.Authors)
	return s
}

func TestJournalDistribution(t *testing.T) {
	s := seededStore(t)

	dist, err := s.JournalDistribution(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, dist, 2)
	assert.Equal(t, CountRow{Name: "J Pediatr Surg", Count: 2}, dist[0])
	assert.Equal(t, CountRow{Name: "Pediatrics", Count: 1}, dist[1])
}

func TestTopAuthors(t *testing.T) {
	s := seededStore(t)

	top, err := s.TopAuthors(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, CountRow{Name: "John Smith", Count: 2}, top[0])
	assert.Equal(t, 1, top[1].Count)
}

func TestCountryCounts(t *testing.T) {
	s := seededStore(t)

	counts, err := s.CountryCounts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, CountRow{Name: "Norway", Count: 2}, counts[0])
}

func TestTermFrequencies(t *testing.T) {
	s := seededStore(t)

	freqs, err := s.TermFrequencies(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, freqs, 2)
	assert.Equal(t, CountRow{Name: "Hernia", Count: 2}, freqs[0])
	assert.Equal(t, CountRow{Name: "Laparoscopy", Count: 1}, freqs[1])
}

func TestYearCounts(t *testing.T) {
	s := seededStore(t)

	years, err := s.YearCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []CountRow{
		{Name: "2020", Count: 1},
		{Name: "2021", Count: 2},
	}, years)
}

func TestSearch(t *testing.T) {
	s := seededStore(t)

	hits, err := s.Search(context.Background(), "laparoscopy", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "1", hits[0].PMID)

	none, err := s.Search(context.Background(), "cardiology", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIngestRebuildsWhole(t *testing.T) {
	s := seededStore(t)

	_, err := s.Ingest(context.Background(),
		&snapshot.Snapshot{Records: []types.Record{{PMID: "9", Title: "Only one", Journal: "New J"}}},
		&snapshot.Roster{})
	require.NoError(t, err)

	dist, err := s.JournalDistribution(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, dist, 1)
	assert.Equal(t, "New J", dist[0].Name)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/audit"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/llm"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/pubmed"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/snapshot"
	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

func day(s string) time.Time {
	t, err := time.Parse("20060102", s)
	if err != nil {
		panic(err)
	}
	return t
}

// testScheduler seeds a store with records and returns a scheduler whose
// clock is fixed one day after the seed snapshot.
func testScheduler(t *testing.T, records []types.Record) (*Scheduler, *snapshot.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := snapshot.NewStore(dir, audit.Nop())
	require.NoError(t, err)
	if records != nil {
		_, err = store.Save(records, day("20250825"))
		require.NoError(t, err)
	}

	s := New(store, dir, types.EnrichConfig{}, audit.Nop(), io.Discard)
	s.sleep = func(time.Duration) {}
	s.now = func() time.Time { return day("20250826") }
	return s, store
}

type fakeDetails struct {
	calls []string
}

func (f *fakeDetails) Details(_ context.Context, pmid string) (pubmed.Details, error) {
	f.calls = append(f.calls, pmid)
	return pubmed.Details{
		Abstract: "abstract for " + pmid,
		Keywords: []string{"kw-" + pmid},
		Authors: []types.AffiliationEntry{
			{Author: "John Smith", Affiliation: "Hosp X", PMID: pmid},
		},
	}, nil
}

func TestDetailsFillsOnlyAbsentAbstracts(t *testing.T) {
	s, store := testScheduler(t, []types.Record{
		{PMID: "1", Title: "a"},
		{PMID: "2", Title: "b", Abstract: "already here"},
		{PMID: "3", Title: "c"},
	})
	src := &fakeDetails{}

	sum, err := s.Details(context.Background(), src, DetailOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Enriched)
	assert.Equal(t, []string{"1", "3"}, src.calls)

	snap, err := store.LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, "abstract for 1", snap.Records[0].Abstract)
	assert.Equal(t, "already here", snap.Records[1].Abstract)
	assert.Equal(t, []string{"kw-3"}, snap.Records[2].Keywords)

	roster, err := store.LoadLatestRoster()
	require.NoError(t, err)
	require.Len(t, roster.Rows, 1)
	assert.Equal(t, []string{"1", "3"}, roster.Rows[0].PMIDs)
	assert.Equal(t, types.UnresolvedID, roster.Rows[0].AuthorID)
}

func TestDetailsSubsetSkipsFilledUnlessForced(t *testing.T) {
	s, _ := testScheduler(t, []types.Record{
		{PMID: "1", Abstract: "filled"},
		{PMID: "2"},
	})
	src := &fakeDetails{}

	sum, err := s.Details(context.Background(), src, DetailOptions{PMIDs: []string{"1", "2"}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, []string{"2"}, src.calls)

	src.calls = nil
	sum, err = s.Details(context.Background(), src, DetailOptions{PMIDs: []string{"1"}, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Enriched)
	assert.Equal(t, []string{"1"}, src.calls)
}

type fakeKeywords struct {
	mu     sync.Mutex
	calls  int
	cancel func()
	stopAt int
}

func (f *fakeKeywords) Extract(_ context.Context, abstract string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.stopAt > 0 && f.calls == f.stopAt && f.cancel != nil {
		f.cancel()
	}
	return []string{"kw: " + abstract}, nil
}

func seedRecords(n int) []types.Record {
	records := make([]types.Record, n)
	for i := range records {
		records[i] = types.Record{
			PMID:     fmt.Sprintf("%d", i+1),
			Abstract: fmt.Sprintf("abstract %d", i+1),
		}
	}
	return records
}

func TestKeywordsPass(t *testing.T) {
	records := seedRecords(3)
	records[1].Keywords = []string{"existing"}
	s, store := testScheduler(t, records)

	sum, err := s.Keywords(context.Background(), &fakeKeywords{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Enriched)

	snap, err := store.LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, []string{"kw: abstract 1"}, snap.Records[0].Keywords)
	assert.Equal(t, []string{"existing"}, snap.Records[1].Keywords)
}

func TestKeywordsCheckpointResume(t *testing.T) {
	// The interrupted run stops after 5 oracle calls, exactly one
	// checkpoint flush. The restart must process only the remainder and
	// produce the same final table as an uninterrupted run.
	records := seedRecords(8)
	s, store := testScheduler(t, records)

	ctx, cancel := context.WithCancel(context.Background())
	interrupted := &fakeKeywords{cancel: cancel, stopAt: 5}
	_, err := s.Keywords(ctx, interrupted)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, interrupted.calls)

	resumed := &fakeKeywords{}
	sum, err := s.Keywords(context.Background(), resumed)
	require.NoError(t, err)
	assert.Equal(t, 3, resumed.calls)
	assert.Equal(t, 3, sum.Enriched)

	snap, err := store.LoadLatest()
	require.NoError(t, err)

	// Reference: the same seed enriched in one go.
	ref, refStore := testScheduler(t, seedRecords(8))
	_, err = ref.Keywords(context.Background(), &fakeKeywords{})
	require.NoError(t, err)
	refSnap, err := refStore.LoadLatest()
	require.NoError(t, err)

	assert.Equal(t, refSnap.Records, snap.Records)
}

type fakeTerms struct {
	batches [][]string
}

func (f *fakeTerms) FetchTerms(_ context.Context, pmids []string) (map[string][]string, error) {
	f.batches = append(f.batches, pmids)
	out := make(map[string][]string, len(pmids))
	for _, id := range pmids {
		if id == "2" {
			out[id] = []string{}
			continue
		}
		out[id] = []string{"Term-" + id + "*"}
	}
	return out, nil
}

func TestMeshSkipsAlreadyFetched(t *testing.T) {
	s, store := testScheduler(t, []types.Record{
		{PMID: "1"},
		{PMID: "2"},
		{PMID: "3", MeshTerms: []string{"Done"}},
	})
	fetcher := &fakeTerms{}

	sum, err := s.Mesh(context.Background(), fetcher)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Enriched)
	require.Len(t, fetcher.batches, 1)
	assert.Equal(t, []string{"1", "2"}, fetcher.batches[0])

	snap, err := store.LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, []string{"Term-1*"}, snap.Records[0].MeshTerms)
	// Fetched-but-empty survives the save and is not a candidate again.
	assert.NotNil(t, snap.Records[1].MeshTerms)
	assert.Empty(t, snap.Records[1].MeshTerms)

	fetcher.batches = nil
	_, err = s.Mesh(context.Background(), fetcher)
	require.NoError(t, err)
	assert.Empty(t, fetcher.batches)
}

type fakeGeo struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (f *fakeGeo) Parse(_ context.Context, affiliation string) (llm.Geography, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail[affiliation] {
		return llm.Geography{}, fmt.Errorf("model unavailable")
	}
	return llm.Geography{Organization: "Org " + affiliation, City: "City", Country: "Norway"}, nil
}

func TestGeographyPool(t *testing.T) {
	s, store := testScheduler(t, nil)
	_, err := store.SaveRoster([]types.RosterRow{
		{Author: "A", Affiliation: "Hosp X", PMIDs: []string{"1"}, PMIDCount: 1, AuthorID: types.UnresolvedID},
		{Author: "B", Affiliation: "Hosp Y", PMIDs: []string{"2"}, PMIDCount: 1, AuthorID: types.UnresolvedID},
		{Author: "C", Affiliation: "", PMIDs: []string{"3"}, PMIDCount: 1, AuthorID: types.UnresolvedID},
		{Author: "D", Affiliation: "Hosp Z", PMIDs: []string{"4"}, PMIDCount: 1, AuthorID: types.UnresolvedID,
			Organization: "Kept", City: "Kept", Country: "Kept"},
	}, day("20250825"))
	require.NoError(t, err)

	oracle := &fakeGeo{fail: map[string]bool{"Hosp Y": true}}
	sum, err := s.Geography(context.Background(), oracle)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Enriched)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 2, oracle.calls)

	roster, err := store.LoadLatestRoster()
	require.NoError(t, err)
	byAuthor := make(map[string]types.RosterRow)
	for _, row := range roster.Rows {
		byAuthor[row.Author] = row
	}
	assert.Equal(t, "Org Hosp X", byAuthor["A"].Organization)
	assert.Equal(t, "Norway", byAuthor["A"].Country)
	// Exhausted retries leave the placeholder, never an empty cell.
	assert.Equal(t, types.GeoUnknown, byAuthor["B"].Country)
	// Empty affiliation is placeholder-filled without an oracle call.
	assert.Equal(t, types.GeoUnknown, byAuthor["C"].Country)
	// Rows with a country already are untouched.
	assert.Equal(t, "Kept", byAuthor["D"].Country)
}

func TestGeographyRequiresRoster(t *testing.T) {
	s, _ := testScheduler(t, nil)
	_, err := s.Geography(context.Background(), &fakeGeo{})
	assert.Error(t, err)
}

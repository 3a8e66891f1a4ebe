// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/audit"
	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// --- Interval ---

func TestSplitPartitionsParent(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
	}{
		{"two days", "2020-01-01", "2020-01-02"},
		{"three days", "2020-01-01", "2020-01-03"},
		{"one month", "2020-01-01", "2020-01-31"},
		{"decade", "2015-01-01", "2025-08-26"},
		{"across leap day", "2020-02-28", "2020-03-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv := NewInterval(date(tt.start), date(tt.end))
			a, b := iv.Split()

			// Children abut: b starts exactly one day after a ends.
			assert.Equal(t, a.End.Add(24*time.Hour), b.Start)
			// Together they cover the parent exactly.
			assert.Equal(t, iv.Start, a.Start)
			assert.Equal(t, iv.End, b.End)
			assert.Equal(t, iv.Days(), a.Days()+b.Days())
			// Both children are non-empty.
			assert.GreaterOrEqual(t, a.Days(), 1)
			assert.GreaterOrEqual(t, b.Days(), 1)
			// Both children are strictly smaller, so recursion terminates.
			assert.Less(t, a.Days(), iv.Days())
			assert.Less(t, b.Days(), iv.Days())
		})
	}
}

func TestSingleDayNotSplittable(t *testing.T) {
	iv := NewInterval(date("2020-01-01"), date("2020-01-01"))
	assert.False(t, iv.Splittable())
	assert.Equal(t, 1, iv.Days())
}

// --- fake source ---

type fakeSource struct {
	counts    func(iv Interval) int
	pages     func(iv Interval, page int) []types.Record
	countErr  map[string]error
	pageErr   map[int]error
	countCall int
	pageCall  int
}

func (f *fakeSource) Count(_ context.Context, _ string, iv Interval) (int, error) {
	f.countCall++
	if err, ok := f.countErr[iv.String()]; ok {
		return 0, err
	}
	return f.counts(iv), nil
}

func (f *fakeSource) Page(_ context.Context, _ string, iv Interval, page int) ([]types.Record, error) {
	f.pageCall++
	if err, ok := f.pageErr[page]; ok {
		return nil, err
	}
	return f.pages(iv, page), nil
}

func testPlanner(src Source, cfg types.CrawlConfig) *Planner {
	p := New(src, cfg, audit.Nop(), io.Discard)
	p.sleep = func(time.Duration) {}
	return p
}

func rec(pmid string) types.Record { return types.Record{PMID: pmid, Title: "t" + pmid} }

// --- Harvest ---

func TestHarvestSplitsUntilUnderThreshold(t *testing.T) {
	// 10 days, 3000 results each; threshold 10000 forces subdivision until
	// each leaf holds at most 10000.
	src := &fakeSource{
		counts: func(iv Interval) int { return iv.Days() * 3000 },
		pages: func(iv Interval, page int) []types.Record {
			return []types.Record{rec(fmt.Sprintf("%s-p%d", iv, page))}
		},
	}
	p := testPlanner(src, types.CrawlConfig{PageSize: 10000, MaxPages: 50})

	iv := NewInterval(date("2020-01-01"), date("2020-01-10"))
	res, err := p.Harvest(context.Background(), "q", iv, nil)
	require.NoError(t, err)

	// 10 days * 3000 = 30000 > 10000, so at least two levels of splitting.
	assert.NotEmpty(t, res.New)
	assert.Empty(t, res.Gaps)
	assert.Greater(t, src.countCall, 3)
}

func TestHarvestZeroResultsNoPaging(t *testing.T) {
	src := &fakeSource{
		counts: func(Interval) int { return 0 },
		pages:  func(Interval, int) []types.Record { t.Fatal("page fetched for empty interval"); return nil },
	}
	p := testPlanner(src, types.CrawlConfig{})

	res, err := p.Harvest(context.Background(), "q",
		NewInterval(date("2020-01-01"), date("2020-12-31")), nil)
	require.NoError(t, err)
	assert.Empty(t, res.New)
	assert.Zero(t, src.pageCall)
}

func TestHarvestFiltersKnownPMIDs(t *testing.T) {
	src := &fakeSource{
		counts: func(Interval) int { return 3 },
		pages: func(Interval, int) []types.Record {
			return []types.Record{rec("1"), rec("2"), rec("3")}
		},
	}
	p := testPlanner(src, types.CrawlConfig{PageSize: 200})

	known := map[string]bool{"2": true}
	res, err := p.Harvest(context.Background(), "q",
		NewInterval(date("2020-01-01"), date("2020-01-02")), known)
	require.NoError(t, err)

	require.Len(t, res.New, 2)
	assert.Equal(t, "1", res.New[0].PMID)
	assert.Equal(t, "3", res.New[1].PMID)
	assert.Equal(t, 1, res.Known)
}

func TestHarvestSingleDayTruncatedWarn(t *testing.T) {
	// Single day with 20000 results cannot be split; page cap 2 truncates.
	src := &fakeSource{
		counts: func(Interval) int { return 20000 },
		pages: func(iv Interval, page int) []types.Record {
			return []types.Record{rec(fmt.Sprintf("p%d", page))}
		},
	}
	p := testPlanner(src, types.CrawlConfig{PageSize: 200, MaxPages: 2})

	res, err := p.Harvest(context.Background(), "q",
		NewInterval(date("2020-01-01"), date("2020-01-01")), nil)
	require.NoError(t, err)

	require.Len(t, res.Gaps, 1)
	assert.Equal(t, 20000, res.Gaps[0].Total)
	assert.Equal(t, 2, src.pageCall)
	assert.Len(t, res.New, 2)
}

func TestHarvestSingleDayTruncatedFailPolicy(t *testing.T) {
	src := &fakeSource{
		counts: func(Interval) int { return 20000 },
		pages:  func(Interval, int) []types.Record { return nil },
	}
	p := testPlanner(src, types.CrawlConfig{PageSize: 200, MaxPages: 2, GapPolicy: types.GapFail})

	_, err := p.Harvest(context.Background(), "q",
		NewInterval(date("2020-01-01"), date("2020-01-01")), nil)
	assert.Error(t, err)
}

func TestHarvestSkipsFailedPage(t *testing.T) {
	src := &fakeSource{
		counts: func(Interval) int { return 600 },
		pages: func(iv Interval, page int) []types.Record {
			return []types.Record{rec(fmt.Sprintf("p%d", page))}
		},
		pageErr: map[int]error{2: errors.New("boom")},
	}
	p := testPlanner(src, types.CrawlConfig{PageSize: 200, MaxPages: 50})

	res, err := p.Harvest(context.Background(), "q",
		NewInterval(date("2020-01-01"), date("2020-01-01")), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.PagesFailed)
	assert.Len(t, res.New, 2) // pages 1 and 3
}

func TestHarvestSkipsFailedInterval(t *testing.T) {
	iv := NewInterval(date("2020-01-01"), date("2020-01-01"))
	src := &fakeSource{
		counts:   func(Interval) int { return 100 },
		pages:    func(Interval, int) []types.Record { return nil },
		countErr: map[string]error{iv.String(): errors.New("unreachable")},
	}
	p := testPlanner(src, types.CrawlConfig{})

	res, err := p.Harvest(context.Background(), "q", iv, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.IntervalsFailed)
	assert.Empty(t, res.New)
}

// --- QueryFile ---

func TestQueryFileRange(t *testing.T) {
	qf := &QueryFile{Query: "x", StartDate: "2015-01-01", EndDate: "today"}
	now := date("2025-08-26")

	iv, err := qf.Range(now)
	require.NoError(t, err)
	assert.Equal(t, date("2015-01-01"), iv.Start)
	assert.Equal(t, date("2025-08-26"), iv.End)
}

func TestQueryFileRangeRejectsInverted(t *testing.T) {
	qf := &QueryFile{Query: "x", StartDate: "2020-01-01", EndDate: "2019-01-01"}
	_, err := qf.Range(time.Now())
	assert.Error(t, err)
}

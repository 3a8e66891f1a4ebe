// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crawl discovers new literature records for a query and date range.
// It partitions the range recursively so every leaf interval stays under the
// listing service's result ceiling, then pages through each leaf, suppressing
// identifiers the pipeline has already seen.
package crawl

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

// Source lists search results for a query within a date interval. The
// implementation owns transport concerns: retries of transient failures and
// request rate limiting.
type Source interface {
	// Count returns the total number of results for the query in iv.
	Count(ctx context.Context, query string, iv Interval) (int, error)

	// Page returns one page (1-based) of results for the query in iv.
	Page(ctx context.Context, query string, iv Interval, page int) ([]types.Record, error)
}

// Gap records an interval whose results were truncated: a single-day range
// that cannot be subdivided further and still exceeds the page cap. The
// uncovered tail is a known precision loss, reported rather than hidden.
type Gap struct {
	Interval Interval
	Total    int
	Fetched  int
}

// Result holds the outcome of one harvest run.
type Result struct {
	// New lists records whose identifier was not in the known set.
	New []types.Record

	// Gaps lists truncated intervals (see Gap).
	Gaps []Gap

	// Known counts records dropped because their identifier was already known.
	Known int

	// PagesFailed counts pages skipped after the source exhausted retries.
	PagesFailed int

	// IntervalsFailed counts intervals skipped because their result count
	// could not be obtained.
	IntervalsFailed int
}

// Planner drives the recursive interval crawl.
type Planner struct {
	src Source
	cfg types.CrawlConfig
	log zerolog.Logger
	out io.Writer

	// sleep is a seam for tests; defaults to time.Sleep.
	sleep func(time.Duration)
}

// New returns a Planner with config defaults applied.
func New(src Source, cfg types.CrawlConfig, log zerolog.Logger, out io.Writer) *Planner {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.SplitThreshold <= 0 {
		cfg.SplitThreshold = 10000
	}
	if cfg.GapPolicy == "" {
		cfg.GapPolicy = types.GapWarn
	}
	return &Planner{src: src, cfg: cfg, log: log, out: out, sleep: time.Sleep}
}

// Harvest returns the new records published within iv, excluding identifiers
// present in known. It never mutates known and has no side effects beyond
// network reads. A failed page or interval is skipped and counted, not fatal;
// the only error Harvest returns is a truncation under GapPolicy "fail" or a
// cancelled context.
func (p *Planner) Harvest(ctx context.Context, query string, iv Interval, known map[string]bool) (Result, error) {
	var res Result
	if err := p.walk(ctx, query, iv, known, &res, 0); err != nil {
		return res, err
	}
	return res, nil
}

// walk recursively processes one interval. Recursion terminates because a
// split strictly shrinks both children and a single-day interval is never
// split again.
func (p *Planner) walk(ctx context.Context, query string, iv Interval, known map[string]bool, res *Result, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	total, err := p.src.Count(ctx, query, iv)
	if err != nil {
		res.IntervalsFailed++
		fmt.Fprintf(p.out, "warning: skipping interval %s: %v\n", iv, err)
		p.log.Warn().Stringer("interval", iv).Err(err).Msg("interval count failed")
		return nil
	}
	if total == 0 {
		return nil
	}

	if total > p.cfg.SplitThreshold && iv.Splittable() {
		fmt.Fprintf(p.out, "%s: %d results, splitting\n", iv, total)
		a, b := iv.Split()
		if err := p.walk(ctx, query, a, known, res, depth+1); err != nil {
			return err
		}
		p.pause()
		return p.walk(ctx, query, b, known, res, depth+1)
	}

	return p.crawlLeaf(ctx, query, iv, total, known, res)
}

// crawlLeaf pages through one terminal interval.
func (p *Planner) crawlLeaf(ctx context.Context, query string, iv Interval, total int, known map[string]bool, res *Result) error {
	pages := (total + p.cfg.PageSize - 1) / p.cfg.PageSize
	actual := pages
	if actual > p.cfg.MaxPages {
		actual = p.cfg.MaxPages
	}
	fmt.Fprintf(p.out, "%s: %d results, %d page(s)\n", iv, total, actual)

	fetched := 0
	for page := 1; page <= actual; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		records, err := p.src.Page(ctx, query, iv, page)
		if err != nil {
			res.PagesFailed++
			fmt.Fprintf(p.out, "warning: skipping page %d of %s: %v\n", page, iv, err)
			p.log.Warn().Stringer("interval", iv).Int("page", page).Err(err).Msg("page fetch failed")
			continue
		}
		fetched += len(records)

		for _, rec := range records {
			if known[rec.PMID] {
				res.Known++
				continue
			}
			res.New = append(res.New, rec)
		}

		if page < actual {
			p.pause()
		}
	}

	if pages > actual {
		gap := Gap{Interval: iv, Total: total, Fetched: fetched}
		res.Gaps = append(res.Gaps, gap)
		p.log.Warn().
			Stringer("interval", iv).
			Int("total", total).
			Int("fetched", fetched).
			Msg("interval truncated at page cap")
		if p.cfg.GapPolicy == types.GapFail {
			return fmt.Errorf("interval %s truncated: %d results, fetched %d (gap policy %q)",
				iv, total, fetched, p.cfg.GapPolicy)
		}
		fmt.Fprintf(p.out, "warning: %s truncated at %d pages (%d of %d results)\n",
			iv, actual, fetched, total)
	}
	return nil
}

// pause sleeps the configured page delay plus random jitter.
func (p *Planner) pause() {
	d := p.cfg.PageDelay
	if p.cfg.PageJitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.cfg.PageJitter)))
	}
	if d > 0 {
		p.sleep(d)
	}
}

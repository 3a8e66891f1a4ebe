// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich fills derived record fields one oracle call at a time:
// abstracts and affiliations from the listing service, keywords from the
// model, controlled-vocabulary terms from the batch oracle, and geography
// from affiliation text. A field that is already non-empty is never
// re-fetched or overwritten; interrupted passes resume from a checkpoint.
package enrich

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/llm"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/pubmed"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/snapshot"
	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

const defaultWorkers = 4

// DetailFetcher returns the per-record enrichment payload.
type DetailFetcher interface {
	Details(ctx context.Context, pmid string) (pubmed.Details, error)
}

// TermFetcher maps a batch of identifiers to controlled-vocabulary terms.
type TermFetcher interface {
	FetchTerms(ctx context.Context, pmids []string) (map[string][]string, error)
}

// KeywordOracle derives keywords from an abstract.
type KeywordOracle interface {
	Extract(ctx context.Context, abstract string) ([]string, error)
}

// GeoOracle parses geography out of affiliation text.
type GeoOracle interface {
	Parse(ctx context.Context, affiliation string) (llm.Geography, error)
}

// Summary holds counts from one enrichment pass.
type Summary struct {
	Enriched int
	Skipped  int
	Failed   int
}

// Total returns the number of entities considered.
func (s Summary) Total() int {
	return s.Enriched + s.Skipped + s.Failed
}

// HasFailures reports whether any oracle calls failed for good.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Scheduler runs enrichment passes over the latest snapshot and roster.
type Scheduler struct {
	store *snapshot.Store
	dir   string
	cfg   types.EnrichConfig
	log   zerolog.Logger
	out   io.Writer

	sleep func(time.Duration)
	now   func() time.Time
}

// New returns a scheduler writing checkpoints under dir.
func New(store *snapshot.Store, dir string, cfg types.EnrichConfig, log zerolog.Logger, out io.Writer) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Scheduler{
		store: store,
		dir:   dir,
		cfg:   cfg,
		log:   log,
		out:   out,
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// DetailOptions restricts a details pass. A non-empty PMIDs list bypasses
// the field-absence filter; records that already carry an abstract are
// still skipped unless Force is set.
type DetailOptions struct {
	PMIDs []string
	Force bool
}

func (s *Scheduler) loadRecords() ([]types.Record, error) {
	snap, err := s.store.LoadLatest()
	if err != nil {
		return nil, err
	}
	if len(snap.Records) == 0 {
		return nil, fmt.Errorf("no snapshot to enrich; run a crawl first")
	}
	return snap.Records, nil
}

func (s *Scheduler) limit(candidates []int) []int {
	if s.cfg.Limit > 0 && len(candidates) > s.cfg.Limit {
		return candidates[:s.cfg.Limit]
	}
	return candidates
}

// Details fetches the abstract, the page keyword list, and the per-author
// affiliation entries for every record lacking an abstract, folding the
// entries into the author roster.
func (s *Scheduler) Details(ctx context.Context, src DetailFetcher, opt DetailOptions) (Summary, error) {
	var sum Summary

	records, err := s.loadRecords()
	if err != nil {
		return sum, err
	}

	ckpt := newTableCheckpoint(s.dir, "details.checkpoint.csv", s.cfg.CheckpointEvery)
	if restored, err := ckpt.Restore(records); err != nil {
		return sum, fmt.Errorf("restoring checkpoint: %w", err)
	} else if restored > 0 {
		fmt.Fprintf(s.out, "resuming: %d records restored from checkpoint\n", restored)
	}

	rosterCkpt := newRosterCheckpoint(s.dir, "details_roster.checkpoint.csv", s.cfg.CheckpointEvery)
	rows, resumed, err := rosterCkpt.Load()
	if err != nil {
		return sum, fmt.Errorf("restoring roster checkpoint: %w", err)
	}
	if !resumed {
		roster, err := s.store.LoadLatestRoster()
		if err != nil {
			return sum, err
		}
		rows = roster.Rows
	}

	var candidates []int
	if len(opt.PMIDs) > 0 {
		want := make(map[string]bool, len(opt.PMIDs))
		for _, id := range opt.PMIDs {
			want[id] = true
		}
		for i, r := range records {
			if !want[r.PMID] {
				continue
			}
			if r.Abstract != "" && !opt.Force {
				sum.Skipped++
				continue
			}
			candidates = append(candidates, i)
		}
	} else {
		for i, r := range records {
			if r.Abstract == "" {
				candidates = append(candidates, i)
			}
		}
	}
	candidates = s.limit(candidates)

	for n, i := range candidates {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		pmid := records[i].PMID
		fmt.Fprintf(s.out, "fetching %s (%d/%d)\n", pmid, n+1, len(candidates))

		d, err := src.Details(ctx, pmid)
		if err != nil {
			s.log.Warn().Str("pmid", pmid).Err(err).Msg("detail fetch failed")
			sum.Failed++
			continue
		}

		if records[i].Abstract == "" || opt.Force {
			records[i].Abstract = d.Abstract
		}
		if len(records[i].Keywords) == 0 {
			records[i].Keywords = d.Keywords
		}
		rows = snapshot.AppendEntries(rows, d.Authors)
		sum.Enriched++

		if err := ckpt.Step(records); err != nil {
			return sum, fmt.Errorf("writing checkpoint: %w", err)
		}
		if err := rosterCkpt.Step(rows); err != nil {
			return sum, fmt.Errorf("writing roster checkpoint: %w", err)
		}
		s.sleep(s.cfg.CallDelay)
	}

	if _, err := s.store.Save(records, s.now()); err != nil {
		return sum, err
	}
	if _, err := s.store.SaveRoster(rows, s.now()); err != nil {
		return sum, err
	}
	ckpt.Remove()
	rosterCkpt.Remove()
	return sum, nil
}

// Keywords asks the model for five keywords per record that has an
// abstract but no keyword list yet.
func (s *Scheduler) Keywords(ctx context.Context, oracle KeywordOracle) (Summary, error) {
	var sum Summary

	records, err := s.loadRecords()
	if err != nil {
		return sum, err
	}

	ckpt := newTableCheckpoint(s.dir, "keywords.checkpoint.csv", s.cfg.CheckpointEvery)
	if restored, err := ckpt.Restore(records); err != nil {
		return sum, fmt.Errorf("restoring checkpoint: %w", err)
	} else if restored > 0 {
		fmt.Fprintf(s.out, "resuming: %d records restored from checkpoint\n", restored)
	}

	var candidates []int
	for i, r := range records {
		if r.Abstract != "" && len(r.Keywords) == 0 {
			candidates = append(candidates, i)
		}
	}
	candidates = s.limit(candidates)

	for n, i := range candidates {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		pmid := records[i].PMID
		fmt.Fprintf(s.out, "extracting keywords %s (%d/%d)\n", pmid, n+1, len(candidates))

		kws, err := oracle.Extract(ctx, records[i].Abstract)
		if err != nil {
			s.log.Warn().Str("pmid", pmid).Err(err).Msg("keyword extraction failed")
			sum.Failed++
			continue
		}

		records[i].Keywords = kws
		sum.Enriched++

		if err := ckpt.Step(records); err != nil {
			return sum, fmt.Errorf("writing checkpoint: %w", err)
		}
		s.sleep(s.cfg.CallDelay)
	}

	if _, err := s.store.Save(records, s.now()); err != nil {
		return sum, err
	}
	ckpt.Remove()
	return sum, nil
}

// Mesh fetches controlled-vocabulary terms for every record that has never
// had them fetched. A record fetched with no terms keeps an empty list and
// is not re-fetched.
func (s *Scheduler) Mesh(ctx context.Context, fetcher TermFetcher) (Summary, error) {
	var sum Summary

	records, err := s.loadRecords()
	if err != nil {
		return sum, err
	}

	ckpt := newTableCheckpoint(s.dir, "mesh.checkpoint.csv", s.cfg.CheckpointEvery)
	if restored, err := ckpt.Restore(records); err != nil {
		return sum, fmt.Errorf("restoring checkpoint: %w", err)
	} else if restored > 0 {
		fmt.Fprintf(s.out, "resuming: %d records restored from checkpoint\n", restored)
	}

	var candidates []int
	for i, r := range records {
		if r.MeshTerms == nil {
			candidates = append(candidates, i)
		}
	}
	candidates = s.limit(candidates)
	if len(candidates) == 0 {
		ckpt.Remove()
		return sum, nil
	}

	pmids := make([]string, len(candidates))
	for n, i := range candidates {
		pmids[n] = records[i].PMID
	}
	fmt.Fprintf(s.out, "fetching terms for %d records\n", len(pmids))

	terms, err := fetcher.FetchTerms(ctx, pmids)
	if err != nil {
		return sum, fmt.Errorf("fetching terms: %w", err)
	}

	for _, i := range candidates {
		list, ok := terms[records[i].PMID]
		if !ok {
			s.log.Warn().Str("pmid", records[i].PMID).Msg("no terms returned")
			sum.Failed++
			continue
		}
		records[i].MeshTerms = list
		sum.Enriched++
		if err := ckpt.Step(records); err != nil {
			return sum, fmt.Errorf("writing checkpoint: %w", err)
		}
	}

	if _, err := s.store.Save(records, s.now()); err != nil {
		return sum, err
	}
	ckpt.Remove()
	return sum, nil
}

// Geography parses organization, city and country out of the affiliation
// text of every roster row without a country. Oracle calls run on a small
// worker pool; one lock serializes roster writes and checkpointing. A row
// whose calls fail for good gets the Unknown placeholder rather than
// holding up the pass.
func (s *Scheduler) Geography(ctx context.Context, oracle GeoOracle) (Summary, error) {
	var sum Summary

	roster, err := s.store.LoadLatestRoster()
	if err != nil {
		return sum, err
	}
	rows := roster.Rows
	if len(rows) == 0 {
		return sum, fmt.Errorf("no roster to enrich; run a details pass first")
	}

	ckpt := newRosterCheckpoint(s.dir, "geography.checkpoint.csv", s.cfg.CheckpointEvery)
	if restored, err := ckpt.Restore(rows); err != nil {
		return sum, fmt.Errorf("restoring checkpoint: %w", err)
	} else if restored > 0 {
		fmt.Fprintf(s.out, "resuming: %d rows restored from checkpoint\n", restored)
	}

	var candidates []int
	for i, row := range rows {
		if row.Country == "" {
			candidates = append(candidates, i)
		}
	}
	candidates = s.limit(candidates)

	var mu sync.Mutex
	var ckptErr error
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				aff := rows[i].Affiliation

				var g llm.Geography
				var parseErr error
				if aff == "" {
					g = llm.Geography{Organization: types.GeoUnknown, City: types.GeoUnknown, Country: types.GeoUnknown}
				} else {
					g, parseErr = oracle.Parse(ctx, aff)
					if parseErr != nil {
						s.log.Warn().Str("author", rows[i].Author).Err(parseErr).Msg("geography parse failed")
						g = llm.Geography{Organization: types.GeoUnknown, City: types.GeoUnknown, Country: types.GeoUnknown}
					}
				}

				mu.Lock()
				rows[i].Organization = g.Organization
				rows[i].City = g.City
				rows[i].Country = g.Country
				if parseErr != nil {
					sum.Failed++
				} else {
					sum.Enriched++
				}
				fmt.Fprintf(s.out, "geocoded %s\n", rows[i].Author)
				if err := ckpt.Step(rows); err != nil && ckptErr == nil {
					ckptErr = err
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, i := range candidates {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	if ckptErr != nil {
		return sum, fmt.Errorf("writing checkpoint: %w", ckptErr)
	}

	if _, err := s.store.SaveRoster(rows, s.now()); err != nil {
		return sum, err
	}
	ckpt.Remove()
	return sum, nil
}

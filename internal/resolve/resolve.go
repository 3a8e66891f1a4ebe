// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve clusters same-named authors into same-person identity
// groups. Exact affiliation matches are merged first; the remaining pairs
// go to the judgment oracle. Identities are small integers scoped to one
// author name, assigned in first-seen order, so re-running over the same
// roster order reproduces the same numbering.
package resolve

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/llm"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/snapshot"
	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

// Judge decides whether two same-named authors are one person.
type Judge interface {
	Judge(ctx context.Context, author, affA, affB string) (llm.Judgment, error)
}

// Summary holds counts from one resolution run.
type Summary struct {
	Authors     int // author names resolved this run
	Groups      int // identity groups among them
	OracleCalls int
	Failed      int // judgments that failed and defaulted to "different"
}

// HasFailures reports whether any judgments fell back to the default.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Resolver assigns identity groups over the latest roster.
type Resolver struct {
	store *snapshot.Store
	dir   string
	cfg   types.ResolveConfig
	log   zerolog.Logger
	out   io.Writer

	sleep func(time.Duration)
	now   func() time.Time
}

// New returns a resolver writing its checkpoint under dir.
func New(store *snapshot.Store, dir string, cfg types.ResolveConfig, log zerolog.Logger, out io.Writer) *Resolver {
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 5
	}
	return &Resolver{
		store: store,
		dir:   dir,
		cfg:   cfg,
		log:   log,
		out:   out,
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// Resolve clusters every author name that still has unresolved rows, then
// merges rows that share an identity and saves the roster. Names resolved
// before an interruption are found in the checkpoint and not redone.
func (r *Resolver) Resolve(ctx context.Context, judge Judge) (Summary, error) {
	var sum Summary

	ckptPath := filepath.Join(r.dir, "resolve.checkpoint.csv")
	rows, resumed, err := loadCheckpoint(ckptPath)
	if err != nil {
		return sum, fmt.Errorf("restoring checkpoint: %w", err)
	}
	if !resumed {
		roster, err := r.store.LoadLatestRoster()
		if err != nil {
			return sum, err
		}
		rows = roster.Rows
	} else {
		fmt.Fprintln(r.out, "resuming from checkpoint")
	}
	if len(rows) == 0 {
		return sum, fmt.Errorf("no roster to resolve; run a details pass first")
	}

	// Group row indices by author, preserving roster order.
	var names []string
	byName := make(map[string][]int)
	for i, row := range rows {
		if _, ok := byName[row.Author]; !ok {
			names = append(names, row.Author)
		}
		byName[row.Author] = append(byName[row.Author], i)
	}

	pending := 0
	for _, name := range names {
		idx := byName[name]
		if !needsResolution(rows, idx) {
			continue
		}
		pending++

		fmt.Fprintf(r.out, "resolving %s (%d entries)\n", name, len(idx))
		ids, nameSum, err := r.resolveName(ctx, judge, name, rows, idx)
		if err != nil {
			return sum, err
		}
		for n, i := range idx {
			rows[i].AuthorID = ids[n]
		}
		sum.Authors++
		sum.Groups += nameSum.Groups
		sum.OracleCalls += nameSum.OracleCalls
		sum.Failed += nameSum.Failed

		if pending%r.cfg.CheckpointEvery == 0 {
			if err := snapshot.WriteRosterFile(ckptPath, rows); err != nil {
				return sum, fmt.Errorf("writing checkpoint: %w", err)
			}
		}
	}

	merged := mergeByIdentity(rows)
	if _, err := r.store.SaveRoster(merged, r.now()); err != nil {
		return sum, err
	}
	os.Remove(ckptPath)
	return sum, nil
}

func loadCheckpoint(path string) ([]types.RosterRow, bool, error) {
	rows, _, err := snapshot.ReadRosterFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return rows, true, nil
}

// needsResolution reports whether any row of one author name still lacks
// an identity.
func needsResolution(rows []types.RosterRow, idx []int) bool {
	for _, i := range idx {
		if rows[i].AuthorID == types.UnresolvedID {
			return true
		}
	}
	return false
}

// resolveName clusters the rows at idx, all sharing one author name, and
// returns one identity per row. A single entry short-circuits to identity
// 0 with no pairwise work.
func (r *Resolver) resolveName(ctx context.Context, judge Judge, author string, rows []types.RosterRow, idx []int) ([]int, Summary, error) {
	n := len(idx)
	if n == 1 {
		return []int{0}, Summary{Groups: 1}, nil
	}

	var sum Summary
	uf := newUnionFind(n)
	settled := make(map[[2]int]bool)

	// Pass 1: exact case-insensitive affiliation matches.
	for a := 0; a < n; a++ {
		affA := rows[idx[a]].Affiliation
		for b := a + 1; b < n; b++ {
			if affA != "" && strings.EqualFold(affA, rows[idx[b]].Affiliation) {
				uf.union(a, b)
				settled[[2]int{a, b}] = true
			}
		}
	}

	// Pass 2: oracle judgment for the rest. An empty affiliation on either
	// side is "different" without a call; so is a failed judgment, since an
	// uncertain merge is worse than a missed one.
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			if err := ctx.Err(); err != nil {
				return nil, sum, err
			}
			if settled[[2]int{a, b}] || uf.same(a, b) {
				continue
			}
			affA, affB := rows[idx[a]].Affiliation, rows[idx[b]].Affiliation
			if affA == "" || affB == "" {
				continue
			}

			sum.OracleCalls++
			j, err := judge.Judge(ctx, author, affA, affB)
			if err != nil {
				sum.Failed++
				r.log.Warn().Str("author", author).Str("affiliation_a", affA).Str("affiliation_b", affB).
					Err(err).Msg("judgment failed, treating as different")
				continue
			}
			r.log.Info().Str("author", author).Str("affiliation_a", affA).Str("affiliation_b", affB).
				Bool("same", j.Same).Str("rationale", j.Rationale).Msg("identity judgment")
			if j.Same {
				uf.union(a, b)
			}
			r.sleep(r.cfg.PairDelay)
		}
	}

	// Identities follow the order group leaders first appear in entry order.
	ids := make([]int, n)
	idOf := make(map[int]int)
	for i := 0; i < n; i++ {
		leader := uf.find(i)
		if _, ok := idOf[leader]; !ok {
			idOf[leader] = len(idOf)
		}
		ids[i] = idOf[leader]
	}
	sum.Groups = len(idOf)
	return ids, sum, nil
}

// mergeByIdentity folds rows sharing (author, identity) into one row per
// group: identifier lists are unioned and the longest affiliation becomes
// the representative, keeping its geography columns.
func mergeByIdentity(rows []types.RosterRow) []types.RosterRow {
	type key struct {
		author string
		id     int
	}

	var out []types.RosterRow
	index := make(map[key]int)

	for _, row := range rows {
		k := key{row.Author, row.AuthorID}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, row)
			continue
		}
		out[i].PMIDs = append(out[i].PMIDs, row.PMIDs...)
		if len(row.Affiliation) > len(out[i].Affiliation) {
			out[i].Affiliation = row.Affiliation
			out[i].Organization = row.Organization
			out[i].City = row.City
			out[i].Country = row.Country
		}
	}

	for i := range out {
		out[i].PMIDs = sortedUnique(out[i].PMIDs)
		out[i].PMIDCount = len(out[i].PMIDs)
	}
	return out
}

func sortedUnique(items []string) []string {
	seen := make(map[string]bool, len(items))
	var unique []string
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		unique = append(unique, it)
	}
	sort.Strings(unique)
	return unique
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package combine reconciles the two keyword sources of a record: the
// model-derived keyword list and the controlled-vocabulary term list. The
// result is a short list of terms that both sources agree on, with
// catalogue boilerplate ("Humans", "Retrospective Studies", ...) screened
// out by an exclusion list.
package combine

import (
	"sort"
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

// Engine applies the reconciliation policy with a fixed configuration.
type Engine struct {
	cfg     types.CombineConfig
	exclude []string
	metric  *metrics.RatcliffObershelp
}

// NewEngine returns an engine for cfg, applying defaults for unset fields.
func NewEngine(cfg types.CombineConfig) *Engine {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.6
	}
	if cfg.MaxTerms <= 0 {
		cfg.MaxTerms = 5
	}
	if cfg.ExcludeTerms == nil {
		cfg.ExcludeTerms = types.DefaultExcludeTerms
	}

	exclude := make([]string, len(cfg.ExcludeTerms))
	for i, term := range cfg.ExcludeTerms {
		exclude[i] = normalize(term)
	}
	return &Engine{
		cfg:     cfg,
		exclude: exclude,
		metric:  metrics.NewRatcliffObershelp(),
	}
}

// normalize strips punctuation, lowercases and trims, so that comparison
// sees "Follow-Up Studies" and "follow up studies" as one term. The
// major-topic marker on vocabulary terms disappears with the punctuation.
func normalize(term string) string {
	var b strings.Builder
	for _, r := range term {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(strings.ToLower(b.String()))
}

func (e *Engine) similar(a, b string) bool {
	return strutil.Similarity(a, b, e.metric) >= e.cfg.SimilarityThreshold
}

// excluded reports whether a normalized term equals or resembles any
// exclusion entry.
func (e *Engine) excluded(clean string) bool {
	for _, excl := range e.exclude {
		if clean == excl || e.similar(clean, excl) {
			return true
		}
	}
	return false
}

// Reconcile merges the two term lists for one record. The result is never
// nil: an empty list marks the record as reconciled with nothing kept.
//
// With only one source present, that source is exclusion-filtered and
// capped; vocabulary-only results prefer longer terms first. With both
// present, a keyword survives only when some not-yet-consumed vocabulary
// term resembles it, and it is the keyword that is kept, never the
// vocabulary spelling. Unmatched keywords are dropped with no fill.
func (e *Engine) Reconcile(keywords, vocabulary []string) []string {
	switch {
	case len(keywords) == 0 && len(vocabulary) == 0:
		return []string{}

	case len(keywords) == 0:
		valid := e.filter(vocabulary)
		sort.SliceStable(valid, func(i, j int) bool {
			return len(valid[i]) > len(valid[j])
		})
		return e.cap(valid)

	case len(vocabulary) == 0:
		return e.cap(e.filter(keywords))
	}

	cleanVocab := make([]string, len(vocabulary))
	vocabExcluded := make([]bool, len(vocabulary))
	for i, term := range vocabulary {
		cleanVocab[i] = normalize(term)
		vocabExcluded[i] = e.excluded(cleanVocab[i])
	}

	matched := []string{}
	consumed := make([]bool, len(vocabulary))
	for _, kw := range keywords {
		cleanKw := normalize(kw)
		if e.excluded(cleanKw) {
			continue
		}
		for i := range vocabulary {
			if vocabExcluded[i] || consumed[i] {
				continue
			}
			if e.similar(cleanKw, cleanVocab[i]) {
				matched = append(matched, kw)
				consumed[i] = true
				break
			}
		}
	}
	return e.cap(matched)
}

func (e *Engine) filter(terms []string) []string {
	valid := []string{}
	for _, term := range terms {
		if !e.excluded(normalize(term)) {
			valid = append(valid, term)
		}
	}
	return valid
}

func (e *Engine) cap(terms []string) []string {
	if len(terms) > e.cfg.MaxTerms {
		return terms[:e.cfg.MaxTerms]
	}
	return terms
}

// Apply reconciles every record that has no combined list yet and reports
// how many were updated. Records already reconciled are left alone.
func (e *Engine) Apply(records []types.Record) int {
	updated := 0
	for i := range records {
		if records[i].CombinedTerms != nil {
			continue
		}
		records[i].CombinedTerms = e.Reconcile(records[i].Keywords, records[i].MeshTerms)
		updated++
	}
	return updated
}

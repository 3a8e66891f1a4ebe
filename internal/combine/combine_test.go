// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package combine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

func defaultEngine() *Engine {
	return NewEngine(types.CombineConfig{})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Follow-Up Studies", "followup studies"},
		{"  Laparoscopy*  ", "laparoscopy"},
		{"Child, Preschool", "child preschool"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalize(tt.in), tt.in)
	}
}

func TestReconcileBothEmpty(t *testing.T) {
	got := defaultEngine().Reconcile(nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReconcileVocabularyOnly(t *testing.T) {
	e := defaultEngine()
	got := e.Reconcile(nil, []string{
		"Humans",               // excluded exactly
		"Laparoscopy*",         // kept
		"Hirschsprung Disease", // kept, longer
		"Infant, Newborn",      // excluded exactly
	})
	// Longer terms come first.
	assert.Equal(t, []string{"Hirschsprung Disease", "Laparoscopy*"}, got)
}

func TestReconcileVocabularyOnlyCapsAtFive(t *testing.T) {
	e := defaultEngine()
	got := e.Reconcile(nil, []string{
		"Hirschsprung Disease", "Laparoscopy", "Appendectomy",
		"Intussusception", "Esophageal Atresia", "Gastroschisis",
	})
	assert.Len(t, got, 5)
}

func TestReconcileKeywordsOnlyKeepsOrder(t *testing.T) {
	e := defaultEngine()
	got := e.Reconcile([]string{
		"Minimally invasive surgery",
		"Child", // excluded exactly
		"Enhanced recovery",
	}, nil)
	assert.Equal(t, []string{"Minimally invasive surgery", "Enhanced recovery"}, got)
}

func TestReconcileBothPresent(t *testing.T) {
	// "Laparoscopic Surgery" resembles "Laparoscopy" and is kept in its
	// keyword spelling; "Child" is on the exclusion list and dropped even
	// though "Pediatric Patients" is present on the vocabulary side.
	e := defaultEngine()
	got := e.Reconcile(
		[]string{"Laparoscopic Surgery", "Child"},
		[]string{"Laparoscopy", "Pediatric Patients"},
	)
	assert.Equal(t, []string{"Laparoscopic Surgery"}, got)
}

func TestReconcileUnmatchedKeywordsAreDropped(t *testing.T) {
	e := defaultEngine()
	got := e.Reconcile(
		[]string{"Hirschsprung disease", "Anorectal malformation"},
		[]string{"Hirschsprung Disease*"},
	)
	assert.Equal(t, []string{"Hirschsprung disease"}, got)
}

func TestReconcileVocabularyTermConsumedOnce(t *testing.T) {
	// Two near-identical keywords cannot both claim the single vocabulary
	// term; the second finds nothing left and is dropped.
	e := defaultEngine()
	got := e.Reconcile(
		[]string{"Laparoscopy", "Laparoscopic"},
		[]string{"Laparoscopy"},
	)
	assert.Equal(t, []string{"Laparoscopy"}, got)
}

func TestApplySkipsReconciledRecords(t *testing.T) {
	e := defaultEngine()
	records := []types.Record{
		{PMID: "1", Keywords: []string{"Laparoscopic Surgery"}, MeshTerms: []string{"Laparoscopy"}},
		{PMID: "2", CombinedTerms: []string{"Kept"}},
		{PMID: "3"},
	}

	updated := e.Apply(records)
	assert.Equal(t, 2, updated)
	assert.Equal(t, []string{"Laparoscopic Surgery"}, records[0].CombinedTerms)
	assert.Equal(t, []string{"Kept"}, records[1].CombinedTerms)
	// Nothing to reconcile still marks the record done.
	assert.NotNil(t, records[2].CombinedTerms)
	assert.Empty(t, records[2].CombinedTerms)
}

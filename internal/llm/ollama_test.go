// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	old := RetryDelay
	RetryDelay = time.Millisecond
	t.Cleanup(func() { RetryDelay = old })

	return New(types.LLMConfig{
		Endpoint:   ts.URL,
		Model:      "test-model",
		MaxRetries: 2,
		Timeout:    5 * time.Second,
	})
}

func respond(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"response": text}))
}

func TestGenerateSendsModelAndPrompt(t *testing.T) {
	var req generateRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		respond(t, w, "  hello  ")
	})

	out, err := c.Generate(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, "say hello", req.Prompt)
	assert.False(t, req.Stream)
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		respond(t, w, "ok")
	})

	out, err := c.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestGenerateExhaustsRetries(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Generate(context.Background(), "p")
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestJudgeParsesVerdict(t *testing.T) {
	tests := []struct {
		name     string
		response string
		same     bool
		wantErr  bool
	}{
		{"same", "Both are Children's National.\nVerdict: same", true, false},
		{"different", "Different cities.\nVerdict: different", false, false},
		{"no verdict", "I cannot decide.", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
				respond(t, w, tt.response)
			})

			j, err := NewJudge(c).Judge(context.Background(), "John Smith", "Hosp X", "Hosp Y")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.same, j.Same)
			assert.Equal(t, tt.response, j.Rationale)
		})
	}
}

func TestJudgeRetriesNonConformingResponse(t *testing.T) {
	// A reply without a verdict line is a failed attempt, not a final
	// answer: the next attempt may still conform.
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			respond(t, w, "I cannot decide.")
			return
		}
		respond(t, w, "Same institution either way.\nVerdict: same")
	})

	j, err := NewJudge(c).Judge(context.Background(), "John Smith", "Hosp X", "Hospital X")
	require.NoError(t, err)
	assert.True(t, j.Same)
	assert.Equal(t, 2, calls)
}

func TestJudgePersistentFormatViolationExhaustsRetries(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		respond(t, w, "I cannot decide.")
	})

	_, err := NewJudge(c).Judge(context.Background(), "John Smith", "Hosp X", "Hosp Y")
	assert.Error(t, err)
	// MaxRetries 2: one initial attempt plus two retries.
	assert.Equal(t, 3, calls)
}

func TestKeywordExtractorRetriesEmptyResponse(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			respond(t, w, "\n\n")
			return
		}
		respond(t, w, "Hernia\nLaparoscopy")
	})

	kws, err := NewKeywordExtractor(c).Extract(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hernia", "Laparoscopy"}, kws)
	assert.Equal(t, 2, calls)
}

func TestKeywordExtractorTakesLastFiveLines(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		respond(t, w, "Thinking about the abstract...\n\nPerianal abscess\nFistula-in-ano\nPathogenesis\nPediatric Patients\nDiagnosis and Treatment")
	})

	kws, err := NewKeywordExtractor(c).Extract(context.Background(), "some abstract")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Perianal abscess", "Fistula-in-ano", "Pathogenesis",
		"Pediatric Patients", "Diagnosis and Treatment",
	}, kws)
}

func TestKeywordExtractorDropsCodeFences(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		respond(t, w, "```\nHernia\nLaparoscopy\n```")
	})

	kws, err := NewKeywordExtractor(c).Extract(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hernia", "Laparoscopy"}, kws)
}

func TestKeywordExtractorEmptyResponseFails(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		respond(t, w, "\n\n")
	})

	_, err := NewKeywordExtractor(c).Extract(context.Background(), "a")
	assert.Error(t, err)
}

func TestAffiliationParserThreeLines(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		respond(t, w, "Let me look at the text.\nNorwegian University of Science and Technology\nTrondheim\nNorway")
	})

	g, err := NewAffiliationParser(c).Parse(context.Background(), "NTNU, Trondheim, Norway.")
	require.NoError(t, err)
	assert.Equal(t, Geography{
		Organization: "Norwegian University of Science and Technology",
		City:         "Trondheim",
		Country:      "Norway",
	}, g)
}

func TestAffiliationParserPadsMissingLines(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		respond(t, w, "Harvard Medical School")
	})

	g, err := NewAffiliationParser(c).Parse(context.Background(), "Harvard Medical School")
	require.NoError(t, err)
	assert.Equal(t, "Harvard Medical School", g.Organization)
	assert.Equal(t, types.GeoUnknown, g.City)
	assert.Equal(t, types.GeoUnknown, g.Country)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
)

const keywordCount = 5

const keywordPromptFmt = `Extract the %d English keywords that best capture the core content of
the following paper abstract.

Abstract: %s

Requirements:
1. Keywords must be in English and reflect the paper's central topic and
   findings.
2. Avoid overly broad or generic terms.
3. Output one keyword per line, %d lines total, with no numbering.
4. Do not add any other text and do not use code fences.

Example:
Abstract: Perianal abscess (PA) and fistula-in-ano (FIA) are common entities
in infancy. Although several hypotheses have been suggested, the pathogenesis
of PA/FIA remains elusive. The natural course of these diseases in infancy is
self-limiting in the majority of cases whereas older children show
similarities to PA/FIA in adults. Treatment remains empiric, comprises
conservative, as well as surgical approaches, and is dependent on the age of
the patient.
Output:
Perianal abscess
Fistula-in-ano
Pathogenesis
Pediatric Patients
Diagnosis and Treatment
`

// KeywordExtractor derives keywords from an abstract via the model.
type KeywordExtractor struct {
	client *Client
}

// NewKeywordExtractor wraps client as a keyword extractor.
func NewKeywordExtractor(client *Client) *KeywordExtractor {
	return &KeywordExtractor{client: client}
}

// Extract returns up to five keywords for the abstract. When the model
// over-produces, the last five content lines are the answer: reasoning
// models front-load their thinking and finish with the list. An empty
// response is retried like a failed call.
func (e *KeywordExtractor) Extract(ctx context.Context, abstract string) ([]string, error) {
	prompt := fmt.Sprintf(keywordPromptFmt, keywordCount, abstract, keywordCount)

	var kws []string
	_, err := e.client.generateConforming(ctx, prompt, func(out string) error {
		lines := contentLines(out)
		if len(lines) == 0 {
			return fmt.Errorf("no keywords in model response")
		}
		if len(lines) > keywordCount {
			lines = lines[len(lines)-keywordCount:]
		}
		kws = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	return kws, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	verdictSame      = "Verdict: same"
	verdictDifferent = "Verdict: different"
)

const judgePromptFmt = `Task: decide, from affiliation text alone, whether two authors with the
same name are the same person. Apply these rules in order:

1. Geography: if the two affiliations name different cities with no explicit
   link between the institutions (same hospital system, same university
   campus), they are different people. If the city matches, continue.
2. Institutional affiliation: if both affiliations belong to the same
   medical system or university (e.g. "Children's National Medical Center"
   and "Children's National Health System"), they are the same person. If
   the institutions are unrelated, they are different people.
3. Department: a department-level difference alone (e.g. "General & Thoracic
   Surgery" vs "Pediatric Surgery") with the same institution and city means
   the same person.

Analyze the geography and the institutional relationship first, then end
your answer with exactly one of the lines "Verdict: same" or
"Verdict: different".

Author name: %s
Affiliation 1: %s
Affiliation 2: %s
`

// Judgment is one identity decision together with the model's full
// reasoning, kept for the audit trail.
type Judgment struct {
	Same      bool
	Rationale string
}

// Judge asks the model whether two same-named authors are one person.
type Judge struct {
	client *Client
}

// NewJudge wraps client as an identity judge.
func NewJudge(client *Client) *Judge {
	return &Judge{client: client}
}

// Judge returns the model's verdict for one affiliation pair. A response
// without a verdict line is retried like any other failure; callers treat
// an exhausted error as "different people".
func (j *Judge) Judge(ctx context.Context, author, affA, affB string) (Judgment, error) {
	prompt := fmt.Sprintf(judgePromptFmt, author, affA, affB)

	var verdict Judgment
	_, err := j.client.generateConforming(ctx, prompt, func(out string) error {
		v, err := parseVerdict(out)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})
	if err != nil {
		return Judgment{}, err
	}
	return verdict, nil
}

func parseVerdict(out string) (Judgment, error) {
	switch {
	case strings.Contains(out, verdictSame):
		return Judgment{Same: true, Rationale: out}, nil
	case strings.Contains(out, verdictDifferent):
		return Judgment{Same: false, Rationale: out}, nil
	default:
		return Judgment{}, fmt.Errorf("no verdict line in model response")
	}
}

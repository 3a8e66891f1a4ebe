// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"

	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

const affiliationPromptFmt = `Extract the primary organization, the city, and the country from the
following affiliation text.

Affiliation: %s

Requirements:
1. Organization: the main institution or university, usually the
   highest-level one named.
2. City: the city the institution is in.
3. Country: the full standard country name, never an abbreviation.
   - USA becomes United States of America
   - UK becomes United Kingdom
   - PRC becomes People's Republic of China
   - France stays France (already the full name)

Example:
Input: Institute of Clinical and Molecular Medicine, Norwegian University of
Science and Technology, Trondheim, Norway.
Output:
Norwegian University of Science and Technology
Trondheim
Norway

Another example:
Input: Department of Pediatrics, Harvard Medical School, Boston, USA
Output:
Harvard Medical School
Boston
United States of America

Follow the example format exactly: one item per line, three lines, no other
text, no code fences.
`

// Geography is the parsed location of one affiliation string.
type Geography struct {
	Organization string
	City         string
	Country      string
}

// AffiliationParser extracts organization, city and country from free-form
// affiliation text via the model.
type AffiliationParser struct {
	client *Client
}

// NewAffiliationParser wraps client as an affiliation parser.
func NewAffiliationParser(client *Client) *AffiliationParser {
	return &AffiliationParser{client: client}
}

// Parse returns the geography for one affiliation string. Missing trailing
// lines fall back to the Unknown placeholder; a fully empty response is
// retried like a failed call.
func (p *AffiliationParser) Parse(ctx context.Context, affiliation string) (Geography, error) {
	prompt := fmt.Sprintf(affiliationPromptFmt, affiliation)

	var g Geography
	_, err := p.client.generateConforming(ctx, prompt, func(out string) error {
		lines := contentLines(out)
		if len(lines) == 0 {
			return fmt.Errorf("no geography in model response")
		}
		// Reasoning models front-load their thinking; the answer is the
		// last three content lines.
		if len(lines) > 3 {
			lines = lines[len(lines)-3:]
		}
		for len(lines) < 3 {
			lines = append(lines, types.GeoUnknown)
		}
		g = Geography{
			Organization: lines[0],
			City:         lines[1],
			Country:      lines[2],
		}
		return nil
	})
	if err != nil {
		return Geography{}, err
	}
	return g, nil
}

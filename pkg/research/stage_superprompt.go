package research

import (
	"context"
	"fmt"
)

// bcpSchemaHint enumerates the canonical BCP fields the Superprompt stage
// asks a ResearchClient to populate, matching pkg/schema.BCP's JSON shape.
const bcpSchemaHint = `{
  "company_name": "string, required",
  "buyer_location": "string, required",
  "segments": ["string"],
  "material": {"polymer": "string, required", "forms": ["string"], "colors": ["string"], "applications": ["string"], "process": "string"},
  "specification": {"mfi_min": "number", "mfi_max": "number", "density_min": "number", "density_max": "number", "ash_max": "number"},
  "contamination": {"max_ppm": "number", "banned": ["string"]},
  "certifications": ["string"],
  "pricing_band": {"min": "number", "max": "number", "currency": "string", "incoterm": "string"},
  "geography": {"countries": ["string"], "states": ["string"], "regions": ["string"], "ports": ["string"]},
  "logistics": {"min_load_lbs": "number", "max_lane_distance": "number"}
}`

// superprompt emits one schema-constrained prompt per planned query,
// explicitly requesting a JSON array of BCP-shaped objects.
func (p *Pipeline) superprompt(_ context.Context, queries []PlannedQuery) ([]Prompt, error) {
	prompts := make([]Prompt, 0, len(queries))
	for i, q := range queries {
		text := fmt.Sprintf(
			"Identify up to %d buyers of %s polymer material in scope %q. "+
				"Respond with a JSON array where each element matches exactly this shape "+
				"(omit fields you cannot determine, do not invent values): %s",
			q.MaxResults, q.Polymer, q.Scope, bcpSchemaHint)
		prompts = append(prompts, Prompt{Query: Query{Index: i, Scope: q.Scope}, Text: text})
	}
	return prompts, nil
}

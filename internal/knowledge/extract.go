package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Delimiters for the extraction record format the model is asked to emit.
// One record per line: fields joined by recordSep, records terminated by the
// line break, the whole output ended with completionMark.
const (
	recordSep      = "<|>"
	completionMark = "<|COMPLETE|>"
)

// extractionSystemPrompt instructs the model to emit entities and
// relationships in a machine-parseable delimited format.
const extractionSystemPrompt = `You are a knowledge-graph extraction assistant.
Given a text passage, identify the entities it mentions and the relationships
between them. Output one record per line using exactly this format:

("entity"` + recordSep + `ENTITY_NAME` + recordSep + `ENTITY_TYPE` + recordSep + `DESCRIPTION)
("relationship"` + recordSep + `SOURCE_ENTITY` + recordSep + `TARGET_ENTITY` + recordSep + `DESCRIPTION` + recordSep + `KEYWORDS` + recordSep + `STRENGTH)

Rules:
- ENTITY_NAME and the relationship endpoints are short noun phrases in UPPER CASE.
- ENTITY_TYPE is one of: organization, person, location, event, concept, metric, product, other.
- DESCRIPTION is a single sentence grounded in the passage.
- KEYWORDS is a comma-separated list of one to three words.
- STRENGTH is an integer from 1 to 10.
- Emit entity records before relationship records.
- Finish the output with ` + completionMark + ` on its own line.`

// extractedEntity is one parsed entity record.
type extractedEntity struct {
	name        string
	entityType  string
	description string
}

// extractedRelation is one parsed relationship record.
type extractedRelation struct {
	source      string
	target      string
	description string
	keywords    string
	weight      float64
}

// extractGraph asks the completer to extract entities and relationships
// from one chunk of text.
func extractGraph(ctx context.Context, c Completer, chunk string) ([]extractedEntity, []extractedRelation, error) {
	prompt := fmt.Sprintf("Extract entities and relationships from the following passage:\n\n%s", chunk)
	out, err := c.Complete(ctx, extractionSystemPrompt, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("knowledge: extraction call failed: %w", err)
	}
	entities, relations := parseExtraction(out)
	return entities, relations, nil
}

// parseExtraction parses the delimited records out of model output. Lines
// that do not match the expected shape are skipped — model formatting slips
// must not fail the whole document.
func parseExtraction(out string) ([]extractedEntity, []extractedRelation) {
	var entities []extractedEntity
	var relations []extractedRelation

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == completionMark {
			continue
		}
		line = strings.TrimPrefix(line, "(")
		line = strings.TrimSuffix(line, ")")

		fields := strings.Split(line, recordSep)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		kind := strings.Trim(fields[0], `"`)

		switch {
		case kind == "entity" && len(fields) >= 4:
			name := canonicalName(fields[1])
			if name == "" {
				continue
			}
			entities = append(entities, extractedEntity{
				name:        name,
				entityType:  strings.ToLower(fields[2]),
				description: fields[3],
			})

		case kind == "relationship" && len(fields) >= 6:
			src, dst := canonicalName(fields[1]), canonicalName(fields[2])
			if src == "" || dst == "" || src == dst {
				continue
			}
			weight, err := strconv.ParseFloat(fields[5], 64)
			if err != nil || weight <= 0 {
				weight = 1
			}
			relations = append(relations, extractedRelation{
				source:      src,
				target:      dst,
				description: fields[3],
				keywords:    fields[4],
				weight:      weight,
			})
		}
	}

	return entities, relations
}

// canonicalName normalizes an entity name to its canonical graph-node form:
// trimmed, quote-stripped, upper-cased.
func canonicalName(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	return strings.ToUpper(s)
}

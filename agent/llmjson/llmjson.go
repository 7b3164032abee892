// Package llmjson turns free-form LLM output into validated structures.
// Every model response passes through an explicit JSON-schema check with a
// repair step for the usual failure shapes (markdown fences, leading prose)
// instead of optimistic parsing.
package llmjson

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
)

// AnalysisSchema validates the analysis-shaped responses. Engines merge the
// validated fields over the deterministic baseline.
const AnalysisSchema = `{
  "type": "object",
  "properties": {
    "health_score": {"type": "number", "minimum": 0, "maximum": 10},
    "insights": {"type": "array", "items": {"type": "string"}},
    "risks": {"type": "array", "items": {"type": "string"}},
    "narrative": {"type": "string"},
    "next_best_actions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "priority": {"type": "string", "enum": ["High", "Medium", "Low"]},
          "rationale": {"type": "string"},
          "impact": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        },
        "required": ["title", "priority"]
      }
    }
  },
  "required": ["insights"]
}`

// RecommendationsSchema validates a bare recommendation list.
const RecommendationsSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "properties": {
      "title": {"type": "string", "minLength": 1},
      "description": {"type": "string"},
      "priority": {"type": "string", "enum": ["High", "Medium", "Low"]},
      "rationale": {"type": "string"},
      "impact": {"type": "string"},
      "confidence": {"type": "number", "minimum": 0, "maximum": 1}
    },
    "required": ["title", "priority", "rationale"]
  }
}`

// PlanSchema validates an action plan.
const PlanSchema = `{
  "type": "object",
  "properties": {
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "action": {
            "type": "string",
            "enum": ["create_task", "create_case", "create_opportunity", "update_opportunity", "send_email"]
          },
          "title": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "due_date": {"type": "string"},
          "owner": {"type": "string"}
        },
        "required": ["action", "title"]
      }
    },
    "success_metrics": {"type": "array", "items": {"type": "string"}},
    "timeline_days": {"type": "integer", "minimum": 0}
  },
  "required": ["steps"]
}`

// AnalysisOutput is the shape the analysis prompts request.
type AnalysisOutput struct {
	HealthScore     float64                    `json:"health_score,omitempty"`
	Insights        []string                   `json:"insights"`
	Risks           []string                   `json:"risks,omitempty"`
	Narrative       string                     `json:"narrative,omitempty"`
	NextBestActions []contractx.Recommendation `json:"next_best_actions,omitempty"`
}

// PlanOutput is the shape the planning prompts request.
type PlanOutput struct {
	Steps          []contractx.PlanStep `json:"steps"`
	SuccessMetrics []string             `json:"success_metrics,omitempty"`
	TimelineDays   int                  `json:"timeline_days,omitempty"`
}

// Decode validates raw model output against schema and unmarshals it. When
// the raw text does not validate as-is, the repaired form (fences stripped,
// first balanced JSON value extracted) gets one more chance before the call
// fails with ErrSchemaViolation.
func Decode[T any](raw, schema string) (T, error) {
	var out T

	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return out, fmt.Errorf("%w: empty model output", contractx.ErrSchemaViolation)
	}

	validated, err := validate(candidate, schema)
	if err != nil {
		repaired := Repair(candidate)
		if repaired == candidate {
			return out, err
		}
		validated, err = validate(repaired, schema)
		if err != nil {
			return out, err
		}
	}

	if err := json.Unmarshal([]byte(validated), &out); err != nil {
		return out, fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	return out, nil
}

func validate(candidate, schema string) (string, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(candidate),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return "", fmt.Errorf("%w: %s", contractx.ErrSchemaViolation, strings.Join(details, "; "))
	}
	return candidate, nil
}

// Repair strips markdown code fences and extracts the first balanced JSON
// object or array from the text. It returns the input unchanged when no
// JSON value can be located.
func Repair(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return raw
	}

	extracted := extractBalanced(s[start:])
	if extracted == "" {
		return raw
	}
	return extracted
}

// extractBalanced scans for the end of the JSON value opening at s[0],
// honoring string literals and escapes.
func extractBalanced(s string) string {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

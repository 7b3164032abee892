package llmjson

import (
	"errors"
	"testing"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
)

func TestDecodeCleanAnalysis(t *testing.T) {
	t.Parallel()

	raw := `{"health_score":7,"insights":["steady pipeline"],"risks":["renewal in 60 days"],"narrative":"ok"}`

	out, err := Decode[AnalysisOutput](raw, AnalysisSchema)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if out.HealthScore != 7 || len(out.Insights) != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestDecodeRepairsFencedOutput(t *testing.T) {
	t.Parallel()

	raw := "Here is my analysis:\n```json\n{\"insights\":[\"buried in prose\"]}\n```\nHope that helps!"

	out, err := Decode[AnalysisOutput](raw, AnalysisSchema)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(out.Insights) != 1 || out.Insights[0] != "buried in prose" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestDecodeRepairsLeadingProse(t *testing.T) {
	t.Parallel()

	raw := `Sure! The recommendations are: [{"title":"Book QBR","priority":"High","rationale":"quarter ending"}] as requested.`

	out, err := Decode[[]contractx.Recommendation](raw, RecommendationsSchema)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(out) != 1 || out[0].Title != "Book QBR" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestDecodeRejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"missing required field", `{"risks":["no insights key"]}`},
		{"bad priority enum", `[{"title":"x","priority":"Urgent","rationale":"y"}]`},
		{"empty output", "   "},
		{"plain prose", "I could not produce JSON today."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var err error
			if tt.name == "bad priority enum" {
				_, err = Decode[[]contractx.Recommendation](tt.raw, RecommendationsSchema)
			} else {
				_, err = Decode[AnalysisOutput](tt.raw, AnalysisSchema)
			}
			if !errors.Is(err, contractx.ErrSchemaViolation) {
				t.Fatalf("expected ErrSchemaViolation, got %v", err)
			}
		})
	}
}

func TestDecodePlan(t *testing.T) {
	t.Parallel()

	raw := `{"steps":[{"action":"send_email","title":"Check in","description":"hello"}],"timeline_days":14}`

	out, err := Decode[PlanOutput](raw, PlanSchema)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(out.Steps) != 1 || out.Steps[0].Action != contractx.ActionSendEmail {
		t.Fatalf("unexpected plan: %+v", out)
	}
	if out.TimelineDays != 14 {
		t.Fatalf("timeline = %d", out.TimelineDays)
	}
}

func TestDecodePlanRejectsUnknownAction(t *testing.T) {
	t.Parallel()

	raw := `{"steps":[{"action":"launch_rocket","title":"nope"}]}`

	if _, err := Decode[PlanOutput](raw, PlanSchema); !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestRepairStringAwareExtraction(t *testing.T) {
	t.Parallel()

	// the brace inside the string must not close the object early
	raw := `noise {"insights":["contains } brace and \" quote"]} trailing`

	out, err := Decode[AnalysisOutput](raw, AnalysisSchema)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(out.Insights) != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
}

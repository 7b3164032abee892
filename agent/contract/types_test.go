package contract

import (
	"encoding/json"
	"testing"
)

func TestRecommendationRoundTrip(t *testing.T) {
	t.Parallel()

	in := Recommendation{
		Title:       "Book executive business review",
		Description: "Quarterly touchpoint with the economic buyer",
		Priority:    PriorityHigh,
		Rationale:   "no exec touchpoint in 90 days",
		Impact:      "retention",
		Confidence:  0.85,
	}

	encoded, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out Recommendation
	if err := json.Unmarshal(encoded, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if out.Title != in.Title {
		t.Fatalf("title changed: %q", out.Title)
	}
	if out.Priority != in.Priority {
		t.Fatalf("priority changed: %q", out.Priority)
	}
	if out.Rationale != in.Rationale {
		t.Fatalf("rationale changed: %q", out.Rationale)
	}
	if out != in {
		t.Fatalf("round trip lost fields: %#v", out)
	}
}

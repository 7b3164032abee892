package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/analyst.txt
	analystRaw string

	//go:embed template/strategist.txt
	strategistRaw string

	//go:embed template/planner.txt
	plannerRaw string

	//go:embed template/risk_review.txt
	riskReviewRaw string

	//go:embed template/moderator.txt
	moderatorRaw string

	//go:embed template/direct.txt
	directRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Analyst    string
	Strategist string
	Planner    string
	RiskReview string
	Moderator  string
	Direct     string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings. Safe to
// call concurrently; the embed is compile-time and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Analyst:    strings.TrimSpace(analystRaw),
		Strategist: strings.TrimSpace(strategistRaw),
		Planner:    strings.TrimSpace(plannerRaw),
		RiskReview: strings.TrimSpace(riskReviewRaw),
		Moderator:  strings.TrimSpace(moderatorRaw),
		Direct:     strings.TrimSpace(directRaw),
	}
}

// Package formatter flattens a fetched account bundle into LLM-ready
// context. Pure transformation, no state.
package formatter

import (
	"encoding/json"
	"fmt"
	"strings"

	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

// Summary carries the aggregate counts surfaced to both prompts and the
// dashboard.
type Summary struct {
	TotalContacts         int     `json:"total_contacts"`
	OpenOpportunities     int     `json:"open_opportunities"`
	TotalOpportunityValue float64 `json:"total_opportunity_value"`
	OpenCases             int     `json:"open_cases"`
}

// Summarize computes the aggregates for one bundle.
func Summarize(bundle *salesforcex.AccountBundle) Summary {
	return Summary{
		TotalContacts:         len(bundle.Contacts),
		OpenOpportunities:     bundle.OpenOpportunities(),
		TotalOpportunityValue: bundle.OpenPipelineValue(),
		OpenCases:             bundle.OpenCases(),
	}
}

// ContextJSON serializes the bundle plus its summary into the JSON blob the
// engines embed into prompts.
func ContextJSON(bundle *salesforcex.AccountBundle) (string, error) {
	payload := struct {
		*salesforcex.AccountBundle
		Summary Summary `json:"summary"`
	}{
		AccountBundle: bundle,
		Summary:       Summarize(bundle),
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal account context: %w", err)
	}
	return string(encoded), nil
}

// ContextText renders a human-readable context block for prompt use.
func ContextText(bundle *salesforcex.AccountBundle) string {
	a := bundle.Account
	s := Summarize(bundle)

	var b strings.Builder
	fmt.Fprintf(&b, "Account: %s\n", a.Name)
	fmt.Fprintf(&b, "Industry: %s\n", orNA(a.Industry))
	fmt.Fprintf(&b, "Type: %s\n", orNA(a.Type))
	fmt.Fprintf(&b, "Annual Revenue: $%.0f\n", a.AnnualRevenue)
	fmt.Fprintf(&b, "Employees: %d\n", a.NumberOfEmployees)
	fmt.Fprintf(&b, "Rating: %s\n", orNA(a.Rating))
	fmt.Fprintf(&b, "Contacts: %d\n", s.TotalContacts)
	fmt.Fprintf(&b, "Open Opportunities: %d (pipeline $%.0f)\n", s.OpenOpportunities, s.TotalOpportunityValue)
	fmt.Fprintf(&b, "Open Cases: %d\n", s.OpenCases)

	if len(bundle.Opportunities) > 0 {
		b.WriteString("\nOpportunities:\n")
		for _, o := range bundle.Opportunities {
			fmt.Fprintf(&b, "- %s | stage=%s | amount=$%.0f | close=%s | closed=%t won=%t\n",
				o.Name, o.StageName, o.Amount, o.CloseDate, o.IsClosed, o.IsWon)
		}
	}

	if len(bundle.Cases) > 0 {
		b.WriteString("\nRecent Cases:\n")
		for _, c := range bundle.Cases {
			fmt.Fprintf(&b, "- %s | status=%s | priority=%s | created=%s\n",
				c.Subject, c.Status, orNA(c.Priority), c.CreatedDate)
		}
	}

	if len(bundle.Tasks) > 0 {
		b.WriteString("\nRecent Tasks:\n")
		for _, t := range bundle.Tasks {
			fmt.Fprintf(&b, "- %s | status=%s | due=%s\n", t.Subject, orNA(t.Status), t.ActivityDate)
		}
	}

	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

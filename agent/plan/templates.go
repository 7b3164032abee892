// Package plan ships canned action-plan templates for the playbooks teams
// run often enough that an LLM round trip adds nothing. Templates
// materialize into the same ActionPlan shape the engines produce, so the
// executor treats both identically.
package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
)

type templateStep struct {
	action      string
	title       string
	description string
	dayOffset   int
	owner       string
}

type template struct {
	recommendation contractx.Recommendation
	steps          []templateStep
	successMetrics []string
	timelineDays   int
}

var templates = map[string]template{
	"renewal_campaign": {
		recommendation: contractx.Recommendation{
			Title:       "Run renewal campaign",
			Description: "Proactive renewal motion ahead of contract end",
			Priority:    contractx.PriorityHigh,
			Rationale:   "Contract approaching end date with healthy engagement",
		},
		steps: []templateStep{
			{contractx.ActionSendEmail, "Renewal check-in email", "Open the renewal conversation and confirm the buying timeline", 0, "CSM"},
			{contractx.ActionCreateTask, "Schedule renewal call", "Book the renewal call with the economic buyer", 3, "CSM"},
			{contractx.ActionCreateOpportunity, "Renewal opportunity", "Track the renewal as a pipeline opportunity", 7, "AM"},
			{contractx.ActionCreateTask, "Prepare renewal proposal", "Draft pricing and terms for the renewal", 14, "AM"},
		},
		successMetrics: []string{"Renewal call booked within 1 week", "Renewal opportunity in pipeline", "Proposal delivered inside 30 days"},
		timelineDays:   30,
	},
	"win_back_campaign": {
		recommendation: contractx.Recommendation{
			Title:       "Run win-back campaign",
			Description: "Re-engage a dormant or churning account",
			Priority:    contractx.PriorityMedium,
			Rationale:   "No open opportunities and low recent engagement",
		},
		steps: []templateStep{
			{contractx.ActionCreateTask, "Review account history", "Pull past deals and support history before outreach", 0, "CSM"},
			{contractx.ActionSendEmail, "Win-back outreach email", "Personalized re-engagement note referencing past value delivered", 2, "CSM"},
			{contractx.ActionCreateTask, "Executive sponsor outreach", "Have the exec sponsor reach their counterpart", 7, "Sales"},
			{contractx.ActionCreateCase, "Service health review", "Audit open issues so outreach lands on a clean slate", 7, "CSM"},
			{contractx.ActionCreateOpportunity, "Win-back opportunity", "Track the re-engagement as new pipeline", 21, "Sales"},
		},
		successMetrics: []string{"Response to outreach within 2 weeks", "Meeting booked with sponsor", "New opportunity created inside 45 days"},
		timelineDays:   45,
	},
}

// Names lists the available templates in stable order.
func Names() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Materialize builds a concrete plan from a named template, anchoring step
// due dates at base.
func Materialize(name string, base time.Time) (contractx.ActionPlan, error) {
	tpl, ok := templates[name]
	if !ok {
		return contractx.ActionPlan{}, fmt.Errorf("%w: unknown plan template %q", contractx.ErrValidation, name)
	}

	steps := make([]contractx.PlanStep, 0, len(tpl.steps))
	for _, s := range tpl.steps {
		steps = append(steps, contractx.PlanStep{
			Action:      s.action,
			Title:       s.title,
			Description: s.description,
			DueDate:     base.AddDate(0, 0, s.dayOffset).Format("2006-01-02"),
			Owner:       s.owner,
		})
	}

	return contractx.ActionPlan{
		ID:             uuid.NewString(),
		Recommendation: tpl.recommendation,
		Steps:          steps,
		SuccessMetrics: tpl.successMetrics,
		TimelineDays:   tpl.timelineDays,
	}, nil
}

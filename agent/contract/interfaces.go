package contract

import (
	"context"

	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

// Engine is one orchestration strategy over the shared pipeline:
// analyze -> recommend -> plan. Engines never write to the CRM.
type Engine interface {
	Name() EngineName
	Analyze(ctx context.Context, bundle *salesforcex.AccountBundle) (Analysis, error)
	Recommend(ctx context.Context, analysis Analysis) ([]Recommendation, error)
	Plan(ctx context.Context, analysis Analysis, selected Recommendation) (ActionPlan, error)
}

// ActionRunner is the CRM write surface the plan executor drives.
// *salesforce.Client satisfies it.
type ActionRunner interface {
	CreateTask(ctx context.Context, t salesforcex.TaskCreate) (string, error)
	CreateCase(ctx context.Context, c salesforcex.CaseCreate) (string, error)
	CreateOpportunity(ctx context.Context, o salesforcex.OpportunityCreate) (string, error)
	UpdateOpportunity(ctx context.Context, opportunityID string, u salesforcex.OpportunityUpdate) error
	SendEmail(ctx context.Context, e salesforcex.EmailCreate) (string, error)
}

// TextGenerator is a single-shot prompt-in/text-out LLM surface.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

package engine

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	analysisx "github.com/warin-t/salesforce-next-best-action/agent/analysis"
	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	formatterx "github.com/warin-t/salesforce-next-best-action/agent/formatter"
	llmjsonx "github.com/warin-t/salesforce-next-best-action/agent/llmjson"
	promptx "github.com/warin-t/salesforce-next-best-action/agent/prompt"
	openrouterx "github.com/warin-t/salesforce-next-best-action/pkg/openrouter"
	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

// CrewEngine runs a fixed sequence of specialist roles: the analyst reads
// the account, the strategist ranks actions, the planner turns the selected
// action into steps. No branching; each role consumes the previous role's
// validated output.
type CrewEngine struct {
	analyst    compose.Runnable[map[string]any, *schema.Message]
	strategist compose.Runnable[map[string]any, *schema.Message]
	planner    compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.Engine = (*CrewEngine)(nil)

func NewCrewEngine(ctx context.Context, builder openrouterx.LLMBuilder, prompts promptx.PromptSet) (*CrewEngine, error) {
	chatModel, err := builder.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("crew engine: build chat model: %w", err)
	}

	e := &CrewEngine{}
	if e.analyst, err = compileTextGraph(ctx, chatModel, prompts.Analyst, "nba.crew.analyst"); err != nil {
		return nil, err
	}
	if e.strategist, err = compileTextGraph(ctx, chatModel, prompts.Strategist, "nba.crew.strategist"); err != nil {
		return nil, err
	}
	if e.planner, err = compileTextGraph(ctx, chatModel, prompts.Planner, "nba.crew.planner"); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *CrewEngine) Name() contractx.EngineName { return contractx.EngineCrew }

func (e *CrewEngine) Analyze(ctx context.Context, bundle *salesforcex.AccountBundle) (contractx.Analysis, error) {
	if bundle == nil {
		return contractx.Analysis{}, fmt.Errorf("%w: account bundle is nil", contractx.ErrValidation)
	}

	accountContext, err := formatterx.ContextJSON(bundle)
	if err != nil {
		return contractx.Analysis{}, err
	}

	baseline := analysisx.Baseline(contractx.EngineCrew, bundle)
	payload, err := analysisPayload(baseline, accountContext)
	if err != nil {
		return contractx.Analysis{}, err
	}

	raw, err := invokeText(ctx, e.analyst, payload)
	if err != nil {
		return contractx.Analysis{}, err
	}

	out, err := llmjsonx.Decode[llmjsonx.AnalysisOutput](raw, llmjsonx.AnalysisSchema)
	if err != nil {
		return contractx.Analysis{}, err
	}
	return mergeAnalysis(baseline, out), nil
}

func (e *CrewEngine) Recommend(ctx context.Context, analysis contractx.Analysis) ([]contractx.Recommendation, error) {
	payload, err := recommendPayload(analysis)
	if err != nil {
		return nil, err
	}

	raw, err := invokeText(ctx, e.strategist, payload)
	if err != nil {
		return nil, err
	}
	return llmjsonx.Decode[[]contractx.Recommendation](raw, llmjsonx.RecommendationsSchema)
}

func (e *CrewEngine) Plan(ctx context.Context, analysis contractx.Analysis, selected contractx.Recommendation) (contractx.ActionPlan, error) {
	if err := validateSelected(selected); err != nil {
		return contractx.ActionPlan{}, err
	}

	payload, err := planPayload(analysis, selected)
	if err != nil {
		return contractx.ActionPlan{}, err
	}

	raw, err := invokeText(ctx, e.planner, payload)
	if err != nil {
		return contractx.ActionPlan{}, err
	}

	out, err := llmjsonx.Decode[llmjsonx.PlanOutput](raw, llmjsonx.PlanSchema)
	if err != nil {
		return contractx.ActionPlan{}, err
	}
	return buildPlan(selected, out), nil
}

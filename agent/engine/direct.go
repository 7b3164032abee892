package engine

import (
	"context"
	"fmt"

	analysisx "github.com/warin-t/salesforce-next-best-action/agent/analysis"
	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	formatterx "github.com/warin-t/salesforce-next-best-action/agent/formatter"
	llmjsonx "github.com/warin-t/salesforce-next-best-action/agent/llmjson"
	promptx "github.com/warin-t/salesforce-next-best-action/agent/prompt"
	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

// DirectEngine is the no-framework baseline: one prompt per pipeline stage
// against a plain text generator. Useful for comparing framework overhead
// against the orchestrated engines.
type DirectEngine struct {
	gen     contractx.TextGenerator
	prompts promptx.PromptSet
}

var _ contractx.Engine = (*DirectEngine)(nil)

func NewDirectEngine(gen contractx.TextGenerator, prompts promptx.PromptSet) *DirectEngine {
	return &DirectEngine{gen: gen, prompts: prompts}
}

func (e *DirectEngine) Name() contractx.EngineName { return contractx.EngineDirect }

func (e *DirectEngine) generate(ctx context.Context, prompt string) (string, error) {
	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	return raw, nil
}

func (e *DirectEngine) Analyze(ctx context.Context, bundle *salesforcex.AccountBundle) (contractx.Analysis, error) {
	if bundle == nil {
		return contractx.Analysis{}, fmt.Errorf("%w: account bundle is nil", contractx.ErrValidation)
	}

	accountContext := formatterx.ContextText(bundle)

	raw, err := e.generate(ctx, fmt.Sprintf("%s\n\nAccount Data:\n%s", e.prompts.Direct, accountContext))
	if err != nil {
		return contractx.Analysis{}, err
	}

	out, err := llmjsonx.Decode[llmjsonx.AnalysisOutput](raw, llmjsonx.AnalysisSchema)
	if err != nil {
		return contractx.Analysis{}, err
	}
	return mergeAnalysis(analysisx.Baseline(contractx.EngineDirect, bundle), out), nil
}

func (e *DirectEngine) Recommend(ctx context.Context, analysis contractx.Analysis) ([]contractx.Recommendation, error) {
	payload, err := recommendPayload(analysis)
	if err != nil {
		return nil, err
	}

	raw, err := e.generate(ctx, fmt.Sprintf("%s\n\nAccount analysis:\n%s", e.prompts.Strategist, payload))
	if err != nil {
		return nil, err
	}
	return llmjsonx.Decode[[]contractx.Recommendation](raw, llmjsonx.RecommendationsSchema)
}

func (e *DirectEngine) Plan(ctx context.Context, analysis contractx.Analysis, selected contractx.Recommendation) (contractx.ActionPlan, error) {
	if err := validateSelected(selected); err != nil {
		return contractx.ActionPlan{}, err
	}

	payload, err := planPayload(analysis, selected)
	if err != nil {
		return contractx.ActionPlan{}, err
	}

	raw, err := e.generate(ctx, fmt.Sprintf("%s\n\nInput:\n%s", e.prompts.Planner, payload))
	if err != nil {
		return contractx.ActionPlan{}, err
	}

	out, err := llmjsonx.Decode[llmjsonx.PlanOutput](raw, llmjsonx.PlanSchema)
	if err != nil {
		return contractx.ActionPlan{}, err
	}
	return buildPlan(selected, out), nil
}

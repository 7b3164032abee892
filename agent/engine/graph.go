package engine

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	analysisx "github.com/warin-t/salesforce-next-best-action/agent/analysis"
	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	formatterx "github.com/warin-t/salesforce-next-best-action/agent/formatter"
	llmjsonx "github.com/warin-t/salesforce-next-best-action/agent/llmjson"
	promptx "github.com/warin-t/salesforce-next-best-action/agent/prompt"
	openrouterx "github.com/warin-t/salesforce-next-best-action/pkg/openrouter"
	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

// GraphEngine routes analysis through an explicit graph with a conditional
// branch: accounts scoring below the risk threshold get the retention
// review, the rest get the growth-oriented analyst.
type GraphEngine struct {
	analyze    compose.Runnable[*salesforcex.AccountBundle, contractx.Analysis]
	analyst    compose.Runnable[map[string]any, *schema.Message]
	riskReview compose.Runnable[map[string]any, *schema.Message]
	strategist compose.Runnable[map[string]any, *schema.Message]
	planner    compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.Engine = (*GraphEngine)(nil)

func NewGraphEngine(ctx context.Context, builder openrouterx.LLMBuilder, prompts promptx.PromptSet) (*GraphEngine, error) {
	chatModel, err := builder.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph engine: build chat model: %w", err)
	}

	e := &GraphEngine{}

	if e.analyst, err = compileTextGraph(ctx, chatModel, prompts.Analyst, "nba.graph.analyst"); err != nil {
		return nil, err
	}
	if e.riskReview, err = compileTextGraph(ctx, chatModel, prompts.RiskReview, "nba.graph.risk_review"); err != nil {
		return nil, err
	}
	if e.strategist, err = compileTextGraph(ctx, chatModel, prompts.Strategist, "nba.graph.strategist"); err != nil {
		return nil, err
	}
	if e.planner, err = compileTextGraph(ctx, chatModel, prompts.Planner, "nba.graph.planner"); err != nil {
		return nil, err
	}

	if e.analyze, err = e.compileAnalyzeGraph(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *GraphEngine) Name() contractx.EngineName { return contractx.EngineGraph }

type analyzeState struct {
	Baseline contractx.Analysis
	Context  string
}

func (e *GraphEngine) compileAnalyzeGraph(
	ctx context.Context,
) (compose.Runnable[*salesforcex.AccountBundle, contractx.Analysis], error) {
	graph := compose.NewGraph[*salesforcex.AccountBundle, contractx.Analysis]()

	if err := graph.AddLambdaNode("score_baseline",
		compose.InvokableLambda(func(ctx context.Context, bundle *salesforcex.AccountBundle) (*analyzeState, error) {
			if bundle == nil {
				return nil, fmt.Errorf("%w: account bundle is nil", contractx.ErrValidation)
			}
			accountContext, err := formatterx.ContextJSON(bundle)
			if err != nil {
				return nil, err
			}
			return &analyzeState{
				Baseline: analysisx.Baseline(contractx.EngineGraph, bundle),
				Context:  accountContext,
			}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node score_baseline: %w", err)
	}

	if err := graph.AddLambdaNode("growth_path",
		compose.InvokableLambda(func(ctx context.Context, in *analyzeState) (contractx.Analysis, error) {
			return e.runAnalysisPath(ctx, e.analyst, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node growth_path: %w", err)
	}

	if err := graph.AddLambdaNode("risk_path",
		compose.InvokableLambda(func(ctx context.Context, in *analyzeState) (contractx.Analysis, error) {
			return e.runAnalysisPath(ctx, e.riskReview, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node risk_path: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *analyzeState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: analyze state is nil", contractx.ErrValidation)
			}
			if in.Baseline.HealthScore < riskThreshold {
				log.Debug().
					Float64("health_score", in.Baseline.HealthScore).
					Msg("routing analysis to risk path")
				return "risk_path", nil
			}
			return "growth_path", nil
		},
		map[string]bool{
			"growth_path": true,
			"risk_path":   true,
		},
	)

	if err := graph.AddBranch("score_baseline", branch); err != nil {
		return nil, fmt.Errorf("add analyze branch: %w", err)
	}
	if err := graph.AddEdge(compose.START, "score_baseline"); err != nil {
		return nil, fmt.Errorf("add edge start->score_baseline: %w", err)
	}
	if err := graph.AddEdge("growth_path", compose.END); err != nil {
		return nil, fmt.Errorf("add edge growth_path->end: %w", err)
	}
	if err := graph.AddEdge("risk_path", compose.END); err != nil {
		return nil, fmt.Errorf("add edge risk_path->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("nba.graph.analyze"))
	if err != nil {
		return nil, fmt.Errorf("compile analyze graph: %w", err)
	}
	return runner, nil
}

func (e *GraphEngine) runAnalysisPath(
	ctx context.Context,
	runner compose.Runnable[map[string]any, *schema.Message],
	in *analyzeState,
) (contractx.Analysis, error) {
	if in == nil {
		return contractx.Analysis{}, fmt.Errorf("%w: analyze state is nil", contractx.ErrValidation)
	}

	payload, err := analysisPayload(in.Baseline, in.Context)
	if err != nil {
		return contractx.Analysis{}, err
	}

	raw, err := invokeText(ctx, runner, payload)
	if err != nil {
		return contractx.Analysis{}, err
	}

	out, err := llmjsonx.Decode[llmjsonx.AnalysisOutput](raw, llmjsonx.AnalysisSchema)
	if err != nil {
		return contractx.Analysis{}, err
	}
	return mergeAnalysis(in.Baseline, out), nil
}

func (e *GraphEngine) Analyze(ctx context.Context, bundle *salesforcex.AccountBundle) (contractx.Analysis, error) {
	return e.analyze.Invoke(ctx, bundle)
}

func (e *GraphEngine) Recommend(ctx context.Context, analysis contractx.Analysis) ([]contractx.Recommendation, error) {
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

func (e *GraphEngine) Plan(ctx context.Context, analysis contractx.Analysis, selected contractx.Recommendation) (contractx.ActionPlan, error) {
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

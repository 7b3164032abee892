// Package engine implements the orchestration strategies that turn a fetched
// account bundle into an analysis, ranked recommendations, and an action
// plan. Every engine runs the same deterministic baseline first and pushes
// model output through schema validation, so strategies differ only in how
// they drive the LLM.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	llmjsonx "github.com/warin-t/salesforce-next-best-action/agent/llmjson"
)

// riskThreshold splits the analyze branch: baseline scores below it take the
// retention-focused path.
const riskThreshold = 6.0

// compileTextGraph builds the prompt -> model pipeline shared by the eino
// engines. The output stays a raw message so callers can run it through
// schema validation instead of optimistic parsing.
func compileTextGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: %s", contractx.ErrPromptMissing, graphName)
	}

	// FString treats braces as placeholders, so literal braces in the
	// prompt (JSON examples) must be escaped to reach the model verbatim.
	escapedPrompt := strings.NewReplacer("{", "{{", "}", "}}").Replace(systemPrompt)
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(escapedPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", graphName, err)
	}
	return runner, nil
}

// invokeText runs a compiled text graph over one user payload.
func invokeText(
	ctx context.Context,
	runner compose.Runnable[map[string]any, *schema.Message],
	input string,
) (string, error) {
	msg, err := runner.Invoke(ctx, map[string]any{"input": input})
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("%w: empty model response", contractx.ErrModelInvoke)
	}
	return msg.Content, nil
}

// mergeAnalysis layers validated model output over the deterministic
// baseline. The heuristic health score always wins; the model contributes
// insights, risks, candidate next actions, and the narrative.
func mergeAnalysis(base contractx.Analysis, out llmjsonx.AnalysisOutput) contractx.Analysis {
	base.Insights = append(base.Insights, out.Insights...)
	base.Risks = append(base.Risks, out.Risks...)
	base.NextActions = append(base.NextActions, out.NextBestActions...)
	if strings.TrimSpace(out.Narrative) != "" {
		base.Narrative = out.Narrative
	}
	return base
}

func buildPlan(selected contractx.Recommendation, out llmjsonx.PlanOutput) contractx.ActionPlan {
	return contractx.ActionPlan{
		ID:             uuid.NewString(),
		Recommendation: selected,
		Steps:          out.Steps,
		SuccessMetrics: out.SuccessMetrics,
		TimelineDays:   out.TimelineDays,
	}
}

// analysisPayload embeds the baseline next to the raw account context so the
// model sees the deterministic numbers it must not contradict.
func analysisPayload(baseline contractx.Analysis, accountContext string) (string, error) {
	encoded, err := json.Marshal(struct {
		Baseline contractx.Analysis `json:"baseline"`
		Account  json.RawMessage    `json:"account"`
	}{baseline, json.RawMessage(accountContext)})
	if err != nil {
		return "", fmt.Errorf("marshal analysis payload: %w", err)
	}
	return string(encoded), nil
}

func recommendPayload(analysis contractx.Analysis) (string, error) {
	encoded, err := json.Marshal(analysis)
	if err != nil {
		return "", fmt.Errorf("marshal recommend payload: %w", err)
	}
	return string(encoded), nil
}

func planPayload(analysis contractx.Analysis, selected contractx.Recommendation) (string, error) {
	encoded, err := json.Marshal(struct {
		Analysis contractx.Analysis       `json:"analysis"`
		Selected contractx.Recommendation `json:"selected_action"`
	}{analysis, selected})
	if err != nil {
		return "", fmt.Errorf("marshal plan payload: %w", err)
	}
	return string(encoded), nil
}

func validateSelected(selected contractx.Recommendation) error {
	if strings.TrimSpace(selected.Title) == "" {
		return fmt.Errorf("%w: selected recommendation has no title", contractx.ErrNoRecommendation)
	}
	return nil
}

package engine

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	analysisx "github.com/warin-t/salesforce-next-best-action/agent/analysis"
	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	formatterx "github.com/warin-t/salesforce-next-best-action/agent/formatter"
	llmjsonx "github.com/warin-t/salesforce-next-best-action/agent/llmjson"
	promptx "github.com/warin-t/salesforce-next-best-action/agent/prompt"
	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

// ChatCompleter is the slice of the OpenAI SDK the group chat needs.
// *openai.ChatCompletionService satisfies it.
type ChatCompleter interface {
	New(ctx context.Context, body openaisdk.ChatCompletionNewParams, opts ...option.RequestOption) (*openaisdk.ChatCompletion, error)
}

type persona struct {
	name   string
	system string
}

var chatPersonas = []persona{
	{
		name:   "DataAnalyst",
		system: "You are a CRM data analyst in an account review. Comment on pipeline momentum, deal velocity, and engagement signals in the account data. Two or three sentences, no JSON.",
	},
	{
		name:   "Strategist",
		system: "You are a customer success strategist in an account review. Build on the discussion so far and propose concrete next moves for this account. Two or three sentences, no JSON.",
	},
	{
		name:   "RiskAnalyst",
		system: "You are a risk analyst in an account review. Challenge the discussion so far: churn signals, service friction, contract exposure. Two or three sentences, no JSON.",
	},
}

// GroupChatEngine runs a round-robin discussion between specialist personas
// and has a moderator consolidate the transcript into structured output. It
// talks to the chat-completions API directly rather than through a compiled
// graph.
type GroupChatEngine struct {
	completer ChatCompleter
	model     string
	rounds    int
	prompts   promptx.PromptSet
}

var _ contractx.Engine = (*GroupChatEngine)(nil)

func NewGroupChatEngine(client *openaisdk.Client, model string, prompts promptx.PromptSet) *GroupChatEngine {
	var completer ChatCompleter
	if client != nil {
		completer = &client.Chat.Completions
	}
	return &GroupChatEngine{
		completer: completer,
		model:     model,
		rounds:    2,
		prompts:   prompts,
	}
}

// WithCompleter swaps the chat backend. Used by tests.
func (e *GroupChatEngine) WithCompleter(c ChatCompleter) *GroupChatEngine {
	e.completer = c
	return e
}

func (e *GroupChatEngine) Name() contractx.EngineName { return contractx.EngineGroupChat }

func (e *GroupChatEngine) complete(ctx context.Context, system, user string) (string, error) {
	if e.completer == nil {
		return "", fmt.Errorf("%w: group chat has no chat backend", contractx.ErrModelInvoke)
	}

	resp, err := e.completer.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(e.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(system),
			openaisdk.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", contractx.ErrModelInvoke)
	}
	return resp.Choices[0].Message.Content, nil
}

// discuss runs the fixed round-robin over the personas and returns the
// transcript. A persona that fails mid-discussion is logged and skipped so
// one flaky turn does not void the whole review.
func (e *GroupChatEngine) discuss(ctx context.Context, accountContext string) string {
	var transcript strings.Builder

	for round := 1; round <= e.rounds; round++ {
		for _, p := range chatPersonas {
			user := fmt.Sprintf("Account data:\n%s\n\nDiscussion so far:\n%s\nRound %d. Give your read.",
				accountContext, transcript.String(), round)

			reply, err := e.complete(ctx, p.system, user)
			if err != nil {
				log.Warn().Err(err).Str("persona", p.name).Int("round", round).
					Msg("group chat turn failed, skipping")
				continue
			}
			fmt.Fprintf(&transcript, "[%s] %s\n", p.name, strings.TrimSpace(reply))
		}
	}
	return transcript.String()
}

func (e *GroupChatEngine) moderate(ctx context.Context, task, accountContext, transcript string) (string, error) {
	user := fmt.Sprintf("Account data:\n%s\n\nDiscussion transcript:\n%s\n\nTask:\n%s",
		accountContext, transcript, task)
	return e.complete(ctx, e.prompts.Moderator, user)
}

func (e *GroupChatEngine) Analyze(ctx context.Context, bundle *salesforcex.AccountBundle) (contractx.Analysis, error) {
	if bundle == nil {
		return contractx.Analysis{}, fmt.Errorf("%w: account bundle is nil", contractx.ErrValidation)
	}

	accountContext, err := formatterx.ContextJSON(bundle)
	if err != nil {
		return contractx.Analysis{}, err
	}

	baseline := analysisx.Baseline(contractx.EngineGroupChat, bundle)
	payload, err := analysisPayload(baseline, accountContext)
	if err != nil {
		return contractx.Analysis{}, err
	}

	transcript := e.discuss(ctx, payload)

	const task = `Consolidate the discussion into JSON: {"insights": [...], "risks": [...], "narrative": "..."}. JSON only.`
	raw, err := e.moderate(ctx, task, payload, transcript)
	if err != nil {
		return contractx.Analysis{}, err
	}

	out, err := llmjsonx.Decode[llmjsonx.AnalysisOutput](raw, llmjsonx.AnalysisSchema)
	if err != nil {
		return contractx.Analysis{}, err
	}
	return mergeAnalysis(baseline, out), nil
}

func (e *GroupChatEngine) Recommend(ctx context.Context, analysis contractx.Analysis) ([]contractx.Recommendation, error) {
	payload, err := recommendPayload(analysis)
	if err != nil {
		return nil, err
	}

	raw, err := e.complete(ctx, e.prompts.Strategist, payload)
	if err != nil {
		return nil, err
	}
	return llmjsonx.Decode[[]contractx.Recommendation](raw, llmjsonx.RecommendationsSchema)
}

func (e *GroupChatEngine) Plan(ctx context.Context, analysis contractx.Analysis, selected contractx.Recommendation) (contractx.ActionPlan, error) {
	if err := validateSelected(selected); err != nil {
		return contractx.ActionPlan{}, err
	}

	payload, err := planPayload(analysis, selected)
	if err != nil {
		return contractx.ActionPlan{}, err
	}

	raw, err := e.complete(ctx, e.prompts.Planner, payload)
	if err != nil {
		return contractx.ActionPlan{}, err
	}

	out, err := llmjsonx.Decode[llmjsonx.PlanOutput](raw, llmjsonx.PlanSchema)
	if err != nil {
		return contractx.ActionPlan{}, err
	}
	return buildPlan(selected, out), nil
}

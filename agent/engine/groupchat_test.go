package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	promptx "github.com/warin-t/salesforce-next-best-action/agent/prompt"
)

type fakeCompleter struct {
	reply   func(system, user string) (string, error)
	systems []string
}

func (f *fakeCompleter) New(ctx context.Context, body openaisdk.ChatCompletionNewParams, opts ...option.RequestOption) (*openaisdk.ChatCompletion, error) {
	var system, user string
	for _, m := range body.Messages {
		if m.OfSystem != nil {
			system = m.OfSystem.Content.OfString.Value
		}
		if m.OfUser != nil {
			user = m.OfUser.Content.OfString.Value
		}
	}
	f.systems = append(f.systems, system)

	content, err := f.reply(system, user)
	if err != nil {
		return nil, err
	}
	return &openaisdk.ChatCompletion{
		Choices: []openaisdk.ChatCompletionChoice{
			{Message: openaisdk.ChatCompletionMessage{Content: content}},
		},
	}, nil
}

func TestGroupChatAnalyzeRunsRoundRobin(t *testing.T) {
	t.Parallel()

	prompts := promptx.LoadPromptSet()
	fake := &fakeCompleter{
		reply: func(system, user string) (string, error) {
			if system == prompts.Moderator {
				return `{"insights":["specialists agree on expansion"],"risks":["renewal is 90 days out"],"narrative":"Consensus: push expansion now."}`, nil
			}
			return "Pipeline looks strong, push the expansion play.", nil
		},
	}

	eng := NewGroupChatEngine(nil, "gpt-4o-mini", prompts).WithCompleter(fake)

	analysis, err := eng.Analyze(context.Background(), healthyBundle())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	// 3 personas x 2 rounds + 1 moderator call
	if len(fake.systems) != 7 {
		t.Fatalf("expected 7 completions, got %d", len(fake.systems))
	}
	if fake.systems[len(fake.systems)-1] != prompts.Moderator {
		t.Fatal("moderator did not get the final word")
	}
	if analysis.Narrative != "Consensus: push expansion now." {
		t.Fatalf("unexpected narrative: %s", analysis.Narrative)
	}
	if analysis.Engine != "groupchat" {
		t.Fatalf("unexpected engine label: %s", analysis.Engine)
	}
}

func TestGroupChatSurvivesFlakyPersona(t *testing.T) {
	t.Parallel()

	prompts := promptx.LoadPromptSet()
	fake := &fakeCompleter{
		reply: func(system, user string) (string, error) {
			if strings.Contains(system, "risk analyst") {
				return "", errors.New("rate limited")
			}
			if system == prompts.Moderator {
				return `{"insights":["two of three specialists reported"]}`, nil
			}
			return "Looks fine to me.", nil
		},
	}

	eng := NewGroupChatEngine(nil, "gpt-4o-mini", prompts).WithCompleter(fake)

	analysis, err := eng.Analyze(context.Background(), healthyBundle())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(analysis.Insights) == 0 {
		t.Fatal("expected insights despite flaky persona")
	}
}

func TestGroupChatNoBackend(t *testing.T) {
	t.Parallel()

	eng := NewGroupChatEngine(nil, "gpt-4o-mini", promptx.LoadPromptSet())

	_, err := eng.Analyze(context.Background(), healthyBundle())
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}

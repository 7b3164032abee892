package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	promptx "github.com/warin-t/salesforce-next-best-action/agent/prompt"
	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

type fakeChatModel struct {
	responses []*schema.Message
	err       error
	idx       int
	systems   []string
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	for _, msg := range input {
		if msg.Role == schema.System {
			f.systems = append(f.systems, msg.Content)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

type fakeBuilder struct {
	model *fakeChatModel
}

func (b *fakeBuilder) New(ctx context.Context) (einomodel.ToolCallingChatModel, error) {
	return b.model, nil
}

func healthyBundle() *salesforcex.AccountBundle {
	return &salesforcex.AccountBundle{
		Account: salesforcex.Account{
			ID:            "001000000000001AAA",
			Name:          "Acme Corp",
			AnnualRevenue: 1_000_000,
		},
		Opportunities: []salesforcex.Opportunity{
			{ID: "006000000000001AAA", Name: "Expansion", StageName: "Negotiation", Amount: 250_000},
		},
	}
}

func atRiskBundle() *salesforcex.AccountBundle {
	b := &salesforcex.AccountBundle{
		Account: salesforcex.Account{
			ID:            "001000000000002AAA",
			Name:          "Fading Inc",
			AnnualRevenue: 2_000_000,
		},
	}
	for i := 0; i < 6; i++ {
		b.Cases = append(b.Cases, salesforcex.Case{
			ID: "500000000000001AAA", Subject: "Outage", Status: "New", Priority: "High",
		})
	}
	return b
}

func TestGraphEngineAnalyzeMergesModelOutput(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{
		responses: []*schema.Message{
			{Content: `{"insights":["pipeline momentum is strong"],"risks":["single-threaded relationship"],"narrative":"Healthy account trending up.","next_best_actions":[{"title":"Propose multi-year renewal","priority":"High"}]}`},
		},
	}

	eng, err := NewGraphEngine(context.Background(), &fakeBuilder{model: fake}, promptx.LoadPromptSet())
	if err != nil {
		t.Fatalf("NewGraphEngine() error = %v", err)
	}

	analysis, err := eng.Analyze(context.Background(), healthyBundle())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if analysis.HealthScore != 10 {
		t.Fatalf("expected heuristic health score 10, got %v", analysis.HealthScore)
	}
	if len(analysis.Insights) == 0 || analysis.Insights[len(analysis.Insights)-1] != "pipeline momentum is strong" {
		t.Fatalf("model insight not merged: %#v", analysis.Insights)
	}
	if analysis.Narrative != "Healthy account trending up." {
		t.Fatalf("unexpected narrative: %s", analysis.Narrative)
	}
	if len(analysis.NextActions) != 1 || analysis.NextActions[0].Title != "Propose multi-year renewal" {
		t.Fatalf("model next actions not merged: %#v", analysis.NextActions)
	}
	if analysis.Sentiment.Score != 10 {
		t.Fatalf("expected neutral sentiment for caseless account, got %d", analysis.Sentiment.Score)
	}
	if analysis.Engine != "graph" {
		t.Fatalf("unexpected engine label: %s", analysis.Engine)
	}
}

func TestGraphEngineRoutesLowScoreToRiskPath(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{
		responses: []*schema.Message{
			{Content: `{"insights":["service friction is the churn driver"],"risks":["contract lapse"]}`},
		},
	}

	prompts := promptx.LoadPromptSet()
	eng, err := NewGraphEngine(context.Background(), &fakeBuilder{model: fake}, prompts)
	if err != nil {
		t.Fatalf("NewGraphEngine() error = %v", err)
	}

	if _, err := eng.Analyze(context.Background(), atRiskBundle()); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(fake.systems) != 1 {
		t.Fatalf("expected exactly one model call, got %d", len(fake.systems))
	}
	if fake.systems[0] != prompts.RiskReview {
		t.Fatalf("expected risk review prompt, got analyst path")
	}
}

func TestGraphEngineRecommend(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{
		responses: []*schema.Message{
			{Content: "```json\n[{\"title\":\"Book QBR\",\"priority\":\"High\",\"rationale\":\"no exec touchpoint this quarter\"}]\n```"},
		},
	}

	eng, err := NewGraphEngine(context.Background(), &fakeBuilder{model: fake}, promptx.LoadPromptSet())
	if err != nil {
		t.Fatalf("NewGraphEngine() error = %v", err)
	}

	recs, err := eng.Recommend(context.Background(), contractx.Analysis{Engine: "graph", HealthScore: 8})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Title != "Book QBR" {
		t.Fatalf("unexpected recommendations: %#v", recs)
	}
	if recs[0].Priority != contractx.PriorityHigh {
		t.Fatalf("unexpected priority: %s", recs[0].Priority)
	}
}

func TestGraphEnginePlanRejectsEmptySelection(t *testing.T) {
	t.Parallel()

	eng, err := NewGraphEngine(context.Background(), &fakeBuilder{model: &fakeChatModel{}}, promptx.LoadPromptSet())
	if err != nil {
		t.Fatalf("NewGraphEngine() error = %v", err)
	}

	_, err = eng.Plan(context.Background(), contractx.Analysis{}, contractx.Recommendation{})
	if !errors.Is(err, contractx.ErrNoRecommendation) {
		t.Fatalf("expected ErrNoRecommendation, got %v", err)
	}
}

func TestCrewEngineSchemaViolation(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{
		responses: []*schema.Message{
			{Content: `this is not json at all`},
		},
	}

	eng, err := NewCrewEngine(context.Background(), &fakeBuilder{model: fake}, promptx.LoadPromptSet())
	if err != nil {
		t.Fatalf("NewCrewEngine() error = %v", err)
	}

	_, err = eng.Analyze(context.Background(), healthyBundle())
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestCrewEnginePlan(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{
		responses: []*schema.Message{
			{Content: `{"steps":[{"action":"create_task","title":"Call champion","due_date":"2026-09-15","owner":"CSM"}],"success_metrics":["call booked"],"timeline_days":7}`},
		},
	}

	eng, err := NewCrewEngine(context.Background(), &fakeBuilder{model: fake}, promptx.LoadPromptSet())
	if err != nil {
		t.Fatalf("NewCrewEngine() error = %v", err)
	}

	selected := contractx.Recommendation{Title: "Re-engage champion", Priority: contractx.PriorityHigh}
	plan, err := eng.Plan(context.Background(), contractx.Analysis{Engine: "crew"}, selected)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if plan.ID == "" {
		t.Fatal("plan id not assigned")
	}
	if plan.Recommendation.Title != "Re-engage champion" {
		t.Fatalf("selected recommendation not carried: %#v", plan.Recommendation)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Action != contractx.ActionCreateTask {
		t.Fatalf("unexpected steps: %#v", plan.Steps)
	}
	if plan.TimelineDays != 7 {
		t.Fatalf("unexpected timeline: %d", plan.TimelineDays)
	}
}

func TestRegistryResolution(t *testing.T) {
	t.Parallel()

	direct := NewDirectEngine(fakeGenerator(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("unused")
	}), promptx.LoadPromptSet())

	r := NewRegistry(direct)

	if r.Default() != contractx.EngineDirect {
		t.Fatalf("expected direct as fallback default, got %s", r.Default())
	}

	eng, err := r.Get("")
	if err != nil {
		t.Fatalf("Get(default) error = %v", err)
	}
	if eng.Name() != contractx.EngineDirect {
		t.Fatalf("unexpected engine: %s", eng.Name())
	}

	if _, err := r.Get("autogen"); !errors.Is(err, contractx.ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
}

type fakeGenerator func(ctx context.Context, prompt string) (string, error)

func (f fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestDirectEngineAnalyze(t *testing.T) {
	t.Parallel()

	var gotPrompt string
	gen := fakeGenerator(func(ctx context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return `{"health_score":4,"insights":["no activity in 60 days"],"risks":["dormant account"]}`, nil
	})

	eng := NewDirectEngine(gen, promptx.LoadPromptSet())

	analysis, err := eng.Analyze(context.Background(), healthyBundle())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	// deterministic score wins over the model's opinion
	if analysis.HealthScore != 10 {
		t.Fatalf("expected heuristic score 10, got %v", analysis.HealthScore)
	}
	if !strings.Contains(gotPrompt, "Account: Acme Corp") {
		t.Fatal("account context missing from prompt")
	}
	if !strings.Contains(gotPrompt, "Open Opportunities: 1") {
		t.Fatalf("aggregates missing from prompt:\n%s", gotPrompt)
	}
	if len(analysis.Risks) == 0 || analysis.Risks[len(analysis.Risks)-1] != "dormant account" {
		t.Fatalf("model risk not merged: %#v", analysis.Risks)
	}
}

func TestDirectEngineModelFailure(t *testing.T) {
	t.Parallel()

	gen := fakeGenerator(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("quota exceeded")
	})

	eng := NewDirectEngine(gen, promptx.LoadPromptSet())
	_, err := eng.Analyze(context.Background(), healthyBundle())
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}

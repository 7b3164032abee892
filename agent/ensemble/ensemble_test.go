package ensemble

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

type stubEngine struct {
	name   contractx.EngineName
	score  float64
	fail   bool
	called bool
}

func (s *stubEngine) Name() contractx.EngineName { return s.name }

func (s *stubEngine) Analyze(ctx context.Context, bundle *salesforcex.AccountBundle) (contractx.Analysis, error) {
	s.called = true
	if s.fail {
		return contractx.Analysis{}, errors.New("model unavailable")
	}
	return contractx.Analysis{
		Engine:      string(s.name),
		HealthScore: s.score,
		Insights:    []string{"insight from " + string(s.name)},
	}, nil
}

func (s *stubEngine) Recommend(ctx context.Context, analysis contractx.Analysis) ([]contractx.Recommendation, error) {
	return nil, errors.New("not used")
}

func (s *stubEngine) Plan(ctx context.Context, analysis contractx.Analysis, selected contractx.Recommendation) (contractx.ActionPlan, error) {
	return contractx.ActionPlan{}, errors.New("not used")
}

func TestRunCollectsAllEngines(t *testing.T) {
	t.Parallel()

	engines := []contractx.Engine{
		&stubEngine{name: "graph", score: 8},
		&stubEngine{name: "crew", score: 7},
		&stubEngine{name: "direct", fail: true},
	}

	results, err := Run(context.Background(), engines, &salesforcex.AccountBundle{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, eng := range engines {
		if !eng.(*stubEngine).called {
			t.Fatalf("engine %s never ran", eng.Name())
		}
	}

	failed := 0
	for _, r := range results {
		if r.Err != "" {
			failed++
			if r.Engine != "direct" {
				t.Fatalf("wrong engine failed: %s", r.Engine)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected exactly one failure, got %d", failed)
	}
}

func TestRunRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	if _, err := Run(context.Background(), nil, &salesforcex.AccountBundle{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for no engines, got %v", err)
	}

	engines := []contractx.Engine{&stubEngine{name: "graph"}}
	if _, err := Run(context.Background(), engines, nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for nil bundle, got %v", err)
	}
}

func TestSummarizeConsensus(t *testing.T) {
	t.Parallel()

	results := []Result{
		{Engine: "graph", Analysis: contractx.Analysis{HealthScore: 8, Insights: []string{"a", "b"}}},
		{Engine: "crew", Analysis: contractx.Analysis{HealthScore: 6, Insights: []string{"c"}}},
		{Engine: "direct", Err: "model unavailable"},
	}

	c := Summarize(results)

	if c.Engines != 3 || c.SucceededRuns != 2 {
		t.Fatalf("unexpected counts: %+v", c)
	}
	if c.AverageHealth != 7 {
		t.Fatalf("expected average 7, got %v", c.AverageHealth)
	}
	if c.ScoreVariance != 2 {
		t.Fatalf("expected variance 2, got %v", c.ScoreVariance)
	}
	if c.TotalInsights != 3 {
		t.Fatalf("expected 3 insights, got %d", c.TotalInsights)
	}
	if c.AgreementLevel != 0.8 {
		t.Fatalf("expected agreement 0.8, got %v", c.AgreementLevel)
	}
}

func TestSummarizeAllFailed(t *testing.T) {
	t.Parallel()

	c := Summarize([]Result{{Engine: "graph", Err: "boom"}})
	if c.SucceededRuns != 0 || c.AverageHealth != 0 || c.AgreementLevel != 0 {
		t.Fatalf("expected zeroed consensus, got %+v", c)
	}
}

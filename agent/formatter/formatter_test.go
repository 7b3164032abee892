package formatter

import (
	"encoding/json"
	"strings"
	"testing"

	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

func sampleBundle() *salesforcex.AccountBundle {
	return &salesforcex.AccountBundle{
		Account: salesforcex.Account{
			ID:            "001000000000001AAA",
			Name:          "Globex",
			Industry:      "Manufacturing",
			AnnualRevenue: 2_500_000,
		},
		Contacts: []salesforcex.Contact{
			{Name: "Hank Scorpio", Email: "hank@globex.test"},
		},
		Opportunities: []salesforcex.Opportunity{
			{Name: "Plant expansion", StageName: "Proposal", Amount: 400_000, CloseDate: "2026-10-01"},
			{Name: "Old deal", StageName: "Closed Won", Amount: 150_000, IsClosed: true, IsWon: true},
		},
		Cases: []salesforcex.Case{
			{Subject: "Conveyor jam", Status: "New", Priority: "High"},
			{Subject: "Resolved ticket", Status: "Closed"},
		},
		Tasks: []salesforcex.Task{
			{Subject: "Quarterly review", Status: "Not Started", ActivityDate: "2026-09-05"},
		},
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := Summarize(sampleBundle())

	if s.TotalContacts != 1 {
		t.Fatalf("contacts = %d", s.TotalContacts)
	}
	if s.OpenOpportunities != 1 {
		t.Fatalf("open opps = %d", s.OpenOpportunities)
	}
	if s.TotalOpportunityValue != 400_000 {
		t.Fatalf("pipeline = %v", s.TotalOpportunityValue)
	}
	if s.OpenCases != 1 {
		t.Fatalf("open cases = %d", s.OpenCases)
	}
}

func TestContextJSON(t *testing.T) {
	t.Parallel()

	raw, err := ContextJSON(sampleBundle())
	if err != nil {
		t.Fatalf("ContextJSON() error = %v", err)
	}

	var decoded struct {
		Account struct {
			Name string `json:"Name"`
		} `json:"account"`
		Summary Summary `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if decoded.Account.Name != "Globex" {
		t.Fatalf("account missing from context: %s", decoded.Account.Name)
	}
	if decoded.Summary.OpenOpportunities != 1 {
		t.Fatalf("summary not embedded: %+v", decoded.Summary)
	}
}

func TestContextText(t *testing.T) {
	t.Parallel()

	text := ContextText(sampleBundle())

	for _, want := range []string{
		"Account: Globex",
		"Industry: Manufacturing",
		"Open Opportunities: 1 (pipeline $400000)",
		"Plant expansion",
		"Conveyor jam",
		"Quarterly review",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("context text missing %q:\n%s", want, text)
		}
	}
}

func TestContextTextMissingFields(t *testing.T) {
	t.Parallel()

	bundle := &salesforcex.AccountBundle{
		Account: salesforcex.Account{Name: "Bare Minimum LLC"},
	}

	text := ContextText(bundle)
	if !strings.Contains(text, "Industry: N/A") {
		t.Fatalf("empty industry should render as N/A:\n%s", text)
	}
	if strings.Contains(text, "Opportunities:\n") {
		t.Fatal("empty sections should be omitted")
	}
}

// Package analysis holds the deterministic account heuristics. These run
// before any LLM call so every engine starts from the same numbers.
package analysis

import (
	"fmt"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

const (
	baselineScore = 10.0
	minScore      = 1.0
)

// HealthResult is the heuristic account health assessment.
type HealthResult struct {
	Score    float64
	Insights []string
	Risks    []string
}

// HealthScore scores an account on [1,10] from fixed signals:
//   - no open opportunities: -2
//   - open pipeline below 10% of annual revenue: -1
//   - more than 5 open cases: -2
func HealthScore(bundle *salesforcex.AccountBundle) HealthResult {
	score := baselineScore
	var insights, risks []string

	openOpps := bundle.OpenOpportunities()
	pipeline := bundle.OpenPipelineValue()
	openCases := bundle.OpenCases()

	if openOpps == 0 {
		score -= 2
		risks = append(risks, "No open opportunities - potential churn risk")
	}

	if pipeline < bundle.Account.AnnualRevenue*0.1 {
		score -= 1
		risks = append(risks, "Low pipeline value relative to annual revenue")
	}

	if openCases > 5 {
		score -= 2
		risks = append(risks, fmt.Sprintf("High number of open cases (%d)", openCases))
	}

	if len(bundle.Contacts) > 5 {
		insights = append(insights, "Strong relationship with multiple contacts")
	}

	if score < minScore {
		score = minScore
	}

	return HealthResult{Score: score, Insights: insights, Risks: risks}
}

// Sentiment scores service sentiment from case load: more than 2
// high-priority cases costs 3 points, more than 5 open cases costs 2,
// floored at zero.
func Sentiment(cases []salesforcex.Case) contractx.ServiceSentiment {
	score := 10
	highPriority := 0
	open := 0

	for _, c := range cases {
		if c.Priority == "High" {
			highPriority++
		}
		if c.Status != "Closed" {
			open++
		}
	}

	if highPriority > 2 {
		score -= 3
	}
	if open > 5 {
		score -= 2
	}
	if score < 0 {
		score = 0
	}

	recommendation := "Maintain current service level"
	if score < 7 {
		recommendation = "Address high-priority cases immediately"
	}

	return contractx.ServiceSentiment{
		Score:              score,
		HighPriorityIssues: highPriority,
		OpenCases:          open,
		Recommendation:     recommendation,
	}
}

// Metrics computes the pipeline aggregates used across all engines.
func Metrics(bundle *salesforcex.AccountBundle) contractx.AccountMetrics {
	var wonRevenue, closedAmount float64
	var won, closed int

	for _, o := range bundle.Opportunities {
		if o.IsWon {
			won++
			wonRevenue += o.Amount
		}
		if o.IsClosed {
			closed++
			closedAmount += o.Amount
		}
	}

	winRate := 0.0
	if len(bundle.Opportunities) > 0 {
		winRate = float64(won) / float64(len(bundle.Opportunities))
	}

	avgDealSize := 0.0
	if closed > 0 {
		avgDealSize = closedAmount / float64(closed)
	}

	pipeline := bundle.OpenPipelineValue()
	growth := "Medium"
	if pipeline > bundle.Account.AnnualRevenue*0.2 {
		growth = "High"
	}

	return contractx.AccountMetrics{
		OpenPipelineValue: pipeline,
		WonRevenue:        wonRevenue,
		WinRate:           winRate,
		AverageDealSize:   avgDealSize,
		OpenOpportunities: bundle.OpenOpportunities(),
		OpenCases:         bundle.OpenCases(),
		TotalContacts:     len(bundle.Contacts),
		GrowthPotential:   growth,
	}
}

// Baseline assembles the deterministic part of an Analysis for an engine.
func Baseline(engine contractx.EngineName, bundle *salesforcex.AccountBundle) contractx.Analysis {
	health := HealthScore(bundle)
	return contractx.Analysis{
		Engine:      string(engine),
		HealthScore: health.Score,
		Sentiment:   Sentiment(bundle.Cases),
		Insights:    health.Insights,
		Risks:       health.Risks,
		Metrics:     Metrics(bundle),
	}
}

package contract

import (
	"time"
)

// EngineName identifies one orchestration strategy.
type EngineName string

const (
	EngineGraph     EngineName = "graph"
	EngineCrew      EngineName = "crew"
	EngineGroupChat EngineName = "groupchat"
	EngineDirect    EngineName = "direct"
)

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// AccountMetrics are the deterministic aggregates computed from CRM records.
type AccountMetrics struct {
	OpenPipelineValue float64 `json:"open_pipeline_value"`
	WonRevenue        float64 `json:"won_revenue"`
	WinRate           float64 `json:"win_rate"`
	AverageDealSize   float64 `json:"average_deal_size"`
	OpenOpportunities int     `json:"open_opportunities"`
	OpenCases         int     `json:"open_cases"`
	TotalContacts     int     `json:"total_contacts"`
	GrowthPotential   string  `json:"growth_potential"`
}

// ServiceSentiment is the case-driven service health read.
type ServiceSentiment struct {
	Score              int    `json:"score"`
	HighPriorityIssues int    `json:"high_priority_issues"`
	OpenCases          int    `json:"open_cases"`
	Recommendation     string `json:"recommendation"`
}

// Analysis is one engine's read of an account: a heuristic health score plus
// LLM-provided insights, risks, and candidate next actions.
type Analysis struct {
	Engine      string           `json:"engine"`
	HealthScore float64          `json:"health_score"`
	Sentiment   ServiceSentiment `json:"sentiment"`
	Insights    []string         `json:"insights"`
	Risks       []string         `json:"risks"`
	NextActions []Recommendation `json:"next_best_actions,omitempty"`
	Metrics     AccountMetrics   `json:"metrics"`
	Narrative   string           `json:"narrative,omitempty"`
}

// Recommendation is one proposed Next Best Action. Produced fresh each run,
// never persisted.
type Recommendation struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Rationale   string   `json:"rationale"`
	Impact      string   `json:"impact,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
}

// Action types a plan step may carry. Each maps to one CRM write.
const (
	ActionCreateTask        = "create_task"
	ActionCreateCase        = "create_case"
	ActionCreateOpportunity = "create_opportunity"
	ActionUpdateOpportunity = "update_opportunity"
	ActionSendEmail         = "send_email"
)

type PlanStep struct {
	Action      string `json:"action"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date,omitempty"`
	Owner       string `json:"owner,omitempty"`
}

type ActionPlan struct {
	ID             string         `json:"id"`
	Recommendation Recommendation `json:"recommendation"`
	Steps          []PlanStep     `json:"steps"`
	SuccessMetrics []string       `json:"success_metrics,omitempty"`
	TimelineDays   int            `json:"timeline_days,omitempty"`
}

type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepPending StepStatus = "pending"
	StepError   StepStatus = "error"
)

// StepResult is the outcome of one attempted plan step.
type StepResult struct {
	Step     string     `json:"step"`
	Status   StepStatus `json:"status"`
	RecordID string     `json:"id,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// ExecutionReport summarizes one plan execution. A partially executed plan
// stays partially applied; the report is the only record of what happened.
type ExecutionReport struct {
	ID              string       `json:"id"`
	Timestamp       time.Time    `json:"timestamp"`
	PlanSummary     string       `json:"plan_summary"`
	TotalSteps      int          `json:"total_steps"`
	SuccessfulSteps int          `json:"successful_steps"`
	FailedSteps     int          `json:"failed_steps"`
	PendingSteps    int          `json:"pending_steps"`
	Details         []StepResult `json:"details"`
}

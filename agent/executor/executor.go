// Package executor applies an approved action plan against the CRM, one
// step at a time. Steps never short-circuit: a failed write is recorded and
// the executor moves on, so the report always covers every step.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	metricsx "github.com/warin-t/salesforce-next-best-action/pkg/metrics"
	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

// Target identifies where the plan's records land. ContactEmail is optional;
// email steps without a recipient are left pending.
type Target struct {
	AccountID    string
	ContactEmail string
}

// Executor drives CRM writes for approved plans, throttled so a long plan
// cannot saturate the org's API limits.
type Executor struct {
	runner  contractx.ActionRunner
	limiter *rate.Limiter
	now     func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithRate overrides the write throttle.
func WithRate(limit rate.Limit, burst int) Option {
	return func(e *Executor) {
		e.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithNow overrides the report clock. Used by tests.
func WithNow(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

func New(runner contractx.ActionRunner, opts ...Option) *Executor {
	e := &Executor{
		runner:  runner,
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every step of the plan in order and returns a report of what
// happened. A partially applied plan stays partially applied; the report is
// the only record.
func (e *Executor) Execute(ctx context.Context, plan contractx.ActionPlan, target Target) (contractx.ExecutionReport, error) {
	if target.AccountID == "" {
		return contractx.ExecutionReport{}, fmt.Errorf("%w: account id is required", contractx.ErrValidation)
	}
	if len(plan.Steps) == 0 {
		return contractx.ExecutionReport{}, fmt.Errorf("%w: plan has no steps", contractx.ErrValidation)
	}

	report := contractx.ExecutionReport{
		ID:          uuid.NewString(),
		Timestamp:   e.now().UTC(),
		PlanSummary: plan.Recommendation.Title,
		TotalSteps:  len(plan.Steps),
		Details:     make([]contractx.StepResult, 0, len(plan.Steps)),
	}

	for _, step := range plan.Steps {
		if err := e.limiter.Wait(ctx); err != nil {
			return report, fmt.Errorf("execution interrupted: %w", err)
		}

		result := e.runStep(ctx, step, target)
		metricsx.ActionSteps.WithLabelValues(string(result.Status)).Inc()

		switch result.Status {
		case contractx.StepSuccess:
			report.SuccessfulSteps++
		case contractx.StepPending:
			report.PendingSteps++
		default:
			report.FailedSteps++
			log.Warn().Str("step", step.Title).Str("action", step.Action).
				Str("message", result.Message).Msg("plan step failed")
		}
		report.Details = append(report.Details, result)
	}

	log.Info().Str("report_id", report.ID).
		Int("total", report.TotalSteps).
		Int("succeeded", report.SuccessfulSteps).
		Int("failed", report.FailedSteps).
		Int("pending", report.PendingSteps).
		Msg("plan execution finished")
	return report, nil
}

func (e *Executor) runStep(ctx context.Context, step contractx.PlanStep, target Target) contractx.StepResult {
	result := contractx.StepResult{Step: step.Title}

	switch step.Action {
	case contractx.ActionCreateTask:
		id, err := e.runner.CreateTask(ctx, salesforcex.TaskCreate{
			Subject:     step.Title,
			Description: step.Description,
			DueDate:     step.DueDate,
			WhatID:      target.AccountID,
		})
		return outcome(result, id, err)

	case contractx.ActionCreateCase:
		id, err := e.runner.CreateCase(ctx, salesforcex.CaseCreate{
			Subject:     step.Title,
			Description: step.Description,
			AccountID:   target.AccountID,
		})
		return outcome(result, id, err)

	case contractx.ActionCreateOpportunity:
		id, err := e.runner.CreateOpportunity(ctx, salesforcex.OpportunityCreate{
			Name:      step.Title,
			AccountID: target.AccountID,
			CloseDate: closeDateFor(step, e.now()),
		})
		return outcome(result, id, err)

	case contractx.ActionUpdateOpportunity:
		// which opportunity to touch is a human call, never automated
		result.Status = contractx.StepPending
		result.Message = "opportunity update requires manual selection"
		return result

	case contractx.ActionSendEmail:
		if target.ContactEmail == "" {
			result.Status = contractx.StepPending
			result.Message = "no recipient on file"
			return result
		}
		id, err := e.runner.SendEmail(ctx, salesforcex.EmailCreate{
			ToAddress:      target.ContactEmail,
			Subject:        step.Title,
			TextBody:       step.Description,
			RelatedToID:    target.AccountID,
			SaveAsActivity: true,
		})
		return outcome(result, id, err)

	default:
		result.Status = contractx.StepError
		result.Message = fmt.Sprintf("unknown action type %q", step.Action)
		return result
	}
}

func outcome(result contractx.StepResult, id string, err error) contractx.StepResult {
	if err != nil {
		result.Status = contractx.StepError
		result.Message = err.Error()
		return result
	}
	result.Status = contractx.StepSuccess
	result.RecordID = id
	return result
}

// closeDateFor picks the opportunity close date: the step's due date when
// set, otherwise 90 days out.
func closeDateFor(step contractx.PlanStep, now time.Time) string {
	if step.DueDate != "" {
		return step.DueDate
	}
	return now.AddDate(0, 0, 90).Format("2006-01-02")
}

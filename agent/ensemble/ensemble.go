// Package ensemble runs several engines over the same account concurrently
// and reports where they agree. The consensus is a comparison artifact for
// the dashboard; it never selects an action on its own.
package ensemble

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

// Result is one engine's outcome. Err is set when that engine failed; the
// rest of the ensemble still completes.
type Result struct {
	Engine   contractx.EngineName `json:"engine"`
	Analysis contractx.Analysis   `json:"analysis"`
	Err      string               `json:"error,omitempty"`
}

// Consensus summarizes agreement across the successful engine runs.
type Consensus struct {
	Engines        int     `json:"engines"`
	SucceededRuns  int     `json:"succeeded_runs"`
	AverageHealth  float64 `json:"average_health"`
	ScoreVariance  float64 `json:"score_variance"`
	TotalInsights  int     `json:"total_insights"`
	AgreementLevel float64 `json:"agreement_level"`
}

// Run analyzes the bundle with every engine concurrently, capped at
// maxConcurrent workers. Individual engine failures are recorded per result
// and never abort the group.
func Run(ctx context.Context, engines []contractx.Engine, bundle *salesforcex.AccountBundle) ([]Result, error) {
	if len(engines) == 0 {
		return nil, fmt.Errorf("%w: no engines to run", contractx.ErrValidation)
	}
	if bundle == nil {
		return nil, fmt.Errorf("%w: account bundle is nil", contractx.ErrValidation)
	}

	const maxConcurrent = 3

	results := make([]Result, len(engines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, eng := range engines {
		g.Go(func() error {
			res := Result{Engine: eng.Name()}

			analysis, err := eng.Analyze(gctx, bundle)
			if err != nil {
				log.Warn().Err(err).Str("engine", string(eng.Name())).
					Msg("ensemble engine failed")
				res.Err = err.Error()
			} else {
				res.Analysis = analysis
			}

			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Engine < results[j].Engine })
	return results, nil
}

// Summarize computes the consensus over the successful results. Variance is
// the spread between the highest and lowest health score; agreement maps
// that spread onto [0,1] where 1 means every engine scored identically.
func Summarize(results []Result) Consensus {
	c := Consensus{Engines: len(results)}

	var sum, minScore, maxScore float64
	first := true

	for _, r := range results {
		if r.Err != "" {
			continue
		}
		c.SucceededRuns++
		c.TotalInsights += len(r.Analysis.Insights)

		score := r.Analysis.HealthScore
		sum += score
		if first {
			minScore, maxScore = score, score
			first = false
			continue
		}
		if score < minScore {
			minScore = score
		}
		if score > maxScore {
			maxScore = score
		}
	}

	if c.SucceededRuns == 0 {
		return c
	}

	c.AverageHealth = sum / float64(c.SucceededRuns)
	c.ScoreVariance = maxScore - minScore

	agreement := 1 - c.ScoreVariance/10
	if agreement < 0 {
		agreement = 0
	}
	c.AgreementLevel = agreement
	return c
}

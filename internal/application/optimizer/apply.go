package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/leadctl/optimizer/pkg/models"
)

// systemAgentID is the baseline/collaborator key used for recommendations
// that name no single agent (timing_adjustment, synthesized from a
// portfolio-wide trend rather than one agent's metrics).
const systemAgentID = "system"

func targetAgent(rec *models.OptimizationRecommendation) string {
	if rec.AgentID == "" {
		return systemAgentID
	}
	return rec.AgentID
}

// apply implements §4.7.2: dispatch the recommendation's mutation to its
// collaborator, snapshot the pre-mutation baseline, and record the
// OptimizationResult as active (pending validation).
func (l *Loop) apply(ctx context.Context, rec *models.OptimizationRecommendation, now time.Time) error {
	if err := l.mutate(ctx, rec); err != nil {
		return fmt.Errorf("apply %s: %w", rec.Type, err)
	}

	agentID := targetAgent(rec)
	period := models.Period{Start: now.Add(-24 * time.Hour), End: now}
	if err := l.analytics.SetBaseline(ctx, agentID, rec.ID, period); err != nil {
		return fmt.Errorf("apply %s: snapshot baseline: %w", rec.Type, err)
	}
	baseline, err := l.store.GetBaseline(ctx, agentID, rec.ID)
	if err != nil {
		return fmt.Errorf("apply %s: load baseline: %w", rec.Type, err)
	}

	if err := l.store.CreateRecommendation(ctx, rec); err != nil {
		return fmt.Errorf("apply %s: persist recommendation: %w", rec.Type, err)
	}

	result := &models.OptimizationResult{
		RecommendationID: rec.ID,
		ImplementedAt:    now,
		BaselineMetrics:  *baseline,
	}
	if err := l.store.CreateResult(ctx, result); err != nil {
		return fmt.Errorf("apply %s: persist result: %w", rec.Type, err)
	}

	return nil
}

// mutate dispatches rec to the collaborator named by its type, retried per
// §7's ExternalUnavailable/Timeout policy.
func (l *Loop) mutate(ctx context.Context, rec *models.OptimizationRecommendation) error {
	agentID := targetAgent(rec)
	partial := rec.Implementation.Parameters

	return l.retry.Execute(ctx, func() error {
		switch rec.Type {
		case models.RecRoutingRule:
			if l.routing == nil {
				return nil
			}
			return l.routing.UpdateConfig(ctx, agentID, partial)
		case models.RecScriptUpdate:
			if l.scripts == nil {
				return nil
			}
			return l.scripts.UpdateScript(ctx, agentID, partial)
		case models.RecTimingAdjustment:
			if l.timing == nil {
				return nil
			}
			return l.timing.UpdateTiming(ctx, agentID, partial)
		default:
			return fmt.Errorf("unknown recommendation type: %s", rec.Type)
		}
	})
}

// rollback executes rec's inverse mutation (§4.7.4): the same collaborator
// method, called with the recorded rollback plan instead of the original
// parameters.
func (l *Loop) rollback(ctx context.Context, rec *models.OptimizationRecommendation) error {
	agentID := targetAgent(rec)
	plan := rec.Implementation.RollbackPlan

	return l.retry.Execute(ctx, func() error {
		switch rec.Type {
		case models.RecRoutingRule:
			if l.routing == nil {
				return nil
			}
			return l.routing.UpdateConfig(ctx, agentID, plan)
		case models.RecScriptUpdate:
			if l.scripts == nil {
				return nil
			}
			return l.scripts.UpdateScript(ctx, agentID, plan)
		case models.RecTimingAdjustment:
			if l.timing == nil {
				return nil
			}
			return l.timing.UpdateTiming(ctx, agentID, plan)
		default:
			return fmt.Errorf("unknown recommendation type: %s", rec.Type)
		}
	})
}

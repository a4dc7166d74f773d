package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/leadctl/optimizer/pkg/models"
)

// validatePending implements §4.7.3: for each OptimizationResult still
// pending whose testing window has elapsed, compare current metrics
// against the recorded baseline and either validate, roll back, or leave it
// active for another cycle.
func (l *Loop) validatePending(ctx context.Context, now time.Time) error {
	pending, err := l.store.FindPendingResults(ctx)
	if err != nil {
		return fmt.Errorf("validate pending: %w", err)
	}

	for _, result := range pending {
		rec, err := l.store.FindRecommendation(ctx, result.RecommendationID)
		if err != nil {
			l.logger.WarnContext(ctx, "validate pending: recommendation lookup failed", "recommendation_id", result.RecommendationID, "error", err)
			continue
		}

		testingDays := rec.Implementation.TestingDays
		if testingDays <= 0 {
			testingDays = l.testingDaysDefault
		}
		dueAt := result.ImplementedAt.AddDate(0, 0, testingDays)
		if now.Before(dueAt) {
			continue
		}

		if err := l.validateOne(ctx, rec, result, now); err != nil {
			l.logger.WarnContext(ctx, "validate pending: evaluation failed", "recommendation_id", result.RecommendationID, "error", err)
		}
	}

	return nil
}

func (l *Loop) validateOne(ctx context.Context, rec *models.OptimizationRecommendation, result *models.OptimizationResult, now time.Time) error {
	agentID := targetAgent(rec)
	period := models.Period{Start: result.ImplementedAt, End: now}

	report, err := l.analytics.MeasureImpact(ctx, agentID, rec.ID, period)
	if err != nil {
		return fmt.Errorf("measure impact: %w", err)
	}

	result.CurrentMetrics = &report.Current
	result.Improvement = &models.Improvement{
		ConversionRate: report.ConversionImpPct,
		ResponseTime:   report.ResponseImpPct,
		Satisfaction:   report.SatisfactionImpPct,
		Overall:        report.Overall,
	}

	switch {
	case report.Overall > 5:
		if err := result.MarkValidated(now); err != nil {
			return err
		}
	case report.Overall < -5:
		if err := result.MarkRollbackRequired(); err != nil {
			return err
		}
		if err := l.rollback(ctx, rec); err != nil {
			// §4.7.4: rollback failure is logged only; no event is
			// published for it, so the Error Monitor does not see it. The
			// result stays rollback_required and is quarantined, and the
			// recommendation is never retried.
			l.logger.ErrorContext(ctx, "rollback failed, quarantining recommendation", "recommendation_id", rec.ID, "error", err)
			result.Quarantined = true
		}
	default:
		// Neither validated nor failed enough to roll back: leave active
		// for another cycle, persisting the latest measurement for
		// visibility.
		return l.store.UpdateResult(ctx, result)
	}

	return l.store.UpdateResult(ctx, result)
}

// Package optimizer implements the Optimization Loop (spec §4.7): the
// central controller that turns Analytics Engine feedback into routing,
// script, and timing mutations, applies them in priority order, and later
// validates or rolls them back. Grounded on the teacher's
// ExecutionManager.Execute (numbered-phase cycle, continue-on-error between
// phases, apply-then-persist-then-notify shape).
package optimizer

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/leadctl/optimizer/pkg/models"
)

// feedback is the per-cycle input gathered from the Analytics Engine
// (§4.7 step 1). Any field may be zero-valued when its sub-collection
// failed — synthesis degrades gracefully rather than erroring.
type feedback struct {
	metricsByAgent map[string]models.Metrics
	scripts        []models.ScriptOptimization
	trends         []models.PerformanceTrend
}

// synthesizeRecommendations implements §4.7.1's threshold rules exactly,
// then sorts by priority descending, expected impact descending, insertion
// order ascending (§8 S6).
func synthesizeRecommendations(fb feedback, now time.Time, testingDays int) []*models.OptimizationRecommendation {
	var recs []*models.OptimizationRecommendation

	agentIDs := make([]string, 0, len(fb.metricsByAgent))
	for agentID := range fb.metricsByAgent {
		agentIDs = append(agentIDs, agentID)
	}
	sort.Strings(agentIDs)

	for _, agentID := range agentIDs {
		m := fb.metricsByAgent[agentID]

		if m.ConversionRate < 0.60 {
			recs = append(recs, newRecommendation(agentID, models.RecRoutingRule, models.PriorityHigh, 15,
				"Lower urgency threshold for high-priority routing", testingDays, now))
		}
		if m.AvgResponseMs > 60000 {
			recs = append(recs, newRecommendation(agentID, models.RecRoutingRule, models.PriorityHigh, 20,
				"Prioritize fast-responding agents", testingDays, now))
		}
		if m.CSAT < 4.0 {
			recs = append(recs, newRecommendation(agentID, models.RecScriptUpdate, models.PriorityMedium, 0,
				"Review qualification phrasing", testingDays, now))
		}
		if m.AppointmentBookingRate < 0.30 {
			recs = append(recs, newRecommendation(agentID, models.RecRoutingRule, models.PriorityMedium, 0,
				"Enhance closing templates", testingDays, now))
		}
	}

	for _, s := range fb.scripts {
		switch {
		case s.EstimatedConversionImp >= 20:
			recs = append(recs, newScriptRecommendation(s, models.PriorityHigh, testingDays, now))
		case s.EstimatedConversionImp >= 10:
			recs = append(recs, newScriptRecommendation(s, models.PriorityMedium, testingDays, now))
		}
		// < 10% is discarded.
	}

	for _, t := range fb.trends {
		if t.Trend == models.TrendDecreasing && (t.Significance == models.SignificanceMedium || t.Significance == models.SignificanceHigh) {
			decline := -t.ChangePercent
			recs = append(recs, newRecommendation("", models.RecTimingAdjustment, models.PriorityMedium, decline,
				fmt.Sprintf("timing adjustment: %s declining %.1f%%", t.Metric, decline), testingDays, now))
		}
	}

	for i, r := range recs {
		r.SetInsertionOrder(i)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		pi, pj := models.PriorityRank(recs[i].Priority), models.PriorityRank(recs[j].Priority)
		if pi != pj {
			return pi > pj
		}
		if recs[i].ExpectedImpactPct != recs[j].ExpectedImpactPct {
			return recs[i].ExpectedImpactPct > recs[j].ExpectedImpactPct
		}
		return recs[i].InsertionOrder() < recs[j].InsertionOrder()
	})

	return recs
}

func newRecommendation(agentID string, kind models.RecommendationType, priority models.Priority, expectedImpactPct float64, description string, testingDays int, now time.Time) *models.OptimizationRecommendation {
	return &models.OptimizationRecommendation{
		ID:                uuid.NewString(),
		AgentID:           agentID,
		Type:              kind,
		Priority:          priority,
		ExpectedImpactPct: expectedImpactPct,
		Description:       description,
		Implementation: models.Implementation{
			Action:      string(kind),
			Parameters:  map[string]any{"description": description},
			TestingDays: testingDays,
		},
		ValidationCriteria: models.ValidationCriteria{
			TestDays: testingDays,
		},
		CreatedAt: now,
	}
}

func newScriptRecommendation(s models.ScriptOptimization, priority models.Priority, testingDays int, now time.Time) *models.OptimizationRecommendation {
	rec := newRecommendation("", models.RecScriptUpdate, priority, s.EstimatedConversionImp,
		"script update for "+s.ScriptID, testingDays, now)
	rec.Implementation.Parameters = map[string]any{"script_id": s.ScriptID}
	return rec
}


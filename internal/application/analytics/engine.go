// Package analytics implements the Analytics Engine (spec §4.5): it turns
// raw Interaction history into the Metrics tuple, per-script optimizations,
// trend series, and the intelligence report the Optimization Loop consumes
// each cycle. It never mutates routing policy or scripts itself — it only
// measures and recommends.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/leadctl/optimizer/internal/domain/collaborator"
	"github.com/leadctl/optimizer/internal/domain/repository"
	"github.com/leadctl/optimizer/internal/platform/clock"
	"github.com/leadctl/optimizer/pkg/models"
)

// Engine is the Analytics Engine. It keeps a small rebuildable in-memory
// index of the latest PerformanceSnapshot per agent (§9: "bounded
// rebuildable indexes instead of permanent caches") so that
// AnalyzeScriptPerformance and GenerateIntelligenceReport — which read
// across every known agent rather than one at a time — don't need a
// list-all-agents query the Store contract doesn't expose.
type Engine struct {
	store   repository.Store
	scripts collaborator.ScriptAnalyzer
	clk     clock.Clock
	metrics *prometheusMetrics

	mu     sync.Mutex
	latest map[string]*models.PerformanceSnapshot
}

// New constructs an Engine. scripts may be nil — script-performance
// analysis then degrades to "no script telemetry available" rather than
// erroring, since the collaborator is optional infrastructure (spec §1).
func New(store repository.Store, scripts collaborator.ScriptAnalyzer, clk clock.Clock) *Engine {
	return &Engine{
		store:   store,
		scripts: scripts,
		clk:     clk,
		metrics: newPrometheusMetrics(),
		latest:  make(map[string]*models.PerformanceSnapshot),
	}
}

// CollectPerformance aggregates every Interaction in period for agentID into
// a PerformanceSnapshot per §4.5.1, persists it, and updates the exported
// Prometheus gauges and the in-memory latest-snapshot index.
func (e *Engine) CollectPerformance(ctx context.Context, agentID string, period models.Period) (*models.PerformanceSnapshot, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	interactions, err := e.store.QueryInteractions(ctx, repository.InteractionFilter{
		AgentID: &agentID,
		Period:  &period,
	})
	if err != nil {
		return nil, fmt.Errorf("collect performance: %w", err)
	}

	snapshot := &models.PerformanceSnapshot{
		AgentID: agentID,
		Period:  period,
		Metrics: computeMetrics(interactions),
	}
	snapshot.ScriptMetrics = e.collectScriptMetrics(ctx, agentID)
	snapshot.Suggestions = suggestionsFor(snapshot.Metrics)

	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	if err := e.store.UpsertPerformance(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("collect performance: %w", err)
	}

	e.mu.Lock()
	e.latest[agentID] = snapshot
	e.mu.Unlock()

	e.metrics.observe(agentID, snapshot.Metrics)

	return snapshot, nil
}

// Registry exposes the Engine's private Prometheus registry so main can
// merge it into the process's /metrics endpoint.
func (e *Engine) Registry() *prometheus.Registry {
	return e.metrics.registry
}

// CurrentMetrics returns the most recently collected Metrics per agent, for
// the Optimization Loop's feedback-collection phase (§4.7 step 1). It reads
// the same rebuildable index AnalyzeScriptPerformance uses rather than
// issuing a live query, since there is no list-all-agents Store query.
func (e *Engine) CurrentMetrics() map[string]models.Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]models.Metrics, len(e.latest))
	for agentID, snapshot := range e.latest {
		out[agentID] = snapshot.Metrics
	}
	return out
}

func (e *Engine) collectScriptMetrics(ctx context.Context, agentID string) []models.ScriptMetric {
	if e.scripts == nil {
		return nil
	}
	reports, err := e.scripts.ReportScriptMetrics(ctx, agentID)
	if err != nil {
		return nil
	}
	out := make([]models.ScriptMetric, 0, len(reports))
	for _, r := range reports {
		out = append(out, models.ScriptMetric{
			ScriptID:       r.ScriptID,
			ConversionRate: r.ConversionRate,
			SampleSize:     r.SampleSize,
		})
	}
	return out
}

// computeMetrics implements §4.5.1 exactly: every ratio is 0 when its
// denominator is 0, not NaN or an error.
func computeMetrics(interactions []*models.Interaction) models.Metrics {
	total := len(interactions)
	if total == 0 {
		return models.Metrics{}
	}

	successful := 0
	booked := 0
	var durationSum float64
	durationCount := 0
	var sentimentSum float64
	sentimentCount := 0

	for _, i := range interactions {
		if i.Outcome.Status == models.OutcomeSuccessful {
			successful++
		}
		if i.Outcome.AppointmentBooked {
			booked++
		}
		if i.DurationS != nil {
			durationSum += float64(*i.DurationS) * 1000
			durationCount++
		}
		if i.Sentiment != nil {
			sentimentSum += i.Sentiment.Score
			sentimentCount++
		}
	}

	m := models.Metrics{
		TotalInteractions:      total,
		ConversionRate:         float64(successful) / float64(total),
		AppointmentBookingRate: float64(booked) / float64(total),
	}
	if durationCount > 0 {
		m.AvgResponseMs = durationSum / float64(durationCount)
	}
	if sentimentCount > 0 {
		avgSentiment := sentimentSum / float64(sentimentCount)
		m.CSAT = (avgSentiment + 1) * 2.5
	}
	return m
}

// suggestionsFor synthesizes plain-language hints attached to a snapshot;
// not part of any recommendation machinery, just operator-facing color.
func suggestionsFor(m models.Metrics) []string {
	var out []string
	if m.TotalInteractions == 0 {
		return out
	}
	if m.ConversionRate < 0.3 {
		out = append(out, "conversion rate is low relative to interaction volume")
	}
	if m.AvgResponseMs > 60000 {
		out = append(out, "average response time exceeds one minute")
	}
	if m.CSAT > 0 && m.CSAT < 3.5 {
		out = append(out, "satisfaction score trending below target")
	}
	return out
}

// SetBaseline snapshots agentID's current metrics over period and stores
// them as the reference point measure_impact compares against for
// optimizationID (§4.5.2).
func (e *Engine) SetBaseline(ctx context.Context, agentID, optimizationID string, period models.Period) error {
	snapshot, err := e.CollectPerformance(ctx, agentID, period)
	if err != nil {
		return err
	}
	return e.store.SetBaseline(ctx, agentID, optimizationID, snapshot.Metrics)
}

// MeasureImpact implements §4.5.2: compares the stored baseline against a
// freshly collected snapshot over period, and — if validated — atomically
// rotates the baseline to the new current metrics so a repeat call reports
// no further improvement (spec §8 S4).
func (e *Engine) MeasureImpact(ctx context.Context, agentID, optimizationID string, period models.Period) (*models.ImpactReport, error) {
	baseline, err := e.store.GetBaseline(ctx, agentID, optimizationID)
	if err != nil {
		return nil, err
	}

	snapshot, err := e.CollectPerformance(ctx, agentID, period)
	if err != nil {
		return nil, err
	}
	current := snapshot.Metrics

	convImp := pctChange(baseline.ConversionRate, current.ConversionRate)
	respImp := -pctChange(baseline.AvgResponseMs, current.AvgResponseMs) // inverted: lower is better
	satImp := pctChange(baseline.CSAT, current.CSAT)
	overall := 0.4*convImp + 0.3*respImp + 0.3*satImp
	validated := overall > 5

	report := &models.ImpactReport{
		AgentID:            agentID,
		OptimizationID:     optimizationID,
		Baseline:           *baseline,
		Current:            current,
		ConversionImpPct:   convImp,
		ResponseImpPct:     respImp,
		SatisfactionImpPct: satImp,
		Overall:            overall,
		Validated:          validated,
		MeasuredAt:         e.clk.Now(),
	}

	if validated {
		if err := e.store.SetBaseline(ctx, agentID, optimizationID, current); err != nil {
			return nil, fmt.Errorf("measure impact: rotate baseline: %w", err)
		}
	}

	return report, nil
}

// pctChange is the signed percentage change from base to cur, per §4.5.2.
// A zero base reports 0 rather than dividing by zero — there is no
// reference point yet to call an improvement against.
func pctChange(base, cur float64) float64 {
	if base == 0 {
		return 0
	}
	return (cur - base) / base * 100
}

// AnalyzeScriptPerformance implements §4.5: per script, current metrics
// plus a recommendation set, sorted by estimated conversion-rate
// improvement descending. It aggregates across every agent's latest
// collected snapshot rather than querying live, since ScriptMetrics is
// telemetry reported by the ScriptAnalyzer collaborator at collection time.
func (e *Engine) AnalyzeScriptPerformance(ctx context.Context) ([]models.ScriptOptimization, error) {
	e.mu.Lock()
	snapshots := make([]*models.PerformanceSnapshot, 0, len(e.latest))
	for _, s := range e.latest {
		snapshots = append(snapshots, s)
	}
	e.mu.Unlock()

	type acc struct {
		weightedRate float64
		samples      int
	}
	byScript := make(map[string]*acc)
	for _, s := range snapshots {
		for _, sm := range s.ScriptMetrics {
			a, ok := byScript[sm.ScriptID]
			if !ok {
				a = &acc{}
				byScript[sm.ScriptID] = a
			}
			a.weightedRate += sm.ConversionRate * float64(sm.SampleSize)
			a.samples += sm.SampleSize
		}
	}

	const targetConversionRate = 0.5

	out := make([]models.ScriptOptimization, 0, len(byScript))
	for scriptID, a := range byScript {
		rate := 0.0
		if a.samples > 0 {
			rate = a.weightedRate / float64(a.samples)
		}
		improvement := (targetConversionRate - rate) * 100
		if improvement < 0 {
			improvement = 0
		}
		if improvement > 100 {
			improvement = 100
		}
		out = append(out, models.ScriptOptimization{
			ScriptID:               scriptID,
			CurrentMetrics:         models.Metrics{ConversionRate: rate, TotalInteractions: a.samples},
			EstimatedConversionImp: improvement,
			Recommendations:        scriptRecommendations(rate),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].EstimatedConversionImp > out[j].EstimatedConversionImp
	})

	return out, nil
}

func scriptRecommendations(rate float64) []string {
	switch {
	case rate < 0.2:
		return []string{
			"restate the value proposition within the opening line",
			"shorten the qualification section to reduce early drop-off",
		}
	case rate < 0.4:
		return []string{
			"tighten objection-handling phrasing",
			"add a clearer call-to-action before the close",
		}
	default:
		return []string{"test a shorter close to capture marginal conversions"}
	}
}

// AnalyzeTrend implements §4.5: it buckets period into a fixed number of
// equal sub-periods, computes metric for each bucket across every agent,
// and classifies the overall movement from first to last data point.
func (e *Engine) AnalyzeTrend(ctx context.Context, metric string, period models.Period) (*models.PerformanceTrend, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	const buckets = 6
	span := period.End.Sub(period.Start)
	step := span / buckets

	points := make([]models.DataPoint, 0, buckets)
	for i := 0; i < buckets; i++ {
		bucketStart := period.Start.Add(step * time.Duration(i))
		bucketEnd := bucketStart.Add(step)
		if i == buckets-1 {
			bucketEnd = period.End
		}

		interactions, err := e.store.QueryInteractions(ctx, repository.InteractionFilter{
			Period: &models.Period{Start: bucketStart, End: bucketEnd},
		})
		if err != nil {
			return nil, fmt.Errorf("analyze trend: %w", err)
		}

		value, err := metricValue(computeMetrics(interactions), metric)
		if err != nil {
			return nil, err
		}
		points = append(points, models.DataPoint{Timestamp: bucketEnd, Value: value})
	}

	first := points[0].Value
	last := points[len(points)-1].Value
	changePercent := pctChange(first, last)
	if first == 0 && last != 0 {
		changePercent = 100
	}

	trend := models.TrendStable
	abs := changePercent
	if abs < 0 {
		abs = -abs
	}
	if abs >= 2 {
		if changePercent > 0 {
			trend = models.TrendIncreasing
		} else {
			trend = models.TrendDecreasing
		}
	}

	significance := models.SignificanceLow
	switch {
	case abs >= 15:
		significance = models.SignificanceHigh
	case abs >= 5:
		significance = models.SignificanceMedium
	}

	return &models.PerformanceTrend{
		Metric:        metric,
		DataPoints:    points,
		Trend:         trend,
		ChangePercent: changePercent,
		Significance:  significance,
	}, nil
}

func metricValue(m models.Metrics, name string) (float64, error) {
	switch name {
	case "conversion_rate":
		return m.ConversionRate, nil
	case "avg_response_ms":
		return m.AvgResponseMs, nil
	case "appointment_booking_rate":
		return m.AppointmentBookingRate, nil
	case "csat":
		return m.CSAT, nil
	case "total_interactions":
		return float64(m.TotalInteractions), nil
	default:
		return 0, &models.ValidationErr{Field: "metric", Message: "unknown metric name: " + name}
	}
}

// GenerateIntelligenceReport implements §4.5: it always returns exactly one
// insight of each of the four types, every one actionable with at least one
// recommendation and non-empty data, timestamped with the freshness
// invariant (generated_at within the last hour, trivially true here since
// each insight is stamped with e.clk.Now()).
func (e *Engine) GenerateIntelligenceReport(ctx context.Context) ([]models.Insight, error) {
	now := e.clk.Now()

	insights := []models.Insight{
		e.performanceInsight(now),
		e.scriptInsight(ctx, now),
		e.trendInsight(ctx, now),
		e.optimizationInsight(ctx, now),
	}
	return insights, nil
}

func (e *Engine) performanceInsight(now time.Time) models.Insight {
	e.mu.Lock()
	defer e.mu.Unlock()

	data := map[string]any{"agents_tracked": len(e.latest)}
	recommendations := []string{"begin collecting performance snapshots for active agents"}

	var worstAgent string
	worstRate := 1.1
	for agentID, s := range e.latest {
		if s.Metrics.ConversionRate < worstRate {
			worstRate = s.Metrics.ConversionRate
			worstAgent = agentID
		}
	}
	if worstAgent != "" {
		data["lowest_conversion_agent"] = worstAgent
		data["lowest_conversion_rate"] = worstRate
		recommendations = []string{
			fmt.Sprintf("review agent %s: conversion rate %.0f%% trails the portfolio", worstAgent, worstRate*100),
		}
	}

	return models.Insight{
		ID:              uuid.NewString(),
		Type:            models.InsightPerformance,
		Actionable:      true,
		Recommendations: recommendations,
		Data:            data,
		GeneratedAt:     now,
	}
}

func (e *Engine) scriptInsight(ctx context.Context, now time.Time) models.Insight {
	optimizations, err := e.AnalyzeScriptPerformance(ctx)
	data := map[string]any{"scripts_analyzed": len(optimizations)}
	recommendations := []string{"no script telemetry available yet"}

	if err == nil && len(optimizations) > 0 {
		top := optimizations[0]
		data["top_script_id"] = top.ScriptID
		data["estimated_conversion_improvement_pct"] = top.EstimatedConversionImp
		recommendations = top.Recommendations
	}

	return models.Insight{
		ID:              uuid.NewString(),
		Type:            models.InsightScript,
		Actionable:      true,
		Recommendations: recommendations,
		Data:            data,
		GeneratedAt:     now,
	}
}

func (e *Engine) trendInsight(ctx context.Context, now time.Time) models.Insight {
	period := models.Period{Start: now.Add(-30 * 24 * time.Hour), End: now}
	trend, err := e.AnalyzeTrend(ctx, "conversion_rate", period)

	data := map[string]any{"window_days": 30}
	recommendations := []string{"insufficient interaction history to establish a trend"}

	if err == nil {
		data["metric"] = trend.Metric
		data["direction"] = string(trend.Trend)
		data["change_percent"] = trend.ChangePercent
		data["significance"] = string(trend.Significance)
		if trend.Trend == models.TrendDecreasing {
			recommendations = []string{
				fmt.Sprintf("conversion rate declined %.1f%% over the trailing 30 days", -trend.ChangePercent),
			}
		} else {
			recommendations = []string{"conversion rate is stable or improving over the trailing 30 days"}
		}
	}

	return models.Insight{
		ID:              uuid.NewString(),
		Type:            models.InsightTrend,
		Actionable:      true,
		Recommendations: recommendations,
		Data:            data,
		GeneratedAt:     now,
	}
}

func (e *Engine) optimizationInsight(ctx context.Context, now time.Time) models.Insight {
	pending, err := e.store.FindPendingResults(ctx)
	data := map[string]any{"active_optimizations": len(pending)}
	recommendations := []string{"no optimizations currently active"}

	if err == nil && len(pending) > 0 {
		recommendations = []string{
			fmt.Sprintf("%d optimization(s) awaiting validation", len(pending)),
		}
	}

	return models.Insight{
		ID:              uuid.NewString(),
		Type:            models.InsightOptimization,
		Actionable:      true,
		Recommendations: recommendations,
		Data:            data,
		GeneratedAt:     now,
	}
}

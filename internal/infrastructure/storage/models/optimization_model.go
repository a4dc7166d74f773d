package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/leadctl/optimizer/pkg/models"
)

// RecommendationModel is the bun-mapped row for an OptimizationRecommendation (§4.7.1).
type RecommendationModel struct {
	bun.BaseModel `bun:"table:optimization_recommendations,alias:rec"`

	ID                string    `bun:"id,pk,type:uuid"`
	AgentID           string    `bun:"agent_id,notnull"`
	Type              string    `bun:"type,notnull"`
	Priority          string    `bun:"priority,notnull"`
	ExpectedImpactPct float64   `bun:"expected_impact_pct,notnull"`
	Description       string    `bun:"description"`
	Implementation    JSONBMap  `bun:"implementation,type:jsonb"`
	ValidationCriteria JSONBMap `bun:"validation_criteria,type:jsonb"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ToDomain maps the row to a domain OptimizationRecommendation.
func (m *RecommendationModel) ToDomain() *models.OptimizationRecommendation {
	metrics, _ := m.ValidationCriteria.Get("metrics")
	var metricNames []string
	if raw, ok := metrics.([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				metricNames = append(metricNames, s)
			}
		}
	}
	return &models.OptimizationRecommendation{
		ID:                m.ID,
		AgentID:           m.AgentID,
		Type:              models.RecommendationType(m.Type),
		Priority:          models.Priority(m.Priority),
		ExpectedImpactPct: m.ExpectedImpactPct,
		Description:       m.Description,
		Implementation: models.Implementation{
			Action:       m.Implementation.GetString("action"),
			Parameters:   map[string]any(m.Implementation.GetMap("parameters")),
			RollbackPlan: map[string]any(m.Implementation.GetMap("rollback_plan")),
			TestingDays:  m.Implementation.GetInt("testing_days"),
		},
		ValidationCriteria: models.ValidationCriteria{
			Metrics:               metricNames,
			MinImprovementPct:     m.ValidationCriteria.GetFloat("min_improvement_pct"),
			TestDays:              m.ValidationCriteria.GetInt("test_days"),
			SignificanceThreshold: m.ValidationCriteria.GetFloat("significance_threshold"),
		},
		CreatedAt: m.CreatedAt,
	}
}

// RecommendationModelFromDomain maps a domain OptimizationRecommendation to its row.
func RecommendationModelFromDomain(r *models.OptimizationRecommendation) *RecommendationModel {
	metricNames := make([]any, 0, len(r.ValidationCriteria.Metrics))
	for _, name := range r.ValidationCriteria.Metrics {
		metricNames = append(metricNames, name)
	}
	return &RecommendationModel{
		ID:                r.ID,
		AgentID:           r.AgentID,
		Type:              string(r.Type),
		Priority:          string(r.Priority),
		ExpectedImpactPct: r.ExpectedImpactPct,
		Description:       r.Description,
		Implementation: JSONBMap{
			"action":        r.Implementation.Action,
			"parameters":    map[string]any(r.Implementation.Parameters),
			"rollback_plan": map[string]any(r.Implementation.RollbackPlan),
			"testing_days":  r.Implementation.TestingDays,
		},
		ValidationCriteria: JSONBMap{
			"metrics":                 metricNames,
			"min_improvement_pct":     r.ValidationCriteria.MinImprovementPct,
			"test_days":               r.ValidationCriteria.TestDays,
			"significance_threshold":  r.ValidationCriteria.SignificanceThreshold,
		},
		CreatedAt: r.CreatedAt,
	}
}

// ResultModel is the bun-mapped row for an OptimizationResult (§4.7.3).
type ResultModel struct {
	bun.BaseModel `bun:"table:optimization_results,alias:res"`

	RecommendationID string     `bun:"recommendation_id,pk"`
	ImplementedAt    time.Time  `bun:"implemented_at,notnull"`
	BaselineMetrics  JSONBMap   `bun:"baseline_metrics,type:jsonb"`
	CurrentMetrics   JSONBMap   `bun:"current_metrics,type:jsonb"`
	Improvement      JSONBMap   `bun:"improvement,type:jsonb"`
	Validated        bool       `bun:"validated,notnull"`
	ValidatedAt      *time.Time `bun:"validated_at"`
	RollbackRequired bool       `bun:"rollback_required,notnull"`
	Quarantined      bool       `bun:"quarantined,notnull"`
}

func metricsToJSONB(m models.Metrics) JSONBMap {
	return JSONBMap{
		"total_interactions":       float64(m.TotalInteractions),
		"conversion_rate":          m.ConversionRate,
		"avg_response_ms":          m.AvgResponseMs,
		"appointment_booking_rate": m.AppointmentBookingRate,
		"csat":                     m.CSAT,
	}
}

func metricsFromJSONB(j JSONBMap) models.Metrics {
	return models.Metrics{
		TotalInteractions:      j.GetInt("total_interactions"),
		ConversionRate:         j.GetFloat("conversion_rate"),
		AvgResponseMs:          j.GetFloat("avg_response_ms"),
		AppointmentBookingRate: j.GetFloat("appointment_booking_rate"),
		CSAT:                   j.GetFloat("csat"),
	}
}

// ToDomain maps the row to a domain OptimizationResult.
func (m *ResultModel) ToDomain() *models.OptimizationResult {
	r := &models.OptimizationResult{
		RecommendationID: m.RecommendationID,
		ImplementedAt:    m.ImplementedAt,
		BaselineMetrics:  metricsFromJSONB(m.BaselineMetrics),
		Validated:        m.Validated,
		ValidatedAt:      m.ValidatedAt,
		RollbackRequired: m.RollbackRequired,
		Quarantined:      m.Quarantined,
	}
	if len(m.CurrentMetrics) > 0 {
		cm := metricsFromJSONB(m.CurrentMetrics)
		r.CurrentMetrics = &cm
	}
	if len(m.Improvement) > 0 {
		r.Improvement = &models.Improvement{
			ConversionRate: m.Improvement.GetFloat("conversion_rate"),
			ResponseTime:   m.Improvement.GetFloat("response_time"),
			Satisfaction:   m.Improvement.GetFloat("satisfaction"),
			Overall:        m.Improvement.GetFloat("overall"),
		}
	}
	return r
}

// ResultModelFromDomain maps a domain OptimizationResult to its row.
func ResultModelFromDomain(r *models.OptimizationResult) *ResultModel {
	m := &ResultModel{
		RecommendationID: r.RecommendationID,
		ImplementedAt:    r.ImplementedAt,
		BaselineMetrics:  metricsToJSONB(r.BaselineMetrics),
		Validated:        r.Validated,
		ValidatedAt:      r.ValidatedAt,
		RollbackRequired: r.RollbackRequired,
		Quarantined:      r.Quarantined,
	}
	if r.CurrentMetrics != nil {
		m.CurrentMetrics = metricsToJSONB(*r.CurrentMetrics)
	}
	if r.Improvement != nil {
		m.Improvement = JSONBMap{
			"conversion_rate": r.Improvement.ConversionRate,
			"response_time":   r.Improvement.ResponseTime,
			"satisfaction":    r.Improvement.Satisfaction,
			"overall":         r.Improvement.Overall,
		}
	}
	return m
}

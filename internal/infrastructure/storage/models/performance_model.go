package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/leadctl/optimizer/pkg/models"
)

// PerformanceModel is the bun-mapped row for a PerformanceSnapshot (§3).
type PerformanceModel struct {
	bun.BaseModel `bun:"table:performance_snapshots,alias:p"`

	ID          string    `bun:"id,pk,type:uuid"`
	AgentID     string    `bun:"agent_id,notnull"`
	PeriodStart time.Time `bun:"period_start,notnull"`
	PeriodEnd   time.Time `bun:"period_end,notnull"`

	TotalInteractions      int     `bun:"total_interactions,notnull"`
	ConversionRate         float64 `bun:"conversion_rate,notnull"`
	AvgResponseMs          float64 `bun:"avg_response_ms,notnull"`
	AppointmentBookingRate float64 `bun:"appointment_booking_rate,notnull"`
	CSAT                   float64 `bun:"csat,notnull"`

	ScriptMetrics JSONBMap    `bun:"script_metrics,type:jsonb"`
	Suggestions   StringArray `bun:"suggestions,type:text[]"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ToDomain maps the row to a domain PerformanceSnapshot.
func (m *PerformanceModel) ToDomain() *models.PerformanceSnapshot {
	snap := &models.PerformanceSnapshot{
		AgentID: m.AgentID,
		Period:  models.Period{Start: m.PeriodStart, End: m.PeriodEnd},
		Metrics: models.Metrics{
			TotalInteractions:      m.TotalInteractions,
			ConversionRate:         m.ConversionRate,
			AvgResponseMs:          m.AvgResponseMs,
			AppointmentBookingRate: m.AppointmentBookingRate,
			CSAT:                   m.CSAT,
		},
		Suggestions: []string(m.Suggestions),
	}
	if raw, ok := m.ScriptMetrics.Get("entries"); ok {
		if entries, ok := raw.([]any); ok {
			for _, e := range entries {
				em, ok := e.(map[string]any)
				if !ok {
					continue
				}
				snap.ScriptMetrics = append(snap.ScriptMetrics, models.ScriptMetric{
					ScriptID:       stringOf(em["script_id"]),
					ConversionRate: floatOf(em["conversion_rate"]),
					SampleSize:     int(floatOf(em["sample_size"])),
				})
			}
		}
	}
	return snap
}

// PerformanceModelFromDomain maps a domain PerformanceSnapshot to its row.
func PerformanceModelFromDomain(id string, s *models.PerformanceSnapshot) *PerformanceModel {
	scripts := make([]map[string]any, 0, len(s.ScriptMetrics))
	for _, sm := range s.ScriptMetrics {
		scripts = append(scripts, map[string]any{
			"script_id":       sm.ScriptID,
			"conversion_rate": sm.ConversionRate,
			"sample_size":     sm.SampleSize,
		})
	}
	return &PerformanceModel{
		ID:                     id,
		AgentID:                s.AgentID,
		PeriodStart:            s.Period.Start,
		PeriodEnd:              s.Period.End,
		TotalInteractions:      s.Metrics.TotalInteractions,
		ConversionRate:         s.Metrics.ConversionRate,
		AvgResponseMs:          s.Metrics.AvgResponseMs,
		AppointmentBookingRate: s.Metrics.AppointmentBookingRate,
		CSAT:                   s.Metrics.CSAT,
		ScriptMetrics:          JSONBMap{"entries": scripts},
		Suggestions:            StringArray(s.Suggestions),
	}
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func floatOf(v any) float64 {
	f, _ := v.(float64)
	return f
}

// BaselineModel is the bun-mapped row for a recorded optimization baseline
// (§4.5.2's `set_baseline`), keyed by agent and optimization id.
type BaselineModel struct {
	bun.BaseModel `bun:"table:baselines,alias:b"`

	AgentID        string    `bun:"agent_id,pk"`
	OptimizationID string    `bun:"optimization_id,pk"`
	Metrics        JSONBMap  `bun:"metrics,type:jsonb"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ToDomain maps the row to a domain Metrics tuple.
func (m *BaselineModel) ToDomain() models.Metrics {
	return models.Metrics{
		TotalInteractions:      int(m.Metrics.GetFloat("total_interactions")),
		ConversionRate:         m.Metrics.GetFloat("conversion_rate"),
		AvgResponseMs:          m.Metrics.GetFloat("avg_response_ms"),
		AppointmentBookingRate: m.Metrics.GetFloat("appointment_booking_rate"),
		CSAT:                   m.Metrics.GetFloat("csat"),
	}
}

// BaselineModelFromDomain maps a domain Metrics tuple to its row.
func BaselineModelFromDomain(agentID, optID string, mt models.Metrics) *BaselineModel {
	return &BaselineModel{
		AgentID:        agentID,
		OptimizationID: optID,
		Metrics: JSONBMap{
			"total_interactions":       float64(mt.TotalInteractions),
			"conversion_rate":          mt.ConversionRate,
			"avg_response_ms":          mt.AvgResponseMs,
			"appointment_booking_rate": mt.AppointmentBookingRate,
			"csat":                     mt.CSAT,
		},
	}
}

package analytics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/leadctl/optimizer/pkg/models"
)

// prometheusMetrics exports the per-agent gauges named in the SPEC_FULL
// dependency-wiring table: lead_conversion_rate, lead_avg_response_ms and
// lead_csat_score, each labeled by agent_id and refreshed every time
// CollectPerformance runs.
//
// Each Engine owns its own prometheus.Registry rather than registering
// against the global DefaultRegisterer, so constructing more than one Engine
// (as package tests do) never panics on a duplicate-collector registration.
// Registry() exposes it for main to merge into the process's metrics
// endpoint.
type prometheusMetrics struct {
	registry       *prometheus.Registry
	conversionRate *prometheus.GaugeVec
	avgResponseMs  *prometheus.GaugeVec
	csat           *prometheus.GaugeVec
}

func newPrometheusMetrics() *prometheusMetrics {
	m := &prometheusMetrics{
		registry: prometheus.NewRegistry(),
		conversionRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lead_conversion_rate",
			Help: "Most recently collected conversion rate for an agent's interactions.",
		}, []string{"agent_id"}),
		avgResponseMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lead_avg_response_ms",
			Help: "Most recently collected average response time in milliseconds for an agent.",
		}, []string{"agent_id"}),
		csat: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lead_csat_score",
			Help: "Most recently collected customer satisfaction score (0-5) for an agent.",
		}, []string{"agent_id"}),
	}
	m.registry.MustRegister(m.conversionRate, m.avgResponseMs, m.csat)
	return m
}

func (p *prometheusMetrics) observe(agentID string, m models.Metrics) {
	p.conversionRate.WithLabelValues(agentID).Set(m.ConversionRate)
	p.avgResponseMs.WithLabelValues(agentID).Set(m.AvgResponseMs)
	p.csat.WithLabelValues(agentID).Set(m.CSAT)
}

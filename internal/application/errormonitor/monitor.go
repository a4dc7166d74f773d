// Package errormonitor implements the Error Monitor (spec §4.8): it
// classifies errors, keeps a 24h rolling window, derives system status, and
// fans threshold alerts out to registered channels with a per-kind cooldown.
// Grounded on the teacher's ObserverManager (non-blocking, panic-recovered,
// per-observer fan-out) — the Monitor itself registers as an
// observer.Observer so it receives error.occurred and breaker.opened events
// through the same bus every other component already publishes to.
package errormonitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadctl/optimizer/internal/application/observer"
	"github.com/leadctl/optimizer/internal/config"
	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	"github.com/leadctl/optimizer/internal/platform/breaker"
	"github.com/leadctl/optimizer/internal/platform/clock"
	"github.com/leadctl/optimizer/pkg/models"
)

const (
	errorRetention = 24 * time.Hour
	tripRetention  = time.Hour
	rateWindow     = time.Minute
)

// AlertChannel is one fan-out target for threshold alerts (§4.8: "log,
// email, slack, webhook"). A channel's own failure never blocks the others.
type AlertChannel interface {
	Name() string
	Notify(ctx context.Context, alert models.Alert) error
}

// Monitor is the Error Monitor. It is safe for concurrent use.
type Monitor struct {
	cfg      config.AlertsConfig
	breakers *breaker.Registry
	logger   *logger.Logger
	clk      clock.Clock
	channels []AlertChannel

	mu           sync.Mutex
	events       []models.ErrorEvent
	trips        []time.Time
	cooldowns    map[models.AlertKind]time.Time
	recentAlerts []models.Alert
}

// recentAlertsLimit bounds the in-memory history Snapshot/RecentAlerts
// exposes to the Control Plane dashboard (§4.9: "recent alerts").
const recentAlertsLimit = 50

// New builds a Monitor. breakers may be nil (open-breaker counts then
// contribute 0 to system status — there is nothing to probe).
func New(cfg config.AlertsConfig, breakers *breaker.Registry, logger *logger.Logger, clk clock.Clock, channels ...AlertChannel) *Monitor {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Monitor{
		cfg:       cfg,
		breakers:  breakers,
		logger:    logger,
		clk:       clk,
		channels:  channels,
		cooldowns: make(map[models.AlertKind]time.Time),
	}
}

// Name identifies the Monitor as an observer.Observer.
func (m *Monitor) Name() string { return "error_monitor" }

// Filter returns nil, so every event type is delivered; OnEvent itself
// ignores all but error.occurred and breaker.opened.
func (m *Monitor) Filter() observer.EventFilter { return nil }

// OnEvent implements observer.Observer. It records error.occurred events
// into the rolling window and breaker.opened events as trips; every other
// event type is ignored.
func (m *Monitor) OnEvent(ctx context.Context, event observer.Event) error {
	switch event.Type {
	case observer.EventTypeErrorOccurred:
		sev := models.SeverityMedium
		cat := models.CategorySystem
		if event.Metadata != nil {
			if s, ok := event.Metadata["severity"].(models.Severity); ok {
				sev = s
			}
			if c, ok := event.Metadata["category"].(models.ErrorCategory); ok {
				cat = c
			}
		}
		resource := ""
		if event.Resource != nil {
			resource = *event.Resource
		}
		message := ""
		if event.Message != nil {
			message = *event.Message
		}
		m.RecordError(sev, cat, resource, message, m.clk.Now())
	case observer.EventTypeBreakerOpened:
		m.recordTrip(m.clk.Now())
	}
	return nil
}

// RecordError classifies and stores one ErrorEvent in the rolling window.
func (m *Monitor) RecordError(severity models.Severity, category models.ErrorCategory, resource, message string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, models.ErrorEvent{
		ID:         uuid.NewString(),
		Severity:   severity,
		Category:   category,
		Resource:   resource,
		Message:    message,
		OccurredAt: now,
	})
	m.trimLocked(now)
}

func (m *Monitor) recordTrip(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips = append(m.trips, now)
	m.trimLocked(now)
}

// trimLocked drops events and trips that have aged out of their retention
// windows (§4.8: "24h retention, trimmed hourly" — trimming on every write
// keeps the window bounded without a separate always-stale pass).
func (m *Monitor) trimLocked(now time.Time) {
	cutoff := now.Add(-errorRetention)
	i := 0
	for i < len(m.events) && m.events[i].OccurredAt.Before(cutoff) {
		i++
	}
	m.events = m.events[i:]

	tripCutoff := now.Add(-tripRetention)
	j := 0
	for j < len(m.trips) && m.trips[j].Before(tripCutoff) {
		j++
	}
	m.trips = m.trips[j:]
}

func (m *Monitor) errorRate(now time.Time) float64 {
	since := now.Add(-rateWindow)
	count := 0
	for _, e := range m.events {
		if e.OccurredAt.After(since) {
			count++
		}
	}
	return float64(count)
}

func (m *Monitor) criticalCount(now time.Time) int {
	since := now.Add(-time.Hour)
	count := 0
	for _, e := range m.events {
		if e.Severity == models.SeverityCritical && e.OccurredAt.After(since) {
			count++
		}
	}
	return count
}

func (m *Monitor) tripCount(now time.Time) int {
	since := now.Add(-tripRetention)
	count := 0
	for _, t := range m.trips {
		if t.After(since) {
			count++
		}
	}
	return count
}

func (m *Monitor) openBreakers() int {
	if m.breakers == nil {
		return 0
	}
	open := 0
	for _, b := range m.breakers.Snapshot() {
		if b.State == models.BreakerOpen {
			open++
		}
	}
	return open
}

// SystemStatus derives the process-wide health per §4.8's rules, evaluated
// in critical-first order.
func (m *Monitor) SystemStatus(now time.Time) models.SystemStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimLocked(now)

	openBreakers := m.openBreakers()
	if m.criticalCount(now) >= m.cfg.CriticalPerHour || openBreakers >= 5 {
		return models.StatusCritical
	}
	if m.errorRate(now) >= m.cfg.ErrorRateThreshold || openBreakers >= 2 {
		return models.StatusDegraded
	}
	return models.StatusHealthy
}

// CheckThresholds evaluates the three named alerts (§4.8) and fires any
// that breach their threshold and have cleared their per-kind cooldown.
func (m *Monitor) CheckThresholds(ctx context.Context, now time.Time) []models.Alert {
	m.mu.Lock()
	m.trimLocked(now)

	var fired []models.Alert

	rate := m.errorRate(now)
	if rate >= m.cfg.ErrorRateThreshold && m.readyLocked(models.AlertErrorRate, now) {
		fired = append(fired, models.Alert{
			Kind: models.AlertErrorRate, Severity: models.SeverityMedium,
			Message: "error rate exceeds threshold", Count: int(rate),
			WindowStart: now.Add(-rateWindow), FiredAt: now,
		})
	}

	critical := m.criticalCount(now)
	if critical >= m.cfg.CriticalPerHour && m.readyLocked(models.AlertCriticalErrors, now) {
		fired = append(fired, models.Alert{
			Kind: models.AlertCriticalErrors, Severity: models.SeverityCritical,
			Message: "critical error count exceeds threshold", Count: critical,
			WindowStart: now.Add(-time.Hour), FiredAt: now,
		})
	}

	trips := m.tripCount(now)
	if trips >= m.cfg.CBTripsPerHour && m.readyLocked(models.AlertBreakerTrips, now) {
		fired = append(fired, models.Alert{
			Kind: models.AlertBreakerTrips, Severity: models.SeverityHigh,
			Message: "circuit breaker trip count exceeds threshold", Count: trips,
			WindowStart: now.Add(-tripRetention), FiredAt: now,
		})
	}

	for _, a := range fired {
		m.cooldowns[a.Kind] = now
		m.recentAlerts = append(m.recentAlerts, a)
	}
	if overflow := len(m.recentAlerts) - recentAlertsLimit; overflow > 0 {
		m.recentAlerts = m.recentAlerts[overflow:]
	}
	m.mu.Unlock()

	for _, a := range fired {
		m.fire(ctx, a)
	}
	return fired
}

// readyLocked reports whether kind's cooldown has elapsed. Callers must
// hold m.mu.
func (m *Monitor) readyLocked(kind models.AlertKind, now time.Time) bool {
	last, ok := m.cooldowns[kind]
	if !ok {
		return true
	}
	return now.Sub(last) >= time.Duration(m.cfg.CooldownMinutes)*time.Minute
}

// fire fans alert out to every channel; a channel's failure is logged and
// does not prevent the others from being notified (§4.8).
func (m *Monitor) fire(ctx context.Context, alert models.Alert) {
	for _, ch := range m.channels {
		if err := ch.Notify(ctx, alert); err != nil {
			if m.logger != nil {
				m.logger.ErrorContext(ctx, "alert channel failed", "channel", ch.Name(), "kind", alert.Kind, "error", err)
			}
		}
	}
}

// RecentAlerts returns up to the last recentAlertsLimit fired alerts, for
// the Control Plane's dashboard snapshot (§4.9).
func (m *Monitor) RecentAlerts() []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Alert, len(m.recentAlerts))
	copy(out, m.recentAlerts)
	return out
}

// Run drives the hourly-trim / threshold-check ticker until ctx is
// cancelled, on its own preemptible unit (spec §5).
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.clk.After(interval):
			m.CheckThresholds(ctx, m.clk.Now())
		}
	}
}

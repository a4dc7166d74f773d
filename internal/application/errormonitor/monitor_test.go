package errormonitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadctl/optimizer/internal/application/observer"
	"github.com/leadctl/optimizer/internal/config"
	"github.com/leadctl/optimizer/internal/platform/breaker"
	"github.com/leadctl/optimizer/internal/platform/clock"
	"github.com/leadctl/optimizer/pkg/models"
)

type recordingChannel struct {
	mu     sync.Mutex
	alerts []models.Alert
	fail   bool
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Notify(ctx context.Context, alert models.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return assert.AnError
	}
	c.alerts = append(c.alerts, alert)
	return nil
}

func testAlertsConfig() config.AlertsConfig {
	return config.AlertsConfig{
		ErrorRateThreshold: 10,
		CriticalPerHour:    5,
		CBTripsPerHour:     3,
		CooldownMinutes:    15,
	}
}

func TestCheckThresholds_ErrorRateFiresOnce_ThenCooldown(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	ch := &recordingChannel{}
	m := New(testAlertsConfig(), nil, nil, fc, ch)

	now := fc.Now()
	for i := 0; i < 10; i++ {
		m.RecordError(models.SeverityLow, models.CategoryNetwork, "gmail.poll", "boom", now)
	}

	fired := m.CheckThresholds(context.Background(), now)
	require.Len(t, fired, 1)
	assert.Equal(t, models.AlertErrorRate, fired[0].Kind)
	require.Len(t, ch.alerts, 1)

	// Still within cooldown: a repeat breach does not re-fire.
	for i := 0; i < 10; i++ {
		m.RecordError(models.SeverityLow, models.CategoryNetwork, "gmail.poll", "boom again", now.Add(time.Minute))
	}
	fired = m.CheckThresholds(context.Background(), now.Add(time.Minute))
	assert.Empty(t, fired)
}

func TestCheckThresholds_CriticalErrorsFireIndependentlyOfRate(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	ch := &recordingChannel{}
	m := New(testAlertsConfig(), nil, nil, fc, ch)

	now := fc.Now()
	for i := 0; i < 5; i++ {
		m.RecordError(models.SeverityCritical, models.CategorySystem, "store.write", "critical failure", now)
	}

	fired := m.CheckThresholds(context.Background(), now)
	require.Len(t, fired, 1)
	assert.Equal(t, models.AlertCriticalErrors, fired[0].Kind)
}

func TestTrim_DropsEventsOlderThanRetention(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	m := New(testAlertsConfig(), nil, nil, fc, nil)

	m.RecordError(models.SeverityLow, models.CategoryNetwork, "r", "old", fc.Now())
	fc.Advance(25 * time.Hour)
	m.RecordError(models.SeverityLow, models.CategoryNetwork, "r", "new", fc.Now())

	m.mu.Lock()
	count := len(m.events)
	m.mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestSystemStatus_DerivesFromOpenBreakersAndCriticalCount(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	reg := breaker.NewRegistry(breaker.Settings{ConsecutiveFailures: 1, OpenTimeout: time.Minute, HalfOpenMaxRequests: 1})
	m := New(testAlertsConfig(), reg, nil, fc, nil)

	assert.Equal(t, models.StatusHealthy, m.SystemStatus(fc.Now()))

	// One failure trips each breaker (ConsecutiveFailures: 1); two open
	// breakers mean degraded.
	for _, resource := range []string{"gmail.poll", "store.write"} {
		err := reg.Execute(context.Background(), resource, func(ctx context.Context) error { return assert.AnError })
		require.Error(t, err)
	}
	assert.Equal(t, models.StatusDegraded, m.SystemStatus(fc.Now()))

	for i := 0; i < 5; i++ {
		m.RecordError(models.SeverityCritical, models.CategorySystem, "r", "fail", fc.Now())
	}
	assert.Equal(t, models.StatusCritical, m.SystemStatus(fc.Now()))
}

func TestOnEvent_ClassifiesErrorOccurredAndBreakerOpened(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	m := New(testAlertsConfig(), nil, nil, fc, nil)

	resource := "store.write"
	msg := "write failed"
	err := m.OnEvent(context.Background(), observer.Event{
		Type:     observer.EventTypeErrorOccurred,
		Resource: &resource,
		Message:  &msg,
		Metadata: map[string]any{"severity": models.SeverityHigh, "category": models.CategorySystem},
	})
	require.NoError(t, err)

	m.mu.Lock()
	require.Len(t, m.events, 1)
	assert.Equal(t, models.SeverityHigh, m.events[0].Severity)
	m.mu.Unlock()

	err = m.OnEvent(context.Background(), observer.Event{Type: observer.EventTypeBreakerOpened})
	require.NoError(t, err)

	m.mu.Lock()
	assert.Len(t, m.trips, 1)
	m.mu.Unlock()
}

package optimizer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadctl/optimizer/internal/application/analytics"
	"github.com/leadctl/optimizer/internal/domain/collaborator"
	"github.com/leadctl/optimizer/internal/domain/repository"
	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	"github.com/leadctl/optimizer/internal/platform/clock"
	"github.com/leadctl/optimizer/internal/platform/retry"
	"github.com/leadctl/optimizer/pkg/models"
)

// fakeStore is a minimal in-memory repository.Store exercising the slices
// the Optimization Loop and the Analytics Engine it drives both touch.
type fakeStore struct {
	mu              sync.Mutex
	interactions    []*models.Interaction
	snapshots       map[string]*models.PerformanceSnapshot
	baselines       map[string]models.Metrics
	recommendations map[string]*models.OptimizationRecommendation
	results         map[string]*models.OptimizationResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshots:       make(map[string]*models.PerformanceSnapshot),
		baselines:       make(map[string]models.Metrics),
		recommendations: make(map[string]*models.OptimizationRecommendation),
		results:         make(map[string]*models.OptimizationResult),
	}
}

func baselineKey(agentID, optimizationID string) string { return agentID + "|" + optimizationID }

func (s *fakeStore) GetLead(ctx context.Context, id string) (*models.Lead, error) { return nil, nil }
func (s *fakeStore) UpsertLead(ctx context.Context, lead *models.Lead) error      { return nil }
func (s *fakeStore) QueryLeads(ctx context.Context, filter repository.LeadFilter) ([]*models.Lead, error) {
	return nil, nil
}
func (s *fakeStore) CountByStatus(ctx context.Context, status models.LeadStatus) (int, error) {
	return 0, nil
}

func (s *fakeStore) AppendInteraction(ctx context.Context, interaction *models.Interaction, auditActor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, interaction)
	return nil
}
func (s *fakeStore) QueryInteractions(ctx context.Context, filter repository.InteractionFilter) ([]*models.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Interaction
	for _, i := range s.interactions {
		if filter.AgentID != nil && i.AgentID != *filter.AgentID {
			continue
		}
		if filter.Period != nil && (i.Timestamp.Before(filter.Period.Start) || i.Timestamp.After(filter.Period.End)) {
			continue
		}
		out = append(out, i)
	}
	return out, nil
}

func (s *fakeStore) UpsertPerformance(ctx context.Context, snapshot *models.PerformanceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *snapshot
	s.snapshots[snapshot.AgentID] = &cp
	return nil
}
func (s *fakeStore) FindPerformance(ctx context.Context, agentID string, period models.Period) (*models.PerformanceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[agentID]
	if !ok {
		return nil, models.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *fakeStore) SetBaseline(ctx context.Context, agentID, optimizationID string, metrics models.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[baselineKey(agentID, optimizationID)] = metrics
	return nil
}
func (s *fakeStore) GetBaseline(ctx context.Context, agentID, optimizationID string) (*models.Metrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.baselines[baselineKey(agentID, optimizationID)]
	if !ok {
		return nil, models.ErrNoBaseline
	}
	cp := m
	return &cp, nil
}

func (s *fakeStore) CreateSequence(ctx context.Context, seq *models.OutboundSequence) error { return nil }
func (s *fakeStore) UpdateSequence(ctx context.Context, seq *models.OutboundSequence) error { return nil }
func (s *fakeStore) FindSequence(ctx context.Context, id string) (*models.OutboundSequence, error) {
	return nil, nil
}
func (s *fakeStore) FindDueSequences(ctx context.Context, asOf time.Time, limit int) ([]*models.OutboundSequence, error) {
	return nil, nil
}
func (s *fakeStore) FindCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	return nil, nil
}
func (s *fakeStore) UpdateCampaign(ctx context.Context, c *models.Campaign) error { return nil }

func (s *fakeStore) CreateRecommendation(ctx context.Context, rec *models.OptimizationRecommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recommendations[rec.ID] = rec
	return nil
}
func (s *fakeStore) FindRecommendation(ctx context.Context, id string) (*models.OptimizationRecommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recommendations[id]
	if !ok {
		return nil, models.ErrRecommendationNotFound
	}
	return rec, nil
}
func (s *fakeStore) CreateResult(ctx context.Context, result *models.OptimizationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *result
	s.results[result.RecommendationID] = &cp
	return nil
}
func (s *fakeStore) UpdateResult(ctx context.Context, result *models.OptimizationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *result
	s.results[result.RecommendationID] = &cp
	return nil
}
func (s *fakeStore) FindResult(ctx context.Context, recommendationID string) (*models.OptimizationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[recommendationID]
	if !ok {
		return nil, models.ErrRecommendationNotFound
	}
	return r, nil
}
func (s *fakeStore) FindPendingResults(ctx context.Context) ([]*models.OptimizationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.OptimizationResult
	for _, r := range s.results {
		if r.Pending() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateFeedbackSession(ctx context.Context, session *models.FeedbackSession) error {
	return nil
}
func (s *fakeStore) UpdateFeedbackSession(ctx context.Context, session *models.FeedbackSession) error {
	return nil
}
func (s *fakeStore) UpsertBreaker(ctx context.Context, b *models.CircuitBreaker) error { return nil }
func (s *fakeStore) ListBreakers(ctx context.Context) ([]*models.CircuitBreaker, error) {
	return nil, nil
}
func (s *fakeStore) AppendAudit(ctx context.Context, entry *models.AuditLog) error { return nil }
func (s *fakeStore) QueryAudit(ctx context.Context, entityType, entityID string) ([]*models.AuditLog, error) {
	return nil, nil
}
func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return fn(ctx, s)
}

// fakeRoutingAgent records every mutation call.
type fakeRoutingAgent struct {
	mu    sync.Mutex
	calls []map[string]any
}

func (f *fakeRoutingAgent) UpdateConfig(ctx context.Context, agentID string, partial map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, partial)
	return nil
}
func (f *fakeRoutingAgent) AddRoutingRule(ctx context.Context, agentID string, rule collaborator.RoutingRule) error {
	return nil
}
func (f *fakeRoutingAgent) RemoveRoutingRule(ctx context.Context, agentID string, ruleID string) error {
	return nil
}

func newInteraction(agentID string, ts time.Time, status models.OutcomeStatus) *models.Interaction {
	return &models.Interaction{
		ID:        "int-" + ts.String() + "-" + agentID,
		LeadID:    "lead-1",
		AgentID:   agentID,
		Type:      models.InteractionCall,
		Direction: models.DirectionOutbound,
		Outcome:   models.Outcome{Status: status},
		Timestamp: ts,
	}
}

func TestSynthesizeRecommendations_SortedByPriorityThenImpact(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fb := feedback{
		metricsByAgent: map[string]models.Metrics{
			"agent-1": {ConversionRate: 0.45, AvgResponseMs: 85000, CSAT: 4.5, AppointmentBookingRate: 0.5},
		},
	}

	recs := synthesizeRecommendations(fb, now, 7)
	require.Len(t, recs, 2)
	assert.Equal(t, models.PriorityHigh, recs[0].Priority)
	assert.Equal(t, models.PriorityHigh, recs[1].Priority)
	// both high priority: higher expected impact (response time, 20) first
	assert.GreaterOrEqual(t, recs[0].ExpectedImpactPct, recs[1].ExpectedImpactPct)
}

func TestSynthesizeRecommendations_ScriptImprovementBelowThresholdDiscarded(t *testing.T) {
	now := time.Now()
	fb := feedback{
		scripts: []models.ScriptOptimization{
			{ScriptID: "s-low", EstimatedConversionImp: 5},
			{ScriptID: "s-mid", EstimatedConversionImp: 15},
			{ScriptID: "s-high", EstimatedConversionImp: 25},
		},
	}

	recs := synthesizeRecommendations(fb, now, 7)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, models.RecScriptUpdate, r.Type)
	}
}

func TestLoop_ApplyThenValidate_ConvergesToValidated(t *testing.T) {
	store := newFakeStore()
	fc := clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	engine := analytics.New(store, nil, fc)
	routing := &fakeRoutingAgent{}

	loop := New(Config{
		Store:              store,
		Analytics:          engine,
		Logger:             logger.Default(),
		Clock:              fc,
		Retry:              retry.None(),
		TestingDaysDefault: 7,
	})
	loop.routing = routing

	ctx := context.Background()
	now := fc.Now()

	rec := &models.OptimizationRecommendation{
		ID:      "rec-1",
		AgentID: "agent-1",
		Type:    models.RecRoutingRule,
		Implementation: models.Implementation{
			TestingDays: 7,
		},
	}

	// Baseline window: weak conversion rate.
	for i := 0; i < 10; i++ {
		status := models.OutcomeFailed
		if i < 4 {
			status = models.OutcomeSuccessful
		}
		store.interactions = append(store.interactions, newInteraction("agent-1", now.Add(-time.Hour), status))
	}

	require.NoError(t, loop.apply(ctx, rec, now))
	require.Len(t, routing.calls, 1)

	result, err := store.FindResult(ctx, "rec-1")
	require.NoError(t, err)
	assert.True(t, result.Pending())

	// Advance past the testing window and improve conversion sharply.
	fc.Advance(8 * 24 * time.Hour)
	later := fc.Now()
	for i := 0; i < 10; i++ {
		status := models.OutcomeFailed
		if i < 9 {
			status = models.OutcomeSuccessful
		}
		store.interactions = append(store.interactions, newInteraction("agent-1", later.Add(-time.Hour), status))
	}

	require.NoError(t, loop.validatePending(ctx, later))

	result, err = store.FindResult(ctx, "rec-1")
	require.NoError(t, err)
	assert.False(t, result.Pending())
	assert.True(t, result.Validated)
}

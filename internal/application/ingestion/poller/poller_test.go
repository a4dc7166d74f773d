package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadctl/optimizer/internal/application/ingestion"
	"github.com/leadctl/optimizer/internal/application/observer"
	"github.com/leadctl/optimizer/internal/config"
	"github.com/leadctl/optimizer/internal/domain/collaborator"
	"github.com/leadctl/optimizer/internal/domain/repository"
	"github.com/leadctl/optimizer/internal/infrastructure/cache"
	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	"github.com/leadctl/optimizer/internal/platform/breaker"
	"github.com/leadctl/optimizer/internal/platform/clock"
	"github.com/leadctl/optimizer/pkg/models"
)

type stubStore struct {
	mu    sync.Mutex
	leads map[string]*models.Lead
}

func newStubStore() *stubStore { return &stubStore{leads: make(map[string]*models.Lead)} }

func (s *stubStore) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, models.ErrLeadNotFound
	}
	return l, nil
}
func (s *stubStore) UpsertLead(ctx context.Context, lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[lead.ID] = lead
	return nil
}
func (s *stubStore) QueryLeads(ctx context.Context, filter repository.LeadFilter) ([]*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		out = append(out, l)
	}
	return out, nil
}
func (s *stubStore) CountByStatus(ctx context.Context, status models.LeadStatus) (int, error) {
	return 0, nil
}
func (s *stubStore) AppendInteraction(ctx context.Context, i *models.Interaction, actor string) error {
	return nil
}
func (s *stubStore) QueryInteractions(ctx context.Context, f repository.InteractionFilter) ([]*models.Interaction, error) {
	return nil, nil
}
func (s *stubStore) UpsertPerformance(ctx context.Context, snap *models.PerformanceSnapshot) error {
	return nil
}
func (s *stubStore) FindPerformance(ctx context.Context, agentID string, period models.Period) (*models.PerformanceSnapshot, error) {
	return nil, nil
}
func (s *stubStore) SetBaseline(ctx context.Context, agentID, optID string, m models.Metrics) error {
	return nil
}
func (s *stubStore) GetBaseline(ctx context.Context, agentID, optID string) (*models.Metrics, error) {
	return nil, nil
}
func (s *stubStore) CreateSequence(ctx context.Context, seq *models.OutboundSequence) error {
	return nil
}
func (s *stubStore) UpdateSequence(ctx context.Context, seq *models.OutboundSequence) error {
	return nil
}
func (s *stubStore) FindSequence(ctx context.Context, id string) (*models.OutboundSequence, error) {
	return nil, nil
}
func (s *stubStore) FindDueSequences(ctx context.Context, asOf time.Time, limit int) ([]*models.OutboundSequence, error) {
	return nil, nil
}
func (s *stubStore) FindCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	return nil, nil
}
func (s *stubStore) UpdateCampaign(ctx context.Context, c *models.Campaign) error { return nil }
func (s *stubStore) CreateRecommendation(ctx context.Context, rec *models.OptimizationRecommendation) error {
	return nil
}
func (s *stubStore) FindRecommendation(ctx context.Context, id string) (*models.OptimizationRecommendation, error) {
	return nil, nil
}
func (s *stubStore) CreateResult(ctx context.Context, r *models.OptimizationResult) error { return nil }
func (s *stubStore) UpdateResult(ctx context.Context, r *models.OptimizationResult) error { return nil }
func (s *stubStore) FindResult(ctx context.Context, recID string) (*models.OptimizationResult, error) {
	return nil, nil
}
func (s *stubStore) FindPendingResults(ctx context.Context) ([]*models.OptimizationResult, error) {
	return nil, nil
}
func (s *stubStore) CreateFeedbackSession(ctx context.Context, sess *models.FeedbackSession) error {
	return nil
}
func (s *stubStore) UpdateFeedbackSession(ctx context.Context, sess *models.FeedbackSession) error {
	return nil
}
func (s *stubStore) UpsertBreaker(ctx context.Context, b *models.CircuitBreaker) error { return nil }
func (s *stubStore) ListBreakers(ctx context.Context) ([]*models.CircuitBreaker, error) {
	return nil, nil
}
func (s *stubStore) AppendAudit(ctx context.Context, entry *models.AuditLog) error { return nil }
func (s *stubStore) QueryAudit(ctx context.Context, entityType, entityID string) ([]*models.AuditLog, error) {
	return nil, nil
}
func (s *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return fn(ctx, s)
}

type stubFetcher struct {
	mu       sync.Mutex
	messages []collaborator.RawMessage
	next     time.Time
	err      error
	calls    int
}

func (f *stubFetcher) FetchSince(ctx context.Context, since time.Time) ([]collaborator.RawMessage, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.messages, f.next, f.err
}

func newTestCache(t *testing.T) *cache.RedisCache {
	t.Helper()
	s := miniredis.RunT(t)
	c, err := cache.NewRedisCache(config.RedisConfig{URL: "redis://" + s.Addr()})
	require.NoError(t, err)
	return c
}

func TestPoller_PollOnce_NewWatermarkPersistedOnSuccess(t *testing.T) {
	rc := newTestCache(t)
	store := newStubStore()
	pipeline := ingestion.New(store, observer.NewObserverManager(), logger.Default())

	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	nextWatermark := fc.Now().Add(5 * time.Minute)
	fetcher := &stubFetcher{
		messages: []collaborator.RawMessage{{Fields: map[string]any{"from_email": "a@b.com"}, Body: "hi"}},
		next:     nextWatermark,
	}

	p := New(Config{
		Pipeline: pipeline,
		Cache:    rc,
		Breakers: breaker.NewRegistry(breaker.DefaultSettings()),
		Logger:   logger.Default(),
		Clock:    fc,
		Interval: time.Minute,
		Sources:  []Source{{Tag: models.SourceGmail, Fetcher: fetcher}},
	})

	p.pollOnce(context.Background(), p.sources[0])

	assert.Equal(t, 1, fetcher.calls)
	assert.Len(t, store.leads, 1)

	saved := p.loadWatermark(context.Background(), models.SourceGmail)
	assert.WithinDuration(t, nextWatermark, saved, time.Second)
}

func TestPoller_LoadWatermark_DefaultsToLookbackOnFirstRun(t *testing.T) {
	rc := newTestCache(t)
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	p := New(Config{Cache: rc, Clock: fc, Interval: time.Minute})

	wm := p.loadWatermark(context.Background(), models.SourceGmail)
	assert.Equal(t, fc.Now().Add(-60*time.Minute), wm)
}

func TestPoller_PollOnce_BreakerOpenSkipsFetch(t *testing.T) {
	rc := newTestCache(t)
	store := newStubStore()
	pipeline := ingestion.New(store, observer.NewObserverManager(), logger.Default())
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	failing := &stubFetcher{err: assertErr{}}
	reg := breaker.NewRegistry(breaker.Settings{ConsecutiveFailures: 1, OpenTimeout: time.Hour, HalfOpenMaxRequests: 1})

	p := New(Config{
		Pipeline: pipeline,
		Cache:    rc,
		Breakers: reg,
		Logger:   logger.Default(),
		Clock:    fc,
		Interval: time.Minute,
		Sources:  []Source{{Tag: models.SourceGmail, Fetcher: failing}},
	})

	p.pollOnce(context.Background(), p.sources[0])
	assert.Equal(t, 1, failing.calls)

	p.pollOnce(context.Background(), p.sources[0])
	assert.Equal(t, 1, failing.calls, "breaker should be open and skip the second fetch")
}

type assertErr struct{}

func (assertErr) Error() string { return "fetch failed" }

// Package storage implements the domain/repository.Store contract against
// PostgreSQL via bun/pgdialect, grounded on the teacher's
// WorkflowRepository/EventRepository query-builder conventions.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/leadctl/optimizer/internal/domain/repository"
	storagemodels "github.com/leadctl/optimizer/internal/infrastructure/storage/models"
	"github.com/leadctl/optimizer/pkg/models"
)

var _ repository.Store = (*Store)(nil)

// Store implements repository.Store against a bun.DB (or a bun.Tx handed
// in through WithTx — both satisfy bun.IDB).
type Store struct {
	db bun.IDB
}

// New builds a Store backed directly by the pool.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// WithTx runs fn inside one serializable database transaction; every
// repository call on the tx parameter shares it, per the Store contract's
// "ingestion inserts run serializable" requirement (§6).
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	db, ok := s.db.(*bun.DB)
	if !ok {
		return fn(ctx, s)
	}
	return db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: tx})
	})
}

// --- Leads ---

func (s *Store) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	row := &storagemodels.LeadModel{}
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return row.ToDomain(), nil
}

func (s *Store) UpsertLead(ctx context.Context, lead *models.Lead) error {
	row := storagemodels.LeadModelFromDomain(lead)
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("assigned_agent = EXCLUDED.assigned_agent").
		Set("score = EXCLUDED.score").
		Set("budget_min = EXCLUDED.budget_min").
		Set("budget_max = EXCLUDED.budget_max").
		Set("location = EXCLUDED.location").
		Set("property_type = EXCLUDED.property_type").
		Set("timeline = EXCLUDED.timeline").
		Set("intent_signals = EXCLUDED.intent_signals").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert lead: %w", err)
	}
	lead.ID = row.ID
	return nil
}

func (s *Store) QueryLeads(ctx context.Context, filter repository.LeadFilter) ([]*models.Lead, error) {
	var rows []*storagemodels.LeadModel
	q := s.db.NewSelect().Model(&rows)
	if filter.Status != nil {
		q = q.Where("status = ?", string(*filter.Status))
	}
	if filter.Source != nil {
		q = q.Where("source = ?", string(*filter.Source))
	}
	if filter.AssignedAgent != nil {
		q = q.Where("assigned_agent = ?", *filter.AssignedAgent)
	}
	if filter.MinScore != nil {
		q = q.Where("score >= ?", *filter.MinScore)
	}
	if filter.MinUrgency != nil {
		q = q.Where("urgency >= ?", *filter.MinUrgency)
	}
	if filter.CreatedAfter != nil {
		q = q.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if err := q.Order("created_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	out := make([]*models.Lead, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToDomain())
	}
	return out, nil
}

func (s *Store) CountByStatus(ctx context.Context, status models.LeadStatus) (int, error) {
	count, err := s.db.NewSelect().
		Model((*storagemodels.LeadModel)(nil)).
		Where("status = ?", string(status)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count leads by status: %w", err)
	}
	return count, nil
}

// --- Interactions ---

func (s *Store) AppendInteraction(ctx context.Context, interaction *models.Interaction, auditActor string) error {
	if interaction.ID == "" {
		interaction.ID = uuid.New().String()
	}
	row := storagemodels.InteractionModelFromDomain(interaction)

	runInTx := func(ctx context.Context, tx bun.IDB) error {
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("insert interaction: %w", err)
		}
		audit := storagemodels.AuditModelFromDomain(&models.AuditLog{
			ID:         uuid.New().String(),
			EntityType: "interaction",
			EntityID:   interaction.ID,
			Action:     models.AuditCreate,
			Actor:      auditActor,
			Timestamp:  interaction.Timestamp,
		})
		if _, err := tx.NewInsert().Model(audit).Exec(ctx); err != nil {
			return fmt.Errorf("insert interaction audit row: %w", err)
		}
		return nil
	}

	if db, ok := s.db.(*bun.DB); ok {
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return runInTx(ctx, tx)
		})
	}
	return runInTx(ctx, s.db)
}

func (s *Store) QueryInteractions(ctx context.Context, filter repository.InteractionFilter) ([]*models.Interaction, error) {
	var rows []*storagemodels.InteractionModel
	q := s.db.NewSelect().Model(&rows)
	if filter.AgentID != nil {
		q = q.Where("agent_id = ?", *filter.AgentID)
	}
	if filter.LeadID != nil {
		q = q.Where("lead_id = ?", *filter.LeadID)
	}
	if filter.Period != nil {
		q = q.Where("timestamp >= ? AND timestamp <= ?", filter.Period.Start, filter.Period.End)
	}
	if err := q.Order("timestamp DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	out := make([]*models.Interaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToDomain())
	}
	return out, nil
}

// --- Performance ---

func (s *Store) UpsertPerformance(ctx context.Context, snapshot *models.PerformanceSnapshot) error {
	row := storagemodels.PerformanceModelFromDomain(perfRowID(snapshot.AgentID, snapshot.Period), snapshot)
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("total_interactions = EXCLUDED.total_interactions").
		Set("conversion_rate = EXCLUDED.conversion_rate").
		Set("avg_response_ms = EXCLUDED.avg_response_ms").
		Set("appointment_booking_rate = EXCLUDED.appointment_booking_rate").
		Set("csat = EXCLUDED.csat").
		Set("script_metrics = EXCLUDED.script_metrics").
		Set("suggestions = EXCLUDED.suggestions").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert performance snapshot: %w", err)
	}
	return nil
}

// perfRowID derives a deterministic id for the (agent_id, period) unique
// key (§3) so repeated UpsertPerformance calls for the same window collide
// on conflict instead of accumulating duplicate rows.
func perfRowID(agentID string, period models.Period) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(agentID+"|"+period.Start.UTC().Format(time.RFC3339)+"|"+period.End.UTC().Format(time.RFC3339))).String()
}

func (s *Store) FindPerformance(ctx context.Context, agentID string, period models.Period) (*models.PerformanceSnapshot, error) {
	row := &storagemodels.PerformanceModel{}
	err := s.db.NewSelect().Model(row).Where("id = ?", perfRowID(agentID, period)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find performance snapshot: %w", err)
	}
	return row.ToDomain(), nil
}

// --- Baselines ---

func (s *Store) SetBaseline(ctx context.Context, agentID, optimizationID string, m models.Metrics) error {
	row := storagemodels.BaselineModelFromDomain(agentID, optimizationID, m)
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (agent_id, optimization_id) DO UPDATE").
		Set("metrics = EXCLUDED.metrics").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set baseline: %w", err)
	}
	return nil
}

func (s *Store) GetBaseline(ctx context.Context, agentID, optimizationID string) (*models.Metrics, error) {
	row := &storagemodels.BaselineModel{}
	err := s.db.NewSelect().
		Model(row).
		Where("agent_id = ? AND optimization_id = ?", agentID, optimizationID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNoBaseline
	}
	if err != nil {
		return nil, fmt.Errorf("get baseline: %w", err)
	}
	m := row.ToDomain()
	return &m, nil
}

// --- Sequences ---

func (s *Store) CreateSequence(ctx context.Context, seq *models.OutboundSequence) error {
	if seq.ID == "" {
		seq.ID = uuid.New().String()
	}
	row := storagemodels.SequenceModelFromDomain(seq)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("create sequence: %w", err)
	}
	return nil
}

func (s *Store) UpdateSequence(ctx context.Context, seq *models.OutboundSequence) error {
	row := storagemodels.SequenceModelFromDomain(seq)
	_, err := s.db.NewUpdate().
		Model(row).
		Column("current_step", "next_fire_at", "status", "interaction_ids", "updated_at").
		Where("id = ?", row.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update sequence: %w", err)
	}
	return nil
}

func (s *Store) FindSequence(ctx context.Context, id string) (*models.OutboundSequence, error) {
	row := &storagemodels.SequenceModel{}
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSequenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find sequence: %w", err)
	}
	return row.ToDomain(), nil
}

func (s *Store) FindDueSequences(ctx context.Context, asOf time.Time, limit int) ([]*models.OutboundSequence, error) {
	var rows []*storagemodels.SequenceModel
	q := s.db.NewSelect().
		Model(&rows).
		Where("status = ?", string(models.SequenceActive)).
		Where("next_fire_at IS NOT NULL AND next_fire_at <= ?", asOf).
		Order("next_fire_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("find due sequences: %w", err)
	}
	out := make([]*models.OutboundSequence, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToDomain())
	}
	return out, nil
}

// --- Campaigns ---

func (s *Store) FindCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	row := &storagemodels.CampaignModel{}
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find campaign: %w", err)
	}
	return row.ToDomain(), nil
}

func (s *Store) UpdateCampaign(ctx context.Context, c *models.Campaign) error {
	row := storagemodels.CampaignModelFromDomain(c)
	_, err := s.db.NewUpdate().
		Model(row).
		Column("variants", "status").
		Where("id = ?", row.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return nil
}

// --- Optimization ---

func (s *Store) CreateRecommendation(ctx context.Context, rec *models.OptimizationRecommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	row := storagemodels.RecommendationModelFromDomain(rec)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("create recommendation: %w", err)
	}
	return nil
}

func (s *Store) FindRecommendation(ctx context.Context, id string) (*models.OptimizationRecommendation, error) {
	row := &storagemodels.RecommendationModel{}
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRecommendationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find recommendation: %w", err)
	}
	return row.ToDomain(), nil
}

func (s *Store) CreateResult(ctx context.Context, r *models.OptimizationResult) error {
	row := storagemodels.ResultModelFromDomain(r)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("create optimization result: %w", err)
	}
	return nil
}

func (s *Store) UpdateResult(ctx context.Context, r *models.OptimizationResult) error {
	row := storagemodels.ResultModelFromDomain(r)
	_, err := s.db.NewUpdate().
		Model(row).
		Column("current_metrics", "improvement", "validated", "validated_at", "rollback_required", "quarantined").
		Where("recommendation_id = ?", row.RecommendationID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update optimization result: %w", err)
	}
	return nil
}

func (s *Store) FindResult(ctx context.Context, recommendationID string) (*models.OptimizationResult, error) {
	row := &storagemodels.ResultModel{}
	err := s.db.NewSelect().Model(row).Where("recommendation_id = ?", recommendationID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRecommendationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find optimization result: %w", err)
	}
	return row.ToDomain(), nil
}

func (s *Store) FindPendingResults(ctx context.Context) ([]*models.OptimizationResult, error) {
	var rows []*storagemodels.ResultModel
	err := s.db.NewSelect().
		Model(&rows).
		Where("validated = FALSE AND rollback_required = FALSE").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("find pending optimization results: %w", err)
	}
	out := make([]*models.OptimizationResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToDomain())
	}
	return out, nil
}

// --- Feedback ---

func (s *Store) CreateFeedbackSession(ctx context.Context, sess *models.FeedbackSession) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	row := storagemodels.FeedbackModelFromDomain(sess)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("create feedback session: %w", err)
	}
	return nil
}

func (s *Store) UpdateFeedbackSession(ctx context.Context, sess *models.FeedbackSession) error {
	row := storagemodels.FeedbackModelFromDomain(sess)
	_, err := s.db.NewUpdate().
		Model(row).
		Column("responded_at", "rating", "comments", "status").
		Where("id = ?", row.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update feedback session: %w", err)
	}
	return nil
}

// --- Circuit breakers ---

func (s *Store) UpsertBreaker(ctx context.Context, b *models.CircuitBreaker) error {
	row := storagemodels.BreakerModelFromDomain(b)
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (resource) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("failure_count = EXCLUDED.failure_count").
		Set("last_failure_at = EXCLUDED.last_failure_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert circuit breaker: %w", err)
	}
	return nil
}

func (s *Store) ListBreakers(ctx context.Context) ([]*models.CircuitBreaker, error) {
	var rows []*storagemodels.BreakerModel
	if err := s.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("list circuit breakers: %w", err)
	}
	out := make([]*models.CircuitBreaker, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToDomain())
	}
	return out, nil
}

// --- Audit ---

func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	row := storagemodels.AuditModelFromDomain(entry)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

func (s *Store) QueryAudit(ctx context.Context, entityType, entityID string) ([]*models.AuditLog, error) {
	var rows []*storagemodels.AuditModel
	err := s.db.NewSelect().
		Model(&rows).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("timestamp DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	out := make([]*models.AuditLog, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToDomain())
	}
	return out, nil
}

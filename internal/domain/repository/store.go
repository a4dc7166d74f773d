// Package repository defines the Store contract (spec §6): the set of
// transactional persistence interfaces the core depends on. Only the
// contract matters — the durable store's internals are out of scope
// (spec §1) — modeled in the shape of the teacher's
// WorkflowRepository/EventRepository interfaces: context-first methods,
// typed filter structs, explicit error returns.
package repository

import (
	"context"
	"time"

	"github.com/leadctl/optimizer/pkg/models"
)

// LeadFilter narrows query_leads (§6).
type LeadFilter struct {
	Status        *models.LeadStatus
	Source        *models.LeadSource
	AssignedAgent *string
	MinScore      *float64
	MinUrgency    *int
	CreatedAfter  *time.Time
	Limit         int
	Offset        int
}

// LeadRepository is the Lead slice of the Store contract.
type LeadRepository interface {
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	UpsertLead(ctx context.Context, lead *models.Lead) error
	QueryLeads(ctx context.Context, filter LeadFilter) ([]*models.Lead, error)
	CountByStatus(ctx context.Context, status models.LeadStatus) (int, error)
}

// InteractionFilter narrows interaction reads for analytics aggregation.
type InteractionFilter struct {
	AgentID *string
	LeadID  *string
	Period  *models.Period
}

// InteractionRepository is the Interaction slice of the Store contract.
type InteractionRepository interface {
	// AppendInteraction persists the interaction, the audit row, and any
	// lead status mutation atomically (§6: "append_interaction in tx with
	// audit row").
	AppendInteraction(ctx context.Context, interaction *models.Interaction, auditActor string) error
	QueryInteractions(ctx context.Context, filter InteractionFilter) ([]*models.Interaction, error)
}

// PerformanceRepository is the PerformanceSnapshot slice of the Store contract.
type PerformanceRepository interface {
	// UpsertPerformance is unique on (agent_id, period) per §3.
	UpsertPerformance(ctx context.Context, snapshot *models.PerformanceSnapshot) error
	FindPerformance(ctx context.Context, agentID string, period models.Period) (*models.PerformanceSnapshot, error)
}

// BaselineRepository persists the per-(agent, optimization) baseline metric
// vector used by measure_impact (§4.5.2).
type BaselineRepository interface {
	SetBaseline(ctx context.Context, agentID, optimizationID string, metrics models.Metrics) error
	GetBaseline(ctx context.Context, agentID, optimizationID string) (*models.Metrics, error)
}

// SequenceRepository is the OutboundSequence slice of the Store contract.
type SequenceRepository interface {
	CreateSequence(ctx context.Context, seq *models.OutboundSequence) error
	UpdateSequence(ctx context.Context, seq *models.OutboundSequence) error
	FindSequence(ctx context.Context, id string) (*models.OutboundSequence, error)
	// FindDueSequences returns active sequences whose next_fire_at has
	// elapsed, for the tick-dispatcher poller (SPEC_FULL §4.6 Open Question
	// resolution: one poller, not one cron entry per sequence).
	FindDueSequences(ctx context.Context, asOf time.Time, limit int) ([]*models.OutboundSequence, error)
}

// CampaignRepository is the Campaign slice of the Store contract.
type CampaignRepository interface {
	FindCampaign(ctx context.Context, id string) (*models.Campaign, error)
	UpdateCampaign(ctx context.Context, c *models.Campaign) error
}

// OptimizationRepository is the recommendation/result slice of the Store contract.
type OptimizationRepository interface {
	CreateRecommendation(ctx context.Context, rec *models.OptimizationRecommendation) error
	FindRecommendation(ctx context.Context, id string) (*models.OptimizationRecommendation, error)
	CreateResult(ctx context.Context, result *models.OptimizationResult) error
	UpdateResult(ctx context.Context, result *models.OptimizationResult) error
	FindResult(ctx context.Context, recommendationID string) (*models.OptimizationResult, error)
	// FindPendingResults lists results still awaiting validation, for
	// in-memory active_optimizations index rebuild on restart (§9).
	FindPendingResults(ctx context.Context) ([]*models.OptimizationResult, error)
}

// FeedbackRepository is the FeedbackSession slice of the Store contract.
type FeedbackRepository interface {
	CreateFeedbackSession(ctx context.Context, session *models.FeedbackSession) error
	UpdateFeedbackSession(ctx context.Context, session *models.FeedbackSession) error
}

// BreakerRepository persists CircuitBreaker snapshots for dashboard reads
// and process-restart bookkeeping; the live gating decision is made
// in-process (§3 Ownership, §9 rebuildable-index redesign).
type BreakerRepository interface {
	UpsertBreaker(ctx context.Context, b *models.CircuitBreaker) error
	ListBreakers(ctx context.Context) ([]*models.CircuitBreaker, error)
}

// AuditRepository is the append-only audit slice of the Store contract.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry *models.AuditLog) error
	QueryAudit(ctx context.Context, entityType, entityID string) ([]*models.AuditLog, error)
}

// Store is the full transactional persistence contract the core depends on
// (spec §1, §6). WithTx runs fn inside a single serializable transaction;
// the ingestion insert runs through it (§6). Other multi-row writes use the
// database's default isolation.
type Store interface {
	LeadRepository
	InteractionRepository
	PerformanceRepository
	BaselineRepository
	SequenceRepository
	CampaignRepository
	OptimizationRepository
	FeedbackRepository
	BreakerRepository
	AuditRepository

	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Package ingestion implements the Lead Ingestion Pipeline (spec §4.4):
// normalize -> dedup-check -> merge-or-insert, one raw lead at a time, a
// single failure never aborting the batch.
package ingestion

import (
	"context"

	"github.com/google/uuid"

	"github.com/leadctl/optimizer/internal/application/ingestion/dedup"
	"github.com/leadctl/optimizer/internal/application/ingestion/normalizer"
	"github.com/leadctl/optimizer/internal/application/observer"
	"github.com/leadctl/optimizer/internal/domain/repository"
	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	"github.com/leadctl/optimizer/internal/platform/clock"
	"github.com/leadctl/optimizer/pkg/models"
)

// IngestionResult is the per-lead outcome the pipeline emits (§4.4).
type IngestionResult struct {
	Success     bool
	IsDuplicate bool
	ExistingID  string
	LeadID      string
	Error       error
}

// Pipeline wires the Normalizer and Deduplicator against the Store,
// publishing a lead.ingested event for each successful outcome.
type Pipeline struct {
	store    repository.Store
	dedup    *dedup.Deduplicator
	observer *observer.ObserverManager
	logger   *logger.Logger
	clock    clock.Clock
}

type Option func(*Pipeline)

func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

func New(store repository.Store, obs *observer.ObserverManager, log *logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		dedup:    dedup.New(store),
		observer: obs,
		logger:   log,
		clock:    clock.Real{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessBatch runs every raw payload through the pipeline independently
// (§4.4: "a single failure does not abort the batch").
func (p *Pipeline) ProcessBatch(ctx context.Context, payloads []normalizer.RawPayload) []IngestionResult {
	results := make([]IngestionResult, len(payloads))
	for i, payload := range payloads {
		results[i] = p.ProcessOne(ctx, payload)
	}
	return results
}

// ProcessOne normalizes, dedup-checks, and persists a single raw lead.
func (p *Pipeline) ProcessOne(ctx context.Context, payload normalizer.RawPayload) IngestionResult {
	lead, err := normalizer.Normalize(p.clock.Now(), payload)
	if err != nil {
		p.logger.WarnContext(ctx, "lead normalization failed", "source", payload.Source, "error", err)
		return IngestionResult{Success: false, Error: err}
	}

	check, err := p.dedup.Check(ctx, lead)
	if err != nil {
		return IngestionResult{Success: false, Error: err}
	}

	if check.IsDuplicate {
		if err := p.dedup.Merge(ctx, check.ExistingID, lead, "ingestion-pipeline"); err != nil {
			return IngestionResult{Success: false, Error: err}
		}
		if err := p.store.AppendAudit(ctx, &models.AuditLog{
			ID:         uuid.NewString(),
			EntityType: "lead",
			EntityID:   check.ExistingID,
			Action:     models.AuditUpdate,
			Changes:    map[string]any{"merged_from_source": string(payload.Source), "matching_fields": check.MatchingFields},
			Actor:      "ingestion-pipeline",
			Timestamp:  p.clock.Now(),
		}); err != nil {
			p.logger.WarnContext(ctx, "failed to append merge audit row", "lead_id", check.ExistingID, "error", err)
		}

		p.notify(ctx, observer.EventTypeLeadIngested, check.ExistingID, "duplicate")
		return IngestionResult{Success: true, IsDuplicate: true, ExistingID: check.ExistingID}
	}

	lead.ID = uuid.NewString()
	err = p.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.UpsertLead(ctx, lead); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &models.AuditLog{
			ID:         uuid.NewString(),
			EntityType: "lead",
			EntityID:   lead.ID,
			Action:     models.AuditCreate,
			Changes:    map[string]any{"source": string(payload.Source)},
			Actor:      "ingestion-pipeline",
			Timestamp:  p.clock.Now(),
		})
	})
	if err != nil {
		return IngestionResult{Success: false, Error: err}
	}

	p.notify(ctx, observer.EventTypeLeadIngested, lead.ID, "new")
	return IngestionResult{Success: true, IsDuplicate: false, LeadID: lead.ID}
}

func (p *Pipeline) notify(ctx context.Context, eventType observer.EventType, leadID, status string) {
	if p.observer == nil {
		return
	}
	p.observer.Notify(ctx, observer.Event{
		Type:      eventType,
		Timestamp: p.clock.Now(),
		LeadID:    &leadID,
		Status:    status,
	})
}

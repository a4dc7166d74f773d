package observer

import (
	"context"

	"github.com/google/uuid"

	"github.com/leadctl/optimizer/internal/domain/repository"
	"github.com/leadctl/optimizer/pkg/models"
)

// DatabaseObserver persists every domain event as an append-only AuditLog
// entry (spec §3's immutable audit trail). Grounded on the teacher's
// DatabaseObserver/EventRepository pairing, adapted to this domain's
// AuditRepository instead of a dedicated execution-event table.
type DatabaseObserver struct {
	store repository.Store
}

// NewDatabaseObserver builds a DatabaseObserver writing through store.
func NewDatabaseObserver(store repository.Store) *DatabaseObserver {
	return &DatabaseObserver{store: store}
}

// Name identifies the observer.
func (o *DatabaseObserver) Name() string { return "database" }

// Filter returns nil: every event type is worth auditing.
func (o *DatabaseObserver) Filter() EventFilter { return nil }

// OnEvent appends one AuditLog entry per event.
func (o *DatabaseObserver) OnEvent(ctx context.Context, event Event) error {
	entityType, entityID := entityFor(event)

	changes := map[string]any{}
	for k, v := range event.Data {
		changes[k] = v
	}
	for k, v := range event.Metadata {
		changes[k] = v
	}

	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     models.AuditUpdate,
		Changes:    changes,
		Actor:      string(event.Type),
		Timestamp:  event.Timestamp,
	}
	if event.Message != nil {
		entry.Metadata = map[string]any{"message": *event.Message}
	}

	return o.store.AppendAudit(ctx, entry)
}

// entityFor picks the most specific identifier an Event carries, in the
// order a human reading the audit trail would expect to filter by it.
func entityFor(event Event) (entityType, entityID string) {
	switch {
	case event.LeadID != nil:
		return "lead", *event.LeadID
	case event.SequenceID != nil:
		return "sequence", *event.SequenceID
	case event.RecommendationID != nil:
		return "optimization", *event.RecommendationID
	case event.CampaignID != nil:
		return "campaign", *event.CampaignID
	case event.AgentID != nil:
		return "agent", *event.AgentID
	case event.Resource != nil:
		return "resource", *event.Resource
	default:
		return "event", string(event.Type)
	}
}

package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/leadctl/optimizer/pkg/models"
)

// BreakerModel is the bun-mapped row for a persisted CircuitBreaker snapshot
// (§3) — the live gating decision lives in platform/breaker.Registry, this
// row is written on state change for dashboards and restart bookkeeping.
type BreakerModel struct {
	bun.BaseModel `bun:"table:circuit_breakers,alias:cb"`

	Resource      string     `bun:"resource,pk"`
	State         string     `bun:"state,notnull"`
	FailureCount  int        `bun:"failure_count,notnull"`
	LastFailureAt *time.Time `bun:"last_failure_at"`
}

// ToDomain maps the row to a domain CircuitBreaker.
func (m *BreakerModel) ToDomain() *models.CircuitBreaker {
	return &models.CircuitBreaker{
		Resource:      m.Resource,
		State:         models.BreakerState(m.State),
		FailureCount:  m.FailureCount,
		LastFailureAt: m.LastFailureAt,
	}
}

// BreakerModelFromDomain maps a domain CircuitBreaker to its row.
func BreakerModelFromDomain(b *models.CircuitBreaker) *BreakerModel {
	return &BreakerModel{
		Resource:      b.Resource,
		State:         string(b.State),
		FailureCount:  b.FailureCount,
		LastFailureAt: b.LastFailureAt,
	}
}

// AuditModel is the bun-mapped row for an AuditLog entry (§3), append-only.
type AuditModel struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         string    `bun:"id,pk,type:uuid"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   string    `bun:"entity_id,notnull"`
	Action     string    `bun:"action,notnull"`
	Changes    JSONBMap  `bun:"changes_json,type:jsonb"`
	Actor      string    `bun:"actor,notnull"`
	Timestamp  time.Time `bun:"timestamp,notnull,default:current_timestamp"`
	Metadata   JSONBMap  `bun:"metadata,type:jsonb"`
}

// ToDomain maps the row to a domain AuditLog.
func (m *AuditModel) ToDomain() *models.AuditLog {
	return &models.AuditLog{
		ID:         m.ID,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Action:     models.AuditAction(m.Action),
		Changes:    map[string]any(m.Changes),
		Actor:      m.Actor,
		Timestamp:  m.Timestamp,
		Metadata:   map[string]any(m.Metadata),
	}
}

// AuditModelFromDomain maps a domain AuditLog to its row.
func AuditModelFromDomain(a *models.AuditLog) *AuditModel {
	return &AuditModel{
		ID:         a.ID,
		EntityType: a.EntityType,
		EntityID:   a.EntityID,
		Action:     string(a.Action),
		Changes:    JSONBMap(a.Changes),
		Actor:      a.Actor,
		Timestamp:  a.Timestamp,
		Metadata:   JSONBMap(a.Metadata),
	}
}

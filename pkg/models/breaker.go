package models

import "time"

// BreakerState mirrors sony/gobreaker's three-state model for persistence
// and dashboard reporting.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// CircuitBreaker is the persisted view of a per-named-resource fault
// counter (§3); the live gating decision is made by an in-process
// sony/gobreaker.CircuitBreaker, this struct is the snapshot written to
// the Store for dashboards and restart bookkeeping.
type CircuitBreaker struct {
	Resource      string       `json:"resource"`
	State         BreakerState `json:"state"`
	FailureCount  int          `json:"failure_count"`
	LastFailureAt *time.Time   `json:"last_failure_at,omitempty"`
}

// AuditAction is the mutation kind recorded in the append-only audit log.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// AuditLog is an immutable record of a Lead/Interaction/Sync mutation (§3).
type AuditLog struct {
	ID         string                 `json:"id"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Action     AuditAction            `json:"action"`
	Changes    map[string]any         `json:"changes_json"`
	Actor      string                 `json:"actor"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]any         `json:"metadata,omitempty"`
}

package observer

import (
	"context"
	"time"
)

// Observer is the core interface for domain event observation (spec §1's
// "C8 observes every component").
type Observer interface {
	// OnEvent is called when any domain event occurs.
	OnEvent(ctx context.Context, event Event) error

	// Name returns the observer's unique identifier.
	Name() string

	// Filter returns the event filter for this observer (nil = all events).
	Filter() EventFilter
}

// Event represents one domain event with complete context. Only the fields
// relevant to Type are populated; the rest are zero.
type Event struct {
	Type      EventType
	Timestamp time.Time

	LeadID         *string
	InteractionID  *string
	SequenceID     *string
	CampaignID     *string
	RecommendationID *string
	AgentID        *string
	Resource       *string // circuit breaker / error-kind identifier

	Status string
	Error  error

	Data     map[string]any
	Metadata map[string]any
	Message  *string
}

// EventType represents the type of domain event (dot notation).
type EventType string

const (
	EventTypeLeadIngested          EventType = "lead.ingested"
	EventTypeLeadStatusChanged     EventType = "lead.status_changed"
	EventTypeInteractionAppended   EventType = "interaction.appended"
	EventTypeSequenceFired         EventType = "sequence.fired"
	EventTypeSequencePaused        EventType = "sequence.paused"
	EventTypeSequenceResumed       EventType = "sequence.resumed"
	EventTypeSequenceCompleted     EventType = "sequence.completed"
	EventTypeSequenceFailed        EventType = "sequence.failed"
	EventTypeOptimizationApplied   EventType = "optimization.applied"
	EventTypeOptimizationValidated EventType = "optimization.validated"
	EventTypeOptimizationRolledBack EventType = "optimization.rolledback"
	EventTypeBreakerOpened         EventType = "breaker.opened"
	EventTypeBreakerClosed         EventType = "breaker.closed"
	EventTypeErrorOccurred         EventType = "error.occurred"
	EventTypeDirectiveIssued       EventType = "directive.issued"
	EventTypeOverrideApplied       EventType = "override.applied"
)

// EventFilter defines filtering criteria for events.
type EventFilter interface {
	ShouldNotify(event Event) bool
}

// EventTypeFilter filters events by type.
type EventTypeFilter struct {
	allowedTypes map[EventType]bool
}

// NewEventTypeFilter creates a filter for specific event types.
// If no types specified, allows all events.
func NewEventTypeFilter(types ...EventType) EventFilter {
	if len(types) == 0 {
		return nil // nil filter = all events
	}

	filter := &EventTypeFilter{
		allowedTypes: make(map[EventType]bool),
	}
	for _, t := range types {
		filter.allowedTypes[t] = true
	}
	return filter
}

// ShouldNotify checks if the event should trigger notification.
func (f *EventTypeFilter) ShouldNotify(event Event) bool {
	if f == nil || len(f.allowedTypes) == 0 {
		return true
	}
	return f.allowedTypes[event.Type]
}

// LeadIDFilter filters events by lead ID. Events with no LeadID always pass.
type LeadIDFilter struct {
	leadID string
}

// NewLeadIDFilter creates a filter that only passes events for a specific lead.
func NewLeadIDFilter(leadID string) EventFilter {
	return &LeadIDFilter{leadID: leadID}
}

// ShouldNotify returns true if the event carries the target lead ID.
func (f *LeadIDFilter) ShouldNotify(event Event) bool {
	if event.LeadID == nil {
		return true
	}
	return *event.LeadID == f.leadID
}

// CompoundEventFilter combines multiple filters with AND logic.
// All sub-filters must pass for the event to be notified.
type CompoundEventFilter struct {
	filters []EventFilter
}

// NewCompoundEventFilter creates a filter that requires all sub-filters to pass.
// Nil filters are ignored. Returns nil if no valid filters remain.
func NewCompoundEventFilter(filters ...EventFilter) EventFilter {
	nonNil := make([]EventFilter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			nonNil = append(nonNil, f)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	if len(nonNil) == 1 {
		return nonNil[0]
	}
	return &CompoundEventFilter{filters: nonNil}
}

// ShouldNotify returns true only if all sub-filters pass.
func (f *CompoundEventFilter) ShouldNotify(event Event) bool {
	for _, filter := range f.filters {
		if !filter.ShouldNotify(event) {
			return false
		}
	}
	return true
}

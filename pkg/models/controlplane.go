package models

import "time"

// AgentInfo is one entry in the Control Plane's agent registry (§4.9).
type AgentInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Channel      string    `json:"channel"`
	RegisteredAt time.Time `json:"registered_at"`
}

// DirectiveStatus is a strategic Directive's lifecycle state (§4.9).
type DirectiveStatus string

const (
	DirectiveDraft     DirectiveStatus = "draft"
	DirectiveActive    DirectiveStatus = "active"
	DirectiveCompleted DirectiveStatus = "completed"
	DirectiveCancelled DirectiveStatus = "cancelled"
)

var directiveTransitions = map[DirectiveStatus]map[DirectiveStatus]bool{
	DirectiveDraft:     {DirectiveActive: true, DirectiveCancelled: true},
	DirectiveActive:    {DirectiveCompleted: true, DirectiveCancelled: true},
	DirectiveCompleted: {},
	DirectiveCancelled: {},
}

// Directive is a strategic plan naming a target agent and a priority, owned
// by the Control Plane (§4.9: "plans with target agents and priorities,
// lifecycle draft → active → completed|cancelled").
type Directive struct {
	ID            string          `json:"id"`
	TargetAgentID string          `json:"target_agent_id"`
	Priority      Priority        `json:"priority"`
	Description   string          `json:"description"`
	Status        DirectiveStatus `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TransitionDirectiveStatus validates and applies one lifecycle edge,
// mirroring TransitionSequenceStatus's table-driven shape.
func TransitionDirectiveStatus(d *Directive, to DirectiveStatus, now time.Time) error {
	allowed, ok := directiveTransitions[d.Status]
	if !ok || !allowed[to] {
		return &ValidationErr{Field: "status", Message: "cannot transition directive from " + string(d.Status) + " to " + string(to)}
	}
	d.Status = to
	d.UpdatedAt = now
	return nil
}

// OverrideType names the kind of operator intervention an Override applies.
type OverrideType string

const (
	OverrideSuspend  OverrideType = "suspend"
	OverrideRedirect OverrideType = "redirect"
)

// Override is a typed, timestamped, reversible operator mutation that
// temporarily suspends or redirects Optimization Loop decisions for one
// agent (§4.9).
type Override struct {
	ID         string         `json:"id"`
	AgentID    string         `json:"agent_id"`
	Type       OverrideType   `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Reason     string         `json:"reason"`
	AppliedAt  time.Time      `json:"applied_at"`
	AppliedBy  string         `json:"applied_by"`
	RevertedAt *time.Time     `json:"reverted_at,omitempty"`
}

// Active reports whether the override still applies.
func (o *Override) Active() bool { return o.RevertedAt == nil }

// DashboardSnapshot is the Control Plane's read-only composite view (§4.9:
// "current metrics + active optimizations + recent alerts + uptime").
type DashboardSnapshot struct {
	GeneratedAt         time.Time             `json:"generated_at"`
	SystemStatus        SystemStatus          `json:"system_status"`
	Uptime              time.Duration         `json:"uptime"`
	Metrics             map[string]Metrics    `json:"metrics"`
	ActiveOptimizations []OptimizationResult  `json:"active_optimizations"`
	RecentAlerts        []Alert               `json:"recent_alerts"`
	ActiveDirectives    []Directive           `json:"active_directives"`
	ActiveOverrides     []Override            `json:"active_overrides"`
}
